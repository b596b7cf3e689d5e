package config

import (
	"testing"
)

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"single segment", "glacier", "glacier"},
		{"trailing slash", "glacier/", "glacier"},
		{"leading slash", "/glacier", "glacier"},
		{"both slashes", "/glacier/2020/", "glacier/2020"},
		{"double slash middle", "glacier//2020", "glacier/2020"},
		{"multiple slashes", "glacier///2020///", "glacier/2020"},
		{"only slashes", "///", ""},
		{"backslashes", "glacier\\2020", "glacier/2020"},
		{"dot segments", "glacier/./cold/../2020", "glacier/2020"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePrefix(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizePrefix(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
