package awsconf

import (
	"context"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"minio:9000", "https://minio:9000"},
		{"http://localhost:9000", "http://localhost:9000"},
		{"  https://s3.example.com  ", "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := NormalizeEndpoint(tt.in)
		if err != nil {
			t.Fatalf("NormalizeEndpoint(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_Static(t *testing.T) {
	cfg, err := Load(context.Background(), Options{Auth: AuthStatic, AccessKey: "ak", SecretKey: "sk"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != DefaultRegion {
		t.Errorf("region = %q, want %q", cfg.Region, DefaultRegion)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "ak" || creds.SecretAccessKey != "sk" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestLoad_UnknownAuth(t *testing.T) {
	if _, err := Load(context.Background(), Options{Auth: "kerberos"}); err == nil {
		t.Fatal("expected error for unknown auth")
	}
}
