package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDiagnosticsFileName(t *testing.T) {
	at := time.Date(2020, 8, 4, 13, 5, 9, 0, time.UTC)
	got := DiagnosticsFileName("listing-results", at)
	want := "listing-results-8-04-2020.13-05-09.log"
	if got != want {
		t.Errorf("DiagnosticsFileName = %q, want %q", got, want)
	}
}

func TestDiagnostics_WritesOneLinePerCall(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDiagnostics(dir, "listing-results")
	if err != nil {
		t.Fatalf("NewDiagnostics: %v", err)
	}
	d.Line("a/1-1-2020.log")
	d.Line("a/6-1-2020.log")
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if filepath.Dir(d.Path()) != dir {
		t.Errorf("path %q not under %q", d.Path(), dir)
	}
	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	if !strings.HasSuffix(lines[1], "a/6-1-2020.log") {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestDiagnostics_NilSafe(t *testing.T) {
	var d *Diagnostics
	d.Line("ignored")
	if err := d.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hello_world")
	_ = log.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello_world") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARN").String() != "warn" {
		t.Error("WARN should parse to warn")
	}
	if parseLevel("bogus").String() != "info" {
		t.Error("unknown level should fall back to info")
	}
}
