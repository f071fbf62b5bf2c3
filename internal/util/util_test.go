package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOptionsOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.toml")
	text := `
script_dirs = ["scripts", "lib"]
extensions = ["fileext", "sqlext"]
log_level = "debug"
global_funcs = true

[extension_options]
file_root = "data"
allow_net_db = "true"
`
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfiguration()
	if err := LoadOptions(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.ScriptDirs) != 2 || cfg.ScriptDirs[0] != "scripts" {
		t.Fatalf("ScriptDirs = %v", cfg.ScriptDirs)
	}
	if len(cfg.Extensions) != 2 {
		t.Fatalf("Extensions = %v", cfg.Extensions)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if !cfg.GlobalFuncs {
		t.Fatal("GlobalFuncs not set")
	}
	if cfg.ExtensionOptions["file_root"] != "data" {
		t.Fatalf("ExtensionOptions = %v", cfg.ExtensionOptions)
	}
	// defaults survive where the file is silent
	if cfg.RaiseErrors {
		t.Fatal("RaiseErrors flipped by overlay")
	}
}

func TestLoadOptionsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.toml")
	if err := os.WriteFile(path, []byte("no_such_option = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfiguration()
	if err := LoadOptions(path, &cfg); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadOptionsMissingAndEmpty(t *testing.T) {
	cfg := DefaultConfiguration()
	if err := LoadOptions("", &cfg); err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if err := LoadOptions("/no/such/file.toml", &cfg); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestContextLines(t *testing.T) {
	src := "a = 1\nb = 2\nc = x\nd = 4"
	got := ContextLines(src, 3)
	want := "       1 | a = 1\n       2 | b = 2\n  >    3 | c = x\n"
	if got != want {
		t.Fatalf("ContextLines:\n%q\nwant:\n%q", got, want)
	}
	if !strings.HasPrefix(ContextLines(src, 1), "  >    1 |") {
		t.Fatalf("first line context = %q", ContextLines(src, 1))
	}
	if ContextLines(src, 0) != "" || ContextLines(src, 99) != "" {
		t.Fatal("out-of-range line produced output")
	}
}
