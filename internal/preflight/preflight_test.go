package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stemsense/internal/config"
	"stemsense/internal/preflight"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Export directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass, got %+v", result)
	}

	missing := preflight.CheckDirectoryAccess("Export directory", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Fatalf("expected missing dir to fail, got %+v", missing)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	notDir := preflight.CheckDirectoryAccess("Export directory", file)
	if notDir.Passed {
		t.Fatalf("expected file path to fail, got %+v", notDir)
	}
}

func TestCheckSigningSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.SigningSecret = ""
	if result := preflight.CheckSigningSecret(&cfg); result.Passed {
		t.Fatalf("expected missing secret to fail, got %+v", result)
	}
	cfg.Storage.SigningSecret = "secret"
	if result := preflight.CheckSigningSecret(&cfg); !result.Passed {
		t.Fatalf("expected configured secret to pass, got %+v", result)
	}
}

func TestRunAllCoversConfiguredPaths(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.Paths.StemsDir = filepath.Join(root, "stems")
	cfg.Paths.ExportDir = filepath.Join(root, "exports")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Storage.BucketDir = filepath.Join(root, "bucket")
	cfg.Storage.SigningSecret = "secret"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := preflight.RunAll(context.Background(), &cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	byName := make(map[string]preflight.Result, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	for _, name := range []string{"Download directory", "Stems directory", "Export directory", "Log directory", "Artifact bucket", "Signing secret"} {
		result, ok := byName[name]
		if !ok {
			t.Fatalf("missing check %q", name)
		}
		if !result.Passed {
			t.Fatalf("check %q failed: %s", name, result.Detail)
		}
	}
	if _, ok := byName["Demucs"]; !ok {
		t.Fatal("binary checks missing from results")
	}
}
