package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemsense/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STEMSENSE_SIGNING_SECRET", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDownloads := filepath.Join(tempHome, ".local", "share", "stemsense", "downloads")
	if cfg.Paths.DownloadDir != wantDownloads {
		t.Fatalf("unexpected download dir: got %q want %q", cfg.Paths.DownloadDir, wantDownloads)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("expected base url derived from api bind, got %q", cfg.Storage.BaseURL)
	}
	if cfg.Storage.URLTTLMinutes != 15 {
		t.Fatalf("unexpected url ttl: %d", cfg.Storage.URLTTLMinutes)
	}
	if cfg.Tools.DemucsModel != "htdemucs" {
		t.Fatalf("unexpected demucs model: %q", cfg.Tools.DemucsModel)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected ntfy disabled by default, got %q", cfg.Notifications.NtfyTopic)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.StemsDir, cfg.Paths.ExportDir, cfg.Paths.LogDir, cfg.Storage.BucketDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
}

func TestLoadReadsFileAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := strings.Join([]string{
		"[paths]",
		`api_bind = "127.0.0.1:9999"`,
		"[storage]",
		`signing_secret = "sekrit"`,
		`url_ttl_minutes = 5`,
		"[tools]",
		`demucs_device = "cuda"`,
		"[logging]",
		`level = "debug"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.SigningSecret != "sekrit" {
		t.Fatalf("unexpected signing secret: %q", cfg.Storage.SigningSecret)
	}
	if cfg.Storage.URLTTLMinutes != 5 {
		t.Fatalf("unexpected ttl: %d", cfg.Storage.URLTTLMinutes)
	}
	if cfg.Storage.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("unexpected base url: %q", cfg.Storage.BaseURL)
	}
	if cfg.Tools.DemucsDevice != "cuda" {
		t.Fatalf("unexpected demucs device: %q", cfg.Tools.DemucsDevice)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadLogging(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for logging.format")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for logging.level")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[storage]") {
		t.Fatal("sample config missing storage section")
	}
}
