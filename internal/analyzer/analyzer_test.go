package analyzer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"stemsense/internal/analyzer"
	"stemsense/internal/config"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestAnalyzeParsesToolOutput(t *testing.T) {
	cfg := config.Default()
	binDir := t.TempDir()
	cfg.Tools.AnalyzerBinary = writeStub(t, binDir, "stemsense-analyze", `#!/bin/sh
printf '{"key": "A minor", "tempo": 121.3, "duration_seconds": 212.5}'
`)

	source := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	a := analyzer.New(&cfg, nil)
	analysis, err := a.Analyze(context.Background(), source)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis["key"] != "A minor" {
		t.Fatalf("key = %v", analysis["key"])
	}
	if analysis["tempo"] != 121.3 {
		t.Fatalf("tempo = %v", analysis["tempo"])
	}
}

func TestAnalyzeFailsOnBadJSON(t *testing.T) {
	cfg := config.Default()
	binDir := t.TempDir()
	cfg.Tools.AnalyzerBinary = writeStub(t, binDir, "stemsense-analyze", "#!/bin/sh\nprintf 'not json'\n")

	source := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	a := analyzer.New(&cfg, nil)
	if _, err := a.Analyze(context.Background(), source); err == nil {
		t.Fatal("expected error for malformed analyzer output")
	}
}

func TestAnalyzeFailsWhenToolMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.AnalyzerBinary = filepath.Join(t.TempDir(), "nonexistent-analyzer")

	source := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	a := analyzer.New(&cfg, nil)
	if _, err := a.Analyze(context.Background(), source); err == nil {
		t.Fatal("expected error when analyzer binary is missing")
	}
}

func TestPlaceholder(t *testing.T) {
	placeholder := analyzer.Placeholder()
	if placeholder["note"] != "analysis failed" {
		t.Fatalf("placeholder = %v", placeholder)
	}
}
