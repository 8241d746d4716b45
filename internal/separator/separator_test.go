package separator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemsense/internal/config"
	"stemsense/internal/separator"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StemsDir = filepath.Join(root, "stems")
	return &cfg
}

func TestSeparateWithStubbedDemucs(t *testing.T) {
	cfg := newTestConfig(t)
	binDir := t.TempDir()

	// The stub mimics demucs output layout: <out>/<model>/<track>/<stem>.wav.
	cfg.Tools.DemucsBinary = writeStub(t, binDir, "demucs", `#!/bin/sh
out=""
model=""
prev=""
src=""
for arg in "$@"; do
  case "$prev" in
    --out) out="$arg";;
    -n) model="$arg";;
  esac
  prev="$arg"
  src="$arg"
done
base=$(basename "$src")
base="${base%.*}"
mkdir -p "$out/$model/$base"
for stem in vocals drums bass other; do
  printf 'stem' > "$out/$model/$base/$stem.wav"
done
`)
	cfg.Tools.DemucsModel = "htdemucs"

	source := filepath.Join(t.TempDir(), "Around_The_World.mp3")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	s := separator.New(cfg, nil)
	stemsDir, err := s.Separate(context.Background(), "task-1", source)
	if err != nil {
		t.Fatalf("separate: %v", err)
	}
	if !strings.HasSuffix(stemsDir, filepath.Join("task-1", "htdemucs", "Around_The_World")) {
		t.Fatalf("stems dir = %q", stemsDir)
	}
	entries, err := os.ReadDir(stemsDir)
	if err != nil {
		t.Fatalf("read stems dir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("stem count = %d, want 4", len(entries))
	}
}

func TestSeparateFailsWhenNoStemsProduced(t *testing.T) {
	cfg := newTestConfig(t)
	binDir := t.TempDir()
	cfg.Tools.DemucsBinary = writeStub(t, binDir, "demucs", "#!/bin/sh\nexit 0\n")

	source := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	s := separator.New(cfg, nil)
	_, err := s.Separate(context.Background(), "task-1", source)
	if err == nil {
		t.Fatal("expected error when demucs produces nothing")
	}
	if !strings.Contains(err.Error(), "Stem separation failed") {
		t.Fatalf("error should carry the separation failure message, got %v", err)
	}
}

func TestSeparateRequiresExistingSource(t *testing.T) {
	cfg := newTestConfig(t)
	s := separator.New(cfg, nil)

	if _, err := s.Separate(context.Background(), "task-1", filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatal("expected error for missing source file")
	}
}
