package downloader_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemsense/internal/artifacts"
	"stemsense/internal/config"
	"stemsense/internal/downloader"
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
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.Paths.StemsDir = filepath.Join(root, "stems")
	cfg.Paths.ExportDir = filepath.Join(root, "exports")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Storage.BucketDir = filepath.Join(root, "bucket")
	cfg.Storage.SigningSecret = "test-secret"
	cfg.Storage.BaseURL = "http://127.0.0.1:8000"
	cfg.Tools.DownloadRetries = 1
	return &cfg
}

func TestFetchWithStubbedYtDlp(t *testing.T) {
	cfg := newTestConfig(t)
	binDir := t.TempDir()

	// The stub mimics yt-dlp: it resolves the --output template directory and
	// drops a restricted-filename mp3 there.
	cfg.Tools.YtDlpBinary = writeStub(t, binDir, "yt-dlp", `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output" ]; then out="$arg"; fi
  prev="$arg"
done
dir=$(dirname "$out")
mkdir -p "$dir"
printf 'fake audio' > "$dir/Daft_Punk_Around_The_World.mp3"
`)

	bucket, err := artifacts.NewBucketStore(cfg)
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}

	d := downloader.New(cfg, nil, bucket)
	result, err := d.Fetch(context.Background(), "task-1", "daft punk around the world")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.TrackName != "Daft Punk Around The World" {
		t.Fatalf("track name = %q", result.TrackName)
	}
	if !strings.HasSuffix(result.SourceFile, "Daft_Punk_Around_The_World.mp3") {
		t.Fatalf("source file = %q", result.SourceFile)
	}
	if result.ObjectName != "task-1_original.mp3" {
		t.Fatalf("object name = %q", result.ObjectName)
	}

	exists, err := bucket.Exists(context.Background(), result.ObjectName)
	if err != nil || !exists {
		t.Fatalf("original not uploaded: exists=%v err=%v", exists, err)
	}
}

func TestFetchFailsWhenToolFails(t *testing.T) {
	cfg := newTestConfig(t)
	binDir := t.TempDir()
	cfg.Tools.YtDlpBinary = writeStub(t, binDir, "yt-dlp", "#!/bin/sh\nexit 1\n")

	bucket, err := artifacts.NewBucketStore(cfg)
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}

	d := downloader.New(cfg, nil, bucket)
	_, err = d.Fetch(context.Background(), "task-1", "some query")
	if err == nil {
		t.Fatal("expected error when yt-dlp exits non-zero")
	}
	if !strings.Contains(err.Error(), "Download failed") {
		t.Fatalf("error should carry the download failure message, got %v", err)
	}
}

func TestFetchRejectsEmptyInput(t *testing.T) {
	cfg := newTestConfig(t)
	bucket, err := artifacts.NewBucketStore(cfg)
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}

	d := downloader.New(cfg, nil, bucket)
	if _, err := d.Fetch(context.Background(), "task-1", "   "); err == nil {
		t.Fatal("expected validation error for empty input")
	}
}

func TestTrackNameFromFile(t *testing.T) {
	cases := map[string]string{
		"/tmp/x/Daft_Punk_-_Around_The_World.mp3": "Daft Punk - Around The World",
		"/tmp/x/already titled.mp3":               "Already Titled",
		"/tmp/x/.mp3":                             "Unknown Track",
	}
	for path, want := range cases {
		if got := downloader.TrackNameFromFile(path); got != want {
			t.Fatalf("TrackNameFromFile(%q) = %q, want %q", path, got, want)
		}
	}
}
