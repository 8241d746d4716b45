package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stemsense/internal/artifacts"
	"stemsense/internal/audioprobe"
	"stemsense/internal/config"
	"stemsense/internal/logging"
	"stemsense/internal/services"
	"stemsense/internal/task"
)

// Result describes a successfully fetched source track.
type Result struct {
	TrackName  string
	SourceFile string
	ObjectName string
	Duration   time.Duration
}

// Downloader fetches source audio with yt-dlp and persists the original into
// the artifact bucket so later stages can recover it.
type Downloader struct {
	cfg    *config.Config
	logger *slog.Logger
	bucket artifacts.Store
}

// New builds a Downloader.
func New(cfg *config.Config, logger *slog.Logger, bucket artifacts.Store) *Downloader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "downloader")),
		bucket: bucket,
	}
}

// Fetch downloads the audio for a query or URL into a per-task directory,
// probes its duration, and uploads the original to the bucket. Transient
// yt-dlp failures are retried with exponential backoff.
func (d *Downloader) Fetch(ctx context.Context, taskID, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, services.Wrap(services.ErrValidation, string(task.StatusDownloading), "validate input", "Download failed", errors.New("empty input"))
	}

	workDir := filepath.Join(d.cfg.Paths.DownloadDir, taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, string(task.StatusDownloading), "create work dir", "Download failed", err)
	}

	target := query
	if !strings.HasPrefix(query, "http://") && !strings.HasPrefix(query, "https://") {
		// Bare text becomes a single-result YouTube search.
		target = "ytsearch1:" + query
	}

	logger := logging.WithContext(ctx, d.logger)
	logger.Info("fetching source audio",
		logging.String("target", target),
		logging.String("work_dir", workDir),
	)

	operation := func() error {
		return d.runYtDlp(ctx, workDir, target)
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.retries()))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, services.Wrap(services.ErrExternalTool, string(task.StatusDownloading), "run yt-dlp", "Download failed", err)
	}

	sourceFile, err := findDownloadedAudio(workDir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, string(task.StatusDownloading), "locate output", "Download failed", err)
	}

	duration, err := audioprobe.Duration(sourceFile)
	if err != nil {
		// Duration is advisory metadata; a broken frame walk should not fail the stage.
		logger.Warn("duration probe failed", logging.Error(err))
		duration = 0
	}

	objectName := taskID + "_original" + filepath.Ext(sourceFile)
	if err := d.bucket.Upload(ctx, sourceFile, objectName); err != nil {
		return Result{}, services.Wrap(services.ErrStorage, string(task.StatusDownloading), "upload original", "Download failed", err)
	}

	result := Result{
		TrackName:  TrackNameFromFile(sourceFile),
		SourceFile: sourceFile,
		ObjectName: objectName,
		Duration:   duration,
	}
	logger.Info("source audio fetched",
		logging.String("track", result.TrackName),
		logging.String("file", sourceFile),
		logging.Duration("duration", duration),
	)
	return result, nil
}

func (d *Downloader) runYtDlp(ctx context.Context, workDir, target string) error {
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "320K",
		"--restrict-filenames",
		"--no-playlist",
		"--output", filepath.Join(workDir, "%(title)s.%(ext)s"),
		target,
	}
	cmd := exec.CommandContext(ctx, d.cfg.Tools.YtDlpBinary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", d.cfg.Tools.YtDlpBinary, err, truncateOutput(out))
	}
	return nil
}

func (d *Downloader) retries() int {
	if d.cfg.Tools.DownloadRetries > 0 {
		return d.cfg.Tools.DownloadRetries
	}
	return 3
}

// TrackNameFromFile derives a display name from a restricted filename:
// underscores become spaces and words are title-cased.
func TrackNameFromFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Unknown Track"
	}
	return cases.Title(language.Und, cases.NoLower).String(base)
}

func findDownloadedAudio(workDir string) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", fmt.Errorf("read work dir: %w", err)
	}
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(workDir, name)
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no audio file produced in %s", workDir)
	}
	return newest, nil
}

func truncateOutput(out []byte) string {
	const limit = 2048
	text := strings.TrimSpace(string(out))
	if len(text) > limit {
		return text[len(text)-limit:]
	}
	return text
}
