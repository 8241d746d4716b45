package packager

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"stemsense/internal/artifacts"
	"stemsense/internal/config"
	"stemsense/internal/logging"
	"stemsense/internal/services"
	"stemsense/internal/task"
)

// Result describes a finished bundle.
type Result struct {
	BundleName string
	BundlePath string
}

// Packager assembles the final zip bundle and uploads it to the bucket.
type Packager struct {
	cfg    *config.Config
	logger *slog.Logger
	bucket artifacts.Store
	now    func() time.Time
}

// New builds a Packager.
func New(cfg *config.Config, logger *slog.Logger, bucket artifacts.Store) *Packager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Packager{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "packager")),
		bucket: bucket,
		now:    time.Now,
	}
}

// Bundle zips the original track, the stem files, and an analysis metadata
// document, then uploads the archive to the bucket. The bundle name embeds
// the sanitized track name and a timestamp so repeated runs never collide.
func (p *Packager) Bundle(ctx context.Context, item *task.Task, analysis map[string]any) (Result, error) {
	if item == nil {
		return Result{}, services.Wrap(services.ErrValidation, string(task.StatusPackaging), "validate input", "Packaging failed", errors.New("task is nil"))
	}
	if strings.TrimSpace(item.SourceFile) == "" || strings.TrimSpace(item.StemsDir) == "" {
		return Result{}, services.Wrap(services.ErrValidation, string(task.StatusPackaging), "validate input", "Packaging failed", errors.New("missing stage outputs"))
	}

	if err := os.MkdirAll(p.cfg.Paths.ExportDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, string(task.StatusPackaging), "create export dir", "Packaging failed", err)
	}

	bundleName := fmt.Sprintf("StemSense_%s_%s.zip", CleanName(item.TrackName), p.now().Format("20060102_150405"))
	bundlePath := filepath.Join(p.cfg.Paths.ExportDir, bundleName)

	if err := p.writeZip(ctx, bundlePath, item, analysis); err != nil {
		_ = os.Remove(bundlePath)
		return Result{}, err
	}

	if err := p.bucket.Upload(ctx, bundlePath, bundleName); err != nil {
		return Result{}, services.Wrap(services.ErrStorage, string(task.StatusPackaging), "upload bundle", "Packaging failed", err)
	}

	logging.WithContext(ctx, p.logger).Info("bundle ready",
		logging.String("bundle", bundleName),
		logging.String("path", bundlePath),
	)
	return Result{BundleName: bundleName, BundlePath: bundlePath}, nil
}

func (p *Packager) writeZip(ctx context.Context, bundlePath string, item *task.Task, analysis map[string]any) error {
	out, err := os.Create(bundlePath)
	if err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "create bundle", "Packaging failed", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	// Original track goes first so the listing leads with it.
	originalEntry := "00_Original_" + filepath.Base(item.SourceFile)
	if err := addFile(zw, item.SourceFile, originalEntry); err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "add original", "Packaging failed", err)
	}

	stems, err := listStemFiles(item.StemsDir)
	if err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "collect stems", "Packaging failed", err)
	}
	for _, stem := range stems {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, stem, "Stems/"+filepath.Base(stem)); err != nil {
			return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "add stem", "Packaging failed", err)
		}
	}

	metadata := map[string]any{
		"task_id":      item.ID,
		"track_name":   item.TrackName,
		"processed_at": p.now().UTC().Format(time.RFC3339),
		"analysis":     analysis,
	}
	raw, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "encode metadata", "Packaging failed", err)
	}
	entry, err := zw.Create("metadata.json")
	if err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "add metadata", "Packaging failed", err)
	}
	if _, err := entry.Write(raw); err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "write metadata", "Packaging failed", err)
	}

	if err := zw.Close(); err != nil {
		return services.Wrap(services.ErrStorage, string(task.StatusPackaging), "finalize bundle", "Packaging failed", err)
	}
	return nil
}

// CleanName sanitizes a track name for use in a bundle filename: only
// alphanumerics, spaces, and underscores survive, and spaces collapse to
// underscores.
func CleanName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimRight(b.String(), " ")
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	if cleaned == "" {
		return "track"
	}
	return cleaned
}

func listStemFiles(stemsDir string) ([]string, error) {
	entries, err := os.ReadDir(stemsDir)
	if err != nil {
		return nil, fmt.Errorf("read stems dir %s: %w", stemsDir, err)
	}
	var stems []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stems = append(stems, filepath.Join(stemsDir, entry.Name()))
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("no stems found in %s", stemsDir)
	}
	sort.Strings(stems)
	return stems, nil
}

func addFile(zw *zip.Writer, path, entryName string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	entry, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entryName, err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("write entry %s: %w", entryName, err)
	}
	return nil
}
