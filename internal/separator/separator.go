package separator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"stemsense/internal/config"
	"stemsense/internal/logging"
	"stemsense/internal/services"
	"stemsense/internal/task"
)

// Separator splits a source track into stems with Demucs.
type Separator struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a Separator.
func New(cfg *config.Config, logger *slog.Logger) *Separator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Separator{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "separator")),
	}
}

// Separate runs Demucs on the source file and returns the directory holding
// the stem files. Demucs writes to <out>/<model>/<track>/ so the returned
// path is resolved from the model name and the source basename.
func (s *Separator) Separate(ctx context.Context, taskID, sourceFile string) (string, error) {
	if strings.TrimSpace(sourceFile) == "" {
		return "", services.Wrap(services.ErrValidation, string(task.StatusSeparating), "validate input", "Stem separation failed", errors.New("no source file"))
	}
	if _, err := os.Stat(sourceFile); err != nil {
		return "", services.Wrap(services.ErrValidation, string(task.StatusSeparating), "stat source", "Stem separation failed", err)
	}

	outRoot := filepath.Join(s.cfg.Paths.StemsDir, taskID)
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(task.StatusSeparating), "create output dir", "Stem separation failed", err)
	}

	model := s.cfg.Tools.DemucsModel
	if model == "" {
		model = "htdemucs"
	}
	args := []string{"-n", model}
	if device := strings.TrimSpace(s.cfg.Tools.DemucsDevice); device != "" {
		args = append(args, "-d", device)
	}
	args = append(args, "--out", outRoot, sourceFile)

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("separating stems",
		logging.String("model", model),
		logging.String("source", sourceFile),
		logging.String("out", outRoot),
	)

	cmd := exec.CommandContext(ctx, s.cfg.Tools.DemucsBinary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, string(task.StatusSeparating), "run demucs", "Stem separation failed",
			fmt.Errorf("%s: %w: %s", s.cfg.Tools.DemucsBinary, err, truncateOutput(out)))
	}

	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	stemsDir := filepath.Join(outRoot, model, base)
	stems, err := listStems(stemsDir)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, string(task.StatusSeparating), "collect stems", "Stem separation failed", err)
	}

	logger.Info("stems ready",
		logging.String("stems_dir", stemsDir),
		logging.Int("stem_count", len(stems)),
	)
	return stemsDir, nil
}

// listStems returns the stem files inside a Demucs output directory, failing
// when the directory is missing or empty.
func listStems(stemsDir string) ([]string, error) {
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
		return nil, fmt.Errorf("no stems produced in %s", stemsDir)
	}
	return stems, nil
}

func truncateOutput(out []byte) string {
	const limit = 2048
	text := strings.TrimSpace(string(out))
	if len(text) > limit {
		return text[len(text)-limit:]
	}
	return text
}
