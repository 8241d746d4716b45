package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strings"

	"stemsense/internal/audioprobe"
	"stemsense/internal/config"
	"stemsense/internal/logging"
	"stemsense/internal/services"
	"stemsense/internal/task"
)

// Analyzer extracts musical features from the source track by invoking the
// configured analyzer binary.
type Analyzer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds an Analyzer.
func New(cfg *config.Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "analyzer")),
	}
}

// Placeholder is the analysis payload bundled when analysis could not run.
// Analysis failures never fail the pipeline.
func Placeholder() map[string]any {
	return map[string]any{"note": "analysis failed"}
}

// Analyze runs the analyzer binary against the source file and returns its
// JSON output enriched with the probed duration.
func (a *Analyzer) Analyze(ctx context.Context, sourceFile string) (map[string]any, error) {
	if strings.TrimSpace(sourceFile) == "" {
		return nil, services.Wrap(services.ErrValidation, string(task.StatusAnalyzing), "validate input", "no source file", nil)
	}

	logger := logging.WithContext(ctx, a.logger)
	cmd := exec.CommandContext(ctx, a.cfg.Tools.AnalyzerBinary, sourceFile)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, string(task.StatusAnalyzing), "run analyzer", "analysis failed",
			fmt.Errorf("%s: %w", a.cfg.Tools.AnalyzerBinary, err))
	}

	analysis := make(map[string]any)
	if err := json.Unmarshal(out, &analysis); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, string(task.StatusAnalyzing), "decode analyzer output", "analysis failed", err)
	}

	if _, ok := analysis["duration_seconds"]; !ok {
		if duration, probeErr := audioprobe.Duration(sourceFile); probeErr == nil {
			analysis["duration_seconds"] = math.Round(duration.Seconds()*100) / 100
		} else {
			logger.Warn("duration probe failed", logging.Error(probeErr))
		}
	}

	logger.Info("analysis complete", logging.Int("feature_count", len(analysis)))
	return analysis, nil
}
