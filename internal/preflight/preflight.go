package preflight

import (
	"context"
	"strings"

	"stemsense/internal/config"
	"stemsense/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Results are advisory: the daemon logs failures and keeps running, since a
// missing optional tool only degrades the pipeline.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir))
	results = append(results, CheckDirectoryAccess("Stems directory", cfg.Paths.StemsDir))
	results = append(results, CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("Artifact bucket", cfg.Storage.BucketDir))

	results = append(results, CheckDiskSpace("Download disk space", cfg.Paths.DownloadDir))
	results = append(results, CheckSigningSecret(cfg))

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: binaryDetail(status),
		})
	}

	return results
}

func binaryDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	detail := status.Detail
	if status.Optional {
		detail = strings.TrimSpace(detail + " (optional)")
	}
	return detail
}
