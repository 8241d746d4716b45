package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"stemsense/internal/api"
	"stemsense/internal/config"
	"stemsense/internal/deps"
	"stemsense/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var checkLocal bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.StatusResponse
			if err := ctx.getJSON("/api/status", &resp); err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			colorize := isColorTerminal(os.Stdout.Fd())

			if resp.Running {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not running", colorize))
			}

			rows := buildTaskCountRows(resp.TaskCounts)
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			}

			if checkLocal {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				printLocalChecks(cmd, cfg, colorize)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	cmd.Flags().BoolVar(&checkLocal, "check", false, "Also run local environment checks")
	return cmd
}

func printLocalChecks(cmd *cobra.Command, cfg *config.Config, colorize bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Environment checks:")

	for _, result := range preflight.RunAll(cmd.Context(), cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	fmt.Fprintln(out, "External tools:")
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		kind := statusOK
		message := status.Command
		switch {
		case status.Available:
		case status.Optional:
			kind = statusWarn
			message = status.Detail + " (optional)"
		default:
			kind = statusError
			message = status.Detail
		}
		fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
	}
}

func buildTaskCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func isColorTerminal(fd uintptr) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
