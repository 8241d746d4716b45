package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stemsense/internal/api"
	"stemsense/internal/task"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "process <url-or-search-query>",
		Short: "Submit a track for stem separation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(strings.Join(args, " "))
			if input == "" {
				return fmt.Errorf("input is required")
			}

			var resp api.ProcessResponse
			if err := ctx.postForm("/process", url.Values{"input": {input}}, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, resp.Message)
				fmt.Fprintf(out, "Task ID: %s\n", resp.TaskID)
			}

			if !wait {
				if asJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(out, "Track the task with `stemsense show %s`\n", resp.TaskID)
				return nil
			}

			record, err := waitForTerminal(cmd, ctx, resp.TaskID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, record)
			}
			printTaskRecord(cmd, record)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the task reaches a terminal state")
	return cmd
}

// waitForTerminal polls the task until it completes, fails, or is cancelled.
func waitForTerminal(cmd *cobra.Command, ctx *commandContext, taskID string) (api.TaskRecord, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastStatus := ""
	for {
		var record api.TaskRecord
		if err := ctx.getJSON("/tasks/"+taskID, &record); err != nil {
			return api.TaskRecord{}, err
		}
		if record.Status != lastStatus {
			lastStatus = record.Status
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", formatStatusLabel(record.Status))
		}
		if status, ok := task.ParseStatus(record.Status); ok && task.IsTerminal(status) {
			return record, nil
		}

		select {
		case <-cmd.Context().Done():
			return api.TaskRecord{}, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
