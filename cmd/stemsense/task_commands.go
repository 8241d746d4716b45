package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"stemsense/internal/api"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/tasks"
			if filter := strings.TrimSpace(statusFilter); filter != "" {
				path += "?status=" + filter
			}

			var resp api.TaskListResponse
			if err := ctx.getJSON(path, &resp); err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Tasks) == 0 {
				fmt.Fprintln(out, "No tasks found")
				return nil
			}
			rows := buildTaskRows(resp.Tasks)
			fmt.Fprintln(out, renderTable(
				[]string{"Task ID", "Track", "Status", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the full record for one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record api.TaskRecord
			if err := ctx.getJSON("/tasks/"+strings.TrimSpace(args[0]), &record); err != nil {
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
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.CancelResponse
			if err := ctx.postForm("/cancel/"+strings.TrimSpace(args[0]), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newDownloadURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download-url <filename>",
		Short: "Print a signed download URL for a result bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			location, err := resolveDownloadURL(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}
}

// resolveDownloadURL asks the daemon for the redirect target without
// following it, so the signed URL can be handed to the user.
func resolveDownloadURL(ctx *commandContext, filename string) (string, error) {
	client := &http.Client{
		Timeout: ctx.client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ctx.baseURL() + "/download/" + filename)
	if err != nil {
		return "", wrapDialError(err, ctx.baseURL())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeResponse(resp, nil)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("daemon returned a redirect without a location")
	}
	return location, nil
}

func printTaskRecord(cmd *cobra.Command, record api.TaskRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task:    %s\n", record.TaskID)
	fmt.Fprintf(out, "Status:  %s\n", formatStatusLabel(record.Status))
	fmt.Fprintf(out, "Query:   %s\n", record.Query)
	if record.TrackName != nil {
		fmt.Fprintf(out, "Track:   %s\n", *record.TrackName)
	}
	if record.ResultFile != nil {
		fmt.Fprintf(out, "Bundle:  %s\n", *record.ResultFile)
		fmt.Fprintf(out, "Fetch it with `stemsense download-url %s`\n", *record.ResultFile)
	}
	if record.Error != nil {
		fmt.Fprintf(out, "Error:   %s\n", *record.Error)
	}
	fmt.Fprintf(out, "Created: %s\n", formatDisplayTime(record.CreatedAt))
	fmt.Fprintf(out, "Updated: %s\n", formatDisplayTime(record.UpdatedAt))
}

func buildTaskRows(records []api.TaskRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		track := ""
		if record.TrackName != nil {
			track = *record.TrackName
		}
		if strings.TrimSpace(track) == "" {
			track = record.Query
		}
		rows = append(rows, []string{
			record.TaskID,
			track,
			formatStatusLabel(record.Status),
			formatDisplayTime(record.CreatedAt),
		})
	}
	return rows
}
