package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes the root command with the given args against server,
// returning captured stdout.
func runCLI(t *testing.T, args []string, server string) (string, error) {
	t.Helper()

	if server != "" {
		args = append(args, "--server", server)
	}
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output %q does not contain %q", haystack, needle)
	}
}

func TestProcessCommandSubmitsJob(t *testing.T) {
	var gotInput string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotInput = r.FormValue("input")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task_id":"abc-123","message":"Job submitted successfully"}`))
	}))
	defer server.Close()

	out, err := runCLI(t, []string{"process", "daft", "punk"}, server.URL)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if gotInput != "daft punk" {
		t.Fatalf("submitted input = %q", gotInput)
	}
	requireContains(t, out, "Job submitted successfully")
	requireContains(t, out, "abc-123")
}

func TestTasksCommandRendersTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":[{"task_id":"abc","query":"some song","track_name":"Some Song","status":"completed","result_file":"StemSense_Some_Song_20250101_120000.zip","error":null,"created_at":"2025-01-01T12:00:00Z","updated_at":"2025-01-01T12:05:00Z"}]}`))
	}))
	defer server.Close()

	out, err := runCLI(t, []string{"tasks"}, server.URL)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	requireContains(t, out, "Some Song")
	requireContains(t, out, "Completed")
	requireContains(t, out, "2025-01-01 12:00")
}

func TestCancelCommandReportsTerminalTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task_id":"abc","message":"Task already finished or cancelled"}`))
	}))
	defer server.Close()

	out, err := runCLI(t, []string{"cancel", "abc"}, server.URL)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Task already finished or cancelled")
}

func TestCancelCommandSurfacesMissingTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Task not found"}`))
	}))
	defer server.Close()

	_, err := runCLI(t, []string{"cancel", "ghost"}, server.URL)
	if err == nil {
		t.Fatal("expected an error for a missing task")
	}
	requireContains(t, err.Error(), "Task not found")
}

func TestDownloadURLCommandPrintsLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/download/") {
			http.Redirect(w, r, "http://example.com/artifacts/bundle.zip?expires=1&signature=aa", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	out, err := runCLI(t, []string{"download-url", "bundle.zip"}, server.URL)
	if err != nil {
		t.Fatalf("download-url: %v", err)
	}
	requireContains(t, out, "http://example.com/artifacts/bundle.zip?expires=1&signature=aa")
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init without --overwrite refuses to clobber the file.
	_, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err == nil {
		t.Fatal("expected an error when the file already exists")
	}
}
