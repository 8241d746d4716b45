package task_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stemsense/internal/task"
	"stemsense/internal/testsupport"
)

func openStore(t *testing.T) *task.Store {
	t.Helper()
	store, err := task.OpenPath(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenPlacesDatabaseInLogDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	store, err := task.Open(cfg)
	if err != nil {
		t.Fatalf("open from config: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "tasks.db")); err != nil {
		t.Fatalf("database not created under the log directory: %v", err)
	}
	if _, err := store.Create(context.Background(), "task-1", "query"); err != nil {
		t.Fatalf("create on config-opened store: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "task-1", "daft punk around the world")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != task.StatusQueued {
		t.Fatalf("new task status = %s, want queued", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("timestamps not populated")
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Query != "daft punk around the world" {
		t.Fatalf("query = %q", got.Query)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "task-1", "first"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.Create(ctx, "task-1", "second")
	if !errors.Is(err, task.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAdvancesStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.Create(ctx, "task-1", "query")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	item.Status = task.StatusDownloading
	item.TrackName = "Around The World"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != task.StatusDownloading || got.TrackName != "Around The World" {
		t.Fatalf("unexpected task after update: %+v", got)
	}
}

func TestUpdateRejectedAfterTerminal(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.Create(ctx, "task-1", "query")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := store.RequestCancel(ctx, "task-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("expected cancellation to transition the task")
	}

	// A slow stage writer trying to mark the task failed must lose.
	item.SetFailed("Download failed")
	err = store.Update(ctx, item)
	if !errors.Is(err, task.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != task.StatusCancelled {
		t.Fatalf("status = %s, want cancelled to stick", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("error message leaked through: %q", got.ErrorMessage)
	}
}

func TestRequestCancelIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "task-1", "query"); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := store.RequestCancel(ctx, "task-1")
	if err != nil || !first {
		t.Fatalf("first cancel = (%v, %v), want (true, nil)", first, err)
	}
	second, err := store.RequestCancel(ctx, "task-1")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if second {
		t.Fatal("second cancel should report no transition")
	}
}

func TestRequestCancelOnCompletedTask(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.Create(ctx, "task-1", "query")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	item.Status = task.StatusCompleted
	item.ResultFile = "StemSense_query_20260831_120000.zip"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	transitioned, err := store.RequestCancel(ctx, "task-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if transitioned {
		t.Fatal("completed task must not transition to cancelled")
	}

	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != task.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRequestCancelMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.RequestCancel(context.Background(), "missing")
	if !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIsCancelled(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "task-1", "query"); err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := store.IsCancelled(ctx, "task-1")
	if err != nil {
		t.Fatalf("is cancelled: %v", err)
	}
	if cancelled {
		t.Fatal("fresh task should not be cancelled")
	}

	if _, err := store.RequestCancel(ctx, "task-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cancelled, err = store.IsCancelled(ctx, "task-1")
	if err != nil {
		t.Fatalf("is cancelled: %v", err)
	}
	if !cancelled {
		t.Fatal("expected cancelled after RequestCancel")
	}
}

func TestListAndStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, id, "query "+id); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	item, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	item.Status = task.StatusSeparating
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	queued, err := store.List(ctx, task.StatusQueued)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("queued count = %d, want 2", len(queued))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("total count = %d, want 3", len(all))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[task.StatusQueued] != 2 || stats[task.StatusSeparating] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 3 || health.Queued != 2 || health.Processing != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestClearFinished(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "done", "query"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "active", "query"); err != nil {
		t.Fatalf("create: %v", err)
	}
	item, err := store.Get(ctx, "done")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	item.Status = task.StatusCompleted
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update: %v", err)
	}

	removed, err := store.ClearFinished(ctx)
	if err != nil {
		t.Fatalf("clear finished: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "active"); err != nil {
		t.Fatalf("active task should survive: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := task.ParseStatus(" Separating "); !ok || status != task.StatusSeparating {
		t.Fatalf("ParseStatus = (%s, %v)", status, ok)
	}
	if _, ok := task.ParseStatus("exploded"); ok {
		t.Fatal("unknown status should not parse")
	}
}
