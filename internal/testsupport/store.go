package testsupport

import (
	"context"
	"testing"

	"stemsense/internal/config"
	"stemsense/internal/task"
)

// MustOpenStore opens a task.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *task.Store {
	t.Helper()

	store, err := task.Open(cfg)
	if err != nil {
		t.Fatalf("open task store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewTask creates a queued task with the given id and query.
func NewTask(t testing.TB, store *task.Store, id, query string) *task.Task {
	t.Helper()

	item, err := store.Create(context.Background(), id, query)
	if err != nil {
		t.Fatalf("create task %s: %v", id, err)
	}
	return item
}
