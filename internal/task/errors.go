package task

import "errors"

var (
	// ErrNotFound indicates the requested task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrAlreadyExists indicates a task with the same identifier was already created.
	ErrAlreadyExists = errors.New("task already exists")
	// ErrTerminal indicates a mutation was rejected because the task already
	// reached completed, failed, or cancelled.
	ErrTerminal = errors.New("task is terminal")
)
