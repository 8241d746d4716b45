// Package services defines the error taxonomy shared by the stage adapters
// and the workflow engine.
//
// Stage failures are tagged with a sentinel marker (external tool, validation,
// configuration, not found, timeout, transient, storage) via Wrap so callers
// can classify with errors.Is without parsing text. Message recovers the
// human-readable portion for persistence on the task record.
package services
