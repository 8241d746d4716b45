// Package daemon wires the task store, workflow engine, and API gateway
// into a single long-running process guarded by a lock file.
package daemon
