package task

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a processing task.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusSeparating  Status = "separating"
	StatusAnalyzing   Status = "analyzing"
	StatusPackaging   Status = "packaging"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusSeparating,
	StatusAnalyzing,
	StatusPackaging,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

var processingStatuses = map[Status]struct{}{
	StatusDownloading: {},
	StatusSeparating:  {},
	StatusAnalyzing:   {},
	StatusPackaging:   {},
}

// Task is the persistent record for one submitted pipeline run.
type Task struct {
	ID           string
	Query        string
	TrackName    string
	SourceFile   string
	StemsDir     string
	ResultFile   string
	ErrorMessage string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthSummary describes aggregated task counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further mutation.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the task reached a terminal status.
func (t *Task) IsTerminal() bool {
	return IsTerminal(t.Status)
}

// IsProcessing returns true when a pipeline stage is actively working the task.
func (t *Task) IsProcessing() bool {
	return IsProcessingStatus(t.Status)
}

// SetFailed marks the task as failed with the given error message.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
}
