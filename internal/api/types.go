package api

import (
	"time"

	"stemsense/internal/task"
)

// ProcessResponse acknowledges a submitted job.
type ProcessResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// TaskRecord is the wire form of a task.
type TaskRecord struct {
	TaskID     string    `json:"task_id"`
	Query      string    `json:"query"`
	TrackName  *string   `json:"track_name"`
	Status     string    `json:"status"`
	ResultFile *string   `json:"result_file"`
	Error      *string   `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskRecord `json:"tasks"`
}

// StatusResponse summarizes daemon health for dashboards.
type StatusResponse struct {
	Running    bool           `json:"running"`
	TaskCounts map[string]int `json:"task_counts"`
}

// FromTask converts a stored task to its wire form.
func FromTask(item *task.Task) TaskRecord {
	record := TaskRecord{
		TaskID:    item.ID,
		Query:     item.Query,
		Status:    string(item.Status),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.TrackName != "" {
		record.TrackName = &item.TrackName
	}
	if item.ResultFile != "" {
		record.ResultFile = &item.ResultFile
	}
	if item.ErrorMessage != "" {
		record.Error = &item.ErrorMessage
	}
	return record
}
