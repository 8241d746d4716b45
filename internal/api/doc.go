// Package api exposes the HTTP gateway for the processing pipeline.
//
// Routes: POST /process submits a job, GET /tasks/{task_id} reports status,
// POST /cancel/{task_id} requests cooperative cancellation, and
// GET /download/{filename} redirects to a signed artifact URL served back by
// GET /artifacts/{name}. GET /api/status summarizes the task store for
// dashboards. Responses are JSON; errors use an {"error": message} envelope.
package api
