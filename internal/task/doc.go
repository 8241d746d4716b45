// Package task persists the lifecycle of processing jobs in SQLite.
//
// Every submitted job becomes a row keyed by a caller-supplied identifier and
// walks the statuses queued, downloading, separating, analyzing, packaging,
// completed, with failed and cancelled as terminal escapes. Terminal statuses
// are sticky: Update and RequestCancel guard their writes in SQL so that a
// row that reached completed, failed, or cancelled can never be overwritten
// by a slower writer.
package task
