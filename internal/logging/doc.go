// Package logging builds the slog loggers used across StemSense and defines
// the structured field vocabulary shared by every component.
//
// New constructs a logger from explicit options; NewFromConfig derives them
// from application config and tees output to stdout plus stemsense.log in the
// configured log directory. The console handler renders single-line
// timestamp/level/component output for humans; the JSON handler is for log
// shippers.
//
// Task and stage identifiers travel on the context (WithTask, WithStage) and
// are folded into loggers via WithContext so every line emitted during a
// pipeline run carries task_id and stage without threading them manually.
package logging
