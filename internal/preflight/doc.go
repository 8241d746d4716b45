// Package preflight provides readiness checks for the directories, disk
// space, and external binaries the pipeline depends on.
//
// The daemon runs RunAll at startup and logs the outcome; the CLI status
// command renders the same results. Failures are advisory because an
// operator may intentionally run without the optional analyzer.
package preflight
