// Package analyzer extracts musical features from the fetched track.
//
// The heavy lifting happens in an external analyzer binary that prints a JSON
// object (key, tempo, and similar features) to stdout. The pipeline treats
// analysis as best effort: when it fails the bundle ships Placeholder()
// instead of failing the task.
package analyzer
