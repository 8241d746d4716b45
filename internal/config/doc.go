// Package config loads, normalizes, and validates StemSense configuration.
//
// Configuration lives in a TOML file (~/.config/stemsense/config.toml by
// default, or stemsense.toml in the working directory). Load applies the
// repository defaults first, then overlays the file when one exists, expands
// all path fields to absolute paths, and validates the result. A sample
// config with documentation comments is embedded and written by
// 'stemsense config init'.
//
// Keep every tunable here rather than scattering environment lookups through
// the codebase; the only env fallback is STEMSENSE_SIGNING_SECRET for the
// artifact URL signing secret.
package config
