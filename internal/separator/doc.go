// Package separator runs Demucs to split a track into instrument stems.
package separator
