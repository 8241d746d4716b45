// Package downloader fetches source audio for the pipeline.
//
// Bare text input is treated as a YouTube search and URLs are fetched
// directly. yt-dlp extracts a 320K MP3 with restricted filenames, the frame
// walker probes its duration, and the original is uploaded to the artifact
// bucket before the separation stage runs.
package downloader
