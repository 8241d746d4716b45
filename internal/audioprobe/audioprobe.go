// Package audioprobe inspects downloaded audio files.
package audioprobe

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"
)

// Duration computes the playback length of an MP3 file by walking its frames.
// Frame walking is slower than trusting header metadata but survives files
// whose Xing/VBR headers are absent or wrong.
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("decode mp3 frame: %w", err)
		}
		total += frame.Duration()
	}
	return total, nil
}
