package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Length returns the playback length of a WAV file.
func Length(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, ErrResourceUnavailable)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%s: not a wav file: %w", path, ErrResourceUnavailable)
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", path, err, ErrResourceUnavailable)
	}
	return dur, nil
}
