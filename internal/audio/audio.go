// Package audio plays bells, recordings and the alarm siren, and keeps the
// registry of named custom recordings.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// ErrResourceUnavailable is returned when a sound is unset, missing or cannot
// be decoded. Callers log it and carry on.
var ErrResourceUnavailable = errors.New("sound unavailable")

// Player plays sounds without blocking the caller.
// There are two channels: a one-shot track (bells, recordings, the minute of
// silence) and a looping siren. Starting a track replaces the current one.
type Player interface {
	Play(path string) error
	Stop()
	Loop(path string) error
	StopLoop()
	Looping() bool
}

// Sounds are the configured default sound files. Relative paths are resolved
// against BaseDir.
type Sounds struct {
	BaseDir     string
	LessonStart string
	LessonEnd   string
	Siren       string
	Silence     string
}

// Path resolves p against BaseDir. Empty stays empty.
func (s Sounds) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.BaseDir == "" {
		return p
	}
	return filepath.Join(s.BaseDir, p)
}

// Resolve turns a bell's sound reference into a file path. A named recording
// that has left reg since dispatch is unavailable.
func (s Sounds) Resolve(ref logic.SoundRef, reg *Registry) (string, error) {
	if ref.Kind == logic.SoundNamed {
		if rec, ok := reg.Get(ref.Name); ok {
			return s.checked(rec.Path)
		}
		return "", fmt.Errorf("recording %q: %w", ref.Name, ErrResourceUnavailable)
	}
	if ref.Boundary == logic.BoundaryEnd {
		return s.checked(s.LessonEnd)
	}
	return s.checked(s.LessonStart)
}

func (s Sounds) checked(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("no sound configured: %w", ErrResourceUnavailable)
	}
	full := s.Path(p)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("%s: %w", full, ErrResourceUnavailable)
	}
	return full, nil
}

// SirenPath returns the checked siren file.
func (s Sounds) SirenPath() (string, error) {
	return s.checked(s.Siren)
}

// SilencePath returns the checked minute of silence file.
func (s Sounds) SilencePath() (string, error) {
	return s.checked(s.Silence)
}
