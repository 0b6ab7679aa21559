// Package logic contains the pure rules of the bell engine: exactly-once
// boundary dispatch, the minute of silence window, daily triggers and the
// priority projection of what the screen should show.
// This package has NO external dependencies (no audio, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// Boundary is one edge of a period.
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryEnd   Boundary = "end"
)

// SoundKind distinguishes the configured default bell from a named recording.
type SoundKind int

const (
	SoundDefault SoundKind = iota
	SoundNamed
)

// SoundRef says what to play for a bell. It is resolved to a file by the
// caller against its recording registry and settings.
type SoundRef struct {
	Kind     SoundKind
	Boundary Boundary // which default bell, SoundDefault only
	Name     string   // recording name, SoundNamed only
}

// DefaultSound returns the default bell for the boundary.
func DefaultSound(b Boundary) SoundRef {
	return SoundRef{Kind: SoundDefault, Boundary: b}
}

// NamedSound returns a reference to a custom recording.
func NamedSound(name string) SoundRef {
	return SoundRef{Kind: SoundNamed, Name: name}
}

func (s SoundRef) String() string {
	if s.Kind == SoundNamed {
		return "recording:" + s.Name
	}
	return "default:" + string(s.Boundary)
}

// FiringKey identifies one occurrence of a boundary on one day.
type FiringKey struct {
	Date     schedule.Date
	HHMM     string
	Boundary Boundary
	Seq      int
}

func (k FiringKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Date, k.HHMM, k.Boundary, k.Seq)
}

// ParseFiringKey is the inverse of FiringKey.String.
func ParseFiringKey(s string) (FiringKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return FiringKey{}, fmt.Errorf("firing key %q: want 4 fields", s)
	}
	date, err := schedule.ParseDate(parts[0])
	if err != nil {
		return FiringKey{}, fmt.Errorf("firing key %q: %w", s, err)
	}
	if !schedule.IsHHMM(parts[1]) {
		return FiringKey{}, fmt.Errorf("firing key %q: %w", s, schedule.ErrInvalidTimeFormat)
	}
	b := Boundary(parts[2])
	if b != BoundaryStart && b != BoundaryEnd {
		return FiringKey{}, fmt.Errorf("firing key %q: unknown boundary", s)
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil {
		return FiringKey{}, fmt.Errorf("firing key %q: %w", s, err)
	}
	return FiringKey{Date: date, HHMM: parts[1], Boundary: b, Seq: seq}, nil
}

// BellEvent is a boundary that must be rung now.
type BellEvent struct {
	Timestamp time.Time
	Key       FiringKey
	Seq       int
	Boundary  Boundary
	Sound     SoundRef
}

// Recordings reports whether a named recording is registered.
type Recordings interface {
	Has(name string) bool
}
