package logic

import (
	"sync"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// Minute of silence defaults.
const (
	DefaultSilenceAt       = schedule.TimeOfDay(9 * 3600)
	DefaultSilenceDuration = 60 * time.Second
	MinSilenceDuration     = 5 * time.Second
	SilenceArmWindow       = 2 // seconds after DefaultSilenceAt during which entry is allowed
)

// SilenceTransition is the outcome of one Silence.Tick.
type SilenceTransition int

const (
	SilenceNone SilenceTransition = iota
	SilenceEntered
	SilenceExited
	SilenceCleared // feature disabled while active
)

func (t SilenceTransition) String() string {
	switch t {
	case SilenceEntered:
		return "ENTERED"
	case SilenceExited:
		return "EXITED"
	case SilenceCleared:
		return "CLEARED"
	}
	return "NONE"
}

// SilenceInput is what Silence.Tick needs besides the time.
type SilenceInput struct {
	Enabled bool
	Alarm   bool
	// Duration is consulted only on entry. Nil means DefaultSilenceDuration.
	Duration func() time.Duration
}

// SilenceState is a consistent copy of the window.
type SilenceState struct {
	LastFired schedule.Date
	Active    bool
	End       time.Time
}

// Silence is the once-a-day minute of silence window. All three fields change
// together under one lock so readers never see Active without End.
type Silence struct {
	mu    sync.RWMutex
	at    schedule.TimeOfDay
	state SilenceState
}

// NewSilence creates a window armed at the given time of day.
func NewSilence(at schedule.TimeOfDay) *Silence {
	return &Silence{at: at}
}

// Tick advances the window at now. Disabling clears an active window before
// any other rule. While the alarm is active nothing else changes. The entry
// duration is measured without holding the lock so readers never wait on it.
func (s *Silence) Tick(now time.Time, in SilenceInput) (SilenceTransition, SilenceState) {
	tr, st, arm := s.advance(now, in)
	if !arm {
		return tr, st
	}

	d := DefaultSilenceDuration
	if in.Duration != nil {
		d = in.Duration()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	today := schedule.DateOf(now)
	if s.state.Active || s.state.LastFired == today {
		return SilenceNone, s.state
	}
	s.state = SilenceState{LastFired: today, Active: true, End: now.Add(d)}
	return SilenceEntered, s.state
}

// advance applies every rule except entry. arm reports that now is inside
// today's arming window and entry should be committed.
func (s *Silence) advance(now time.Time, in SilenceInput) (tr SilenceTransition, st SilenceState, arm bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !in.Enabled {
		if s.state.Active {
			s.state.Active = false
			s.state.End = time.Time{}
			return SilenceCleared, s.state, false
		}
		return SilenceNone, s.state, false
	}
	if in.Alarm {
		return SilenceNone, s.state, false
	}

	if s.state.Active {
		if !now.Before(s.state.End) {
			s.state.Active = false
			s.state.End = time.Time{}
			return SilenceExited, s.state, false
		}
		return SilenceNone, s.state, false
	}

	if s.state.LastFired == schedule.DateOf(now) {
		return SilenceNone, s.state, false
	}
	tod := schedule.TimeOfDayOf(now)
	if tod < s.at || tod > s.at+SilenceArmWindow {
		return SilenceNone, s.state, false
	}
	return SilenceNone, s.state, true
}

// State returns a copy of the window.
func (s *Silence) State() SilenceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Active reports whether the window is open.
func (s *Silence) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Active
}

// MarkFired records that today's window already ran, e.g. after a restart.
func (s *Silence) MarkFired(date schedule.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastFired = date
}

// SilenceDuration converts a sound's playback length to a window length:
// whole seconds plus one, at least MinSilenceDuration. A zero length means
// the sound could not be measured.
func SilenceDuration(length time.Duration) time.Duration {
	if length <= 0 {
		return DefaultSilenceDuration
	}
	d := length.Truncate(time.Second) + time.Second
	if d < MinSilenceDuration {
		return MinSilenceDuration
	}
	return d
}
