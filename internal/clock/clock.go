// Package clock provides the engine's logical time: real time, optionally
// shifted by a fixed test offset so a whole school day can be rehearsed.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// State is the persisted part of the clock.
type State struct {
	TestMode bool
	Offset   time.Duration
}

// Clock returns logical time. Safe for concurrent use: the state is swapped
// as one pointer so readers never see a half-applied offset.
type Clock struct {
	real  func() time.Time
	state atomic.Pointer[State]
}

// New creates a Clock reading real time from now (time.Now when nil).
func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	c := &Clock{real: now}
	c.state.Store(&State{})
	return c
}

// Now returns real time plus the offset when test mode is on.
func (c *Clock) Now() time.Time {
	s := c.state.Load()
	t := c.real()
	if s.TestMode {
		return t.Add(s.Offset)
	}
	return t
}

// Real returns the unshifted time.
func (c *Clock) Real() time.Time {
	return c.real()
}

// EnableTest shifts logical time so that it reads hhmm right now, keeping the
// current seconds and sub-seconds. Time keeps running from that anchor.
func (c *Clock) EnableTest(hhmm string) error {
	tod, err := schedule.ParseTimeOfDay(hhmm)
	if err != nil {
		return err
	}
	real := c.real()
	target := time.Date(real.Year(), real.Month(), real.Day(),
		tod.Hour(), tod.Minute(), real.Second(), real.Nanosecond(), real.Location())
	c.state.Store(&State{TestMode: true, Offset: target.Sub(real)})
	return nil
}

// DisableTest returns to real time.
func (c *Clock) DisableTest() {
	c.state.Store(&State{})
}

// State returns the current test mode and offset.
func (c *Clock) State() State {
	return *c.state.Load()
}

// Restore applies persisted state. The offset is ignored unless test mode is on.
func (c *Clock) Restore(s State) {
	if !s.TestMode {
		s.Offset = 0
	}
	c.state.Store(&s)
}
