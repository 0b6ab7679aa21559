package logic

import (
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// Gates are the suppression flags read at the start of a worker tick.
type Gates struct {
	Alarm   bool
	Silence bool
	Silent  bool
}

// Suppressed reports whether any gate blocks bell dispatch.
func (g Gates) Suppressed() bool {
	return g.Alarm || g.Silence || g.Silent
}

// Dispatcher decides which boundaries ring on a worker tick.
type Dispatcher struct {
	ledger *Ledger
}

// NewDispatcher creates a dispatcher recording firings in ledger.
func NewDispatcher(ledger *Ledger) *Dispatcher {
	return &Dispatcher{ledger: ledger}
}

// Tick runs one worker iteration at now. The ledger always observes the date
// first, even when dispatch is suppressed. Boundaries are checked only during
// the first second of a minute; every matching boundary whose key is not yet
// in the ledger is marked fired and returned once.
func (d *Dispatcher) Tick(now time.Time, tt *schedule.Timetable, gates Gates, recs Recordings) []BellEvent {
	date := schedule.DateOf(now)
	d.ledger.NoteTick(date)

	if gates.Suppressed() || now.Second() != 0 {
		return nil
	}

	hhmm := schedule.HHMM(now)
	var events []BellEvent
	for _, p := range tt.Periods() {
		for _, b := range []Boundary{BoundaryStart, BoundaryEnd} {
			at := p.Start
			if b == BoundaryEnd {
				at = p.End
			}
			if at.String() != hhmm {
				continue
			}
			key := FiringKey{Date: date, HHMM: hhmm, Boundary: b, Seq: p.Seq}
			if !d.ledger.TryFire(key) {
				continue
			}
			events = append(events, BellEvent{
				Timestamp: now,
				Key:       key,
				Seq:       p.Seq,
				Boundary:  b,
				Sound:     resolveSound(p.Recording(b == BoundaryStart), b, recs),
			})
		}
	}
	return events
}

// resolveSound picks the named recording when it is registered, otherwise the
// default bell for the boundary.
func resolveSound(name string, b Boundary, recs Recordings) SoundRef {
	if name != "" && recs != nil && recs.Has(name) {
		return NamedSound(name)
	}
	return DefaultSound(b)
}
