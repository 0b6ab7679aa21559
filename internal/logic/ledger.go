package logic

import (
	"sync"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// Ledger remembers which firing keys were dispatched today.
// The worker is the only writer; other actors may read concurrently.
type Ledger struct {
	mu       sync.RWMutex
	lastSeen schedule.Date
	fired    map[FiringKey]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{fired: make(map[FiringKey]struct{})}
}

// NoteTick must be called at the start of every worker iteration. On the
// first tick of a new date the fired set is cleared in full. Reports whether
// a reset happened.
func (l *Ledger) NoteTick(date schedule.Date) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if date == l.lastSeen {
		return false
	}
	l.lastSeen = date
	clear(l.fired)
	return true
}

// TryFire records key and returns true if it was not already present.
func (l *Ledger) TryFire(key FiringKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fired[key]; ok {
		return false
	}
	l.fired[key] = struct{}{}
	return true
}

// Fired reports whether key was dispatched.
func (l *Ledger) Fired(key FiringKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.fired[key]
	return ok
}

// Len returns the number of keys fired since the last reset.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fired)
}

// Seed restores keys persisted earlier for date, e.g. after a restart.
// Keys for other dates are ignored.
func (l *Ledger) Seed(date schedule.Date, keys []FiringKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if date != l.lastSeen {
		l.lastSeen = date
		clear(l.fired)
	}
	for _, k := range keys {
		if k.Date == date {
			l.fired[k] = struct{}{}
		}
	}
}
