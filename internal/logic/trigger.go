package logic

import (
	"sync"
	"time"

	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// TriggerKind names a daily power action.
type TriggerKind string

const (
	TriggerShutdown  TriggerKind = "shutdown"
	TriggerHibernate TriggerKind = "hibernation"
)

// TriggerConfig is the user-editable part of a daily trigger.
type TriggerConfig struct {
	Enabled bool
	At      schedule.TimeOfDay
}

// DailyTrigger fires at most once per calendar date.
type DailyTrigger struct {
	Kind TriggerKind

	mu        sync.Mutex
	cfg       TriggerConfig
	lastFired schedule.Date
}

// NewDailyTrigger creates a trigger of the given kind.
func NewDailyTrigger(kind TriggerKind, cfg TriggerConfig) *DailyTrigger {
	return &DailyTrigger{Kind: kind, cfg: cfg}
}

// Configure replaces the trigger settings. The last fired date is kept so a
// re-enable later the same day does not fire twice.
func (t *DailyTrigger) Configure(cfg TriggerConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// Config returns the current settings.
func (t *DailyTrigger) Config() TriggerConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Check returns true exactly once on a date, during second 0 of the
// configured minute, and records the date. The caller runs the action; a
// failed action is not retried until the next day.
func (t *DailyTrigger) Check(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cfg.Enabled || now.Second() != 0 {
		return false
	}
	if schedule.HHMM(now) != t.cfg.At.String() {
		return false
	}
	today := schedule.DateOf(now)
	if t.lastFired == today {
		return false
	}
	t.lastFired = today
	return true
}

// LastFired returns the date the trigger last fired.
func (t *DailyTrigger) LastFired() schedule.Date {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFired
}

// MarkFired restores a persisted last fired date.
func (t *DailyTrigger) MarkFired(date schedule.Date) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFired = date
}
