package logic

import (
	"sync"
	"time"
)

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Bells        int
	Alarms       int
	Silences     int
	PowerActions int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// Counter accumulates event counts and paces heartbeats.
type Counter struct {
	mu            sync.Mutex
	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
}

// NewCounter creates a counter. The startTime is used for calculating uptime
// in heartbeat events.
func NewCounter(startTime time.Time) *Counter {
	return &Counter{startTime: startTime, lastHeartbeat: startTime}
}

// AddBell counts n dispatched bells.
func (c *Counter) AddBell(n int) {
	c.mu.Lock()
	c.counts.Bells += n
	c.mu.Unlock()
}

// AddAlarm counts an alarm entry.
func (c *Counter) AddAlarm() {
	c.mu.Lock()
	c.counts.Alarms++
	c.mu.Unlock()
}

// AddSilence counts a minute of silence entry.
func (c *Counter) AddSilence() {
	c.mu.Lock()
	c.counts.Silences++
	c.mu.Unlock()
}

// AddPowerAction counts a fired daily trigger.
func (c *Counter) AddPowerAction() {
	c.mu.Lock()
	c.counts.PowerActions++
	c.mu.Unlock()
}

// Snapshot returns a copy of the counts.
func (c *Counter) Snapshot() EventCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Counter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}
	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
