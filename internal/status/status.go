// Package status provides a thread-safe status tracker for the bell-scheduler daemon.
// It is read by HTTP handlers, the websocket feed and MQTT heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	WorkerMs    int64
	RenderMs    int64
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	RelayPin    int
}

// TriggerInfo describes one daily power trigger.
type TriggerInfo struct {
	Enabled   bool
	At        string // HH:MM
	LastFired string // YYYY-MM-DD, empty if never
}

// BellInfo describes the most recent bell.
type BellInfo struct {
	Time     time.Time
	Seq      int
	Boundary logic.Boundary
	Sound    string
}

// Engine is the engine-owned part of a snapshot, replaced as a whole on
// every worker tick.
type Engine struct {
	Display    logic.DisplayState
	LogicalNow time.Time
	TestMode   bool
	Offset     time.Duration
	Alarm      bool
	Silence    logic.SilenceState
	SilentMode bool
	Periods    int
	FiredToday int
	Counts     logic.EventCounts
	Shutdown   TriggerInfo
	Hibernate  TriggerInfo
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Engine
	LastBell      *BellInfo
	LastPoll      string
	LastPollTime  time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the engine state. Called from the worker on every tick.
func (t *Tracker) Update(e Engine) {
	t.mu.Lock()
	t.snap.Engine = e
	t.mu.Unlock()
}

// SetLastBell records the most recent bell.
func (t *Tracker) SetLastBell(b BellInfo) {
	t.mu.Lock()
	t.snap.LastBell = &b
	t.mu.Unlock()
}

// SetPoll records the outcome of the latest alert poll.
func (t *Tracker) SetPoll(result string, at time.Time) {
	t.mu.Lock()
	t.snap.LastPoll = result
	t.snap.LastPollTime = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastBell != nil {
		b := *s.LastBell
		s.LastBell = &b
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
