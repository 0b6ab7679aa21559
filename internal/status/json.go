package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Display       DisplayJSON  `json:"display"`
	Clock         ClockJSON    `json:"clock"`
	Alarm         bool         `json:"alarm"`
	Silence       SilenceJSON  `json:"minute_of_silence"`
	SilentMode    bool         `json:"silent_mode"`
	Periods       int          `json:"periods"`
	FiredToday    int          `json:"fired_today"`
	LastBell      *BellJSON    `json:"last_bell,omitempty"`
	LastPoll      string       `json:"last_poll,omitempty"`
	Triggers      TriggersJSON `json:"triggers"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DisplayJSON is what the screen shows.
type DisplayJSON struct {
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Countdown string  `json:"countdown,omitempty"`
	Progress  float64 `json:"progress"`
}

// ClockJSON reports logical time and the test offset.
type ClockJSON struct {
	Time          string `json:"time"`
	TestMode      bool   `json:"test_mode"`
	OffsetSeconds int64  `json:"offset_seconds"`
}

// SilenceJSON reports the minute of silence window.
type SilenceJSON struct {
	Active    bool   `json:"active"`
	End       string `json:"end,omitempty"`
	LastFired string `json:"last_fired,omitempty"`
}

// BellJSON describes the most recent bell.
type BellJSON struct {
	Timestamp string `json:"timestamp"`
	Period    int    `json:"period"`
	Boundary  string `json:"boundary"`
	Sound     string `json:"sound"`
}

// TriggerJSON is one daily power trigger.
type TriggerJSON struct {
	Enabled   bool   `json:"enabled"`
	Time      string `json:"time"`
	LastFired string `json:"last_fired,omitempty"`
}

// TriggersJSON holds both power triggers.
type TriggersJSON struct {
	Shutdown  TriggerJSON `json:"shutdown"`
	Hibernate TriggerJSON `json:"hibernation"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Bells        int `json:"bells"`
	Alarms       int `json:"alarms"`
	Silences     int `json:"silences"`
	PowerActions int `json:"power_actions"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WorkerMs    int64  `json:"worker_ms"`
	RenderMs    int64  `json:"render_ms"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	RelayPin    int    `json:"relay_pin,omitempty"`
}

// BuildDisplay converts the snapshot's display state for JSON consumers.
func BuildDisplay(snap Snapshot) DisplayJSON {
	return DisplayOf(snap.Display)
}

// DisplayOf converts a display state for JSON consumers.
func DisplayOf(d logic.DisplayState) DisplayJSON {
	kind := string(d.Kind)
	if kind == "" {
		kind = "UNKNOWN"
	}
	return DisplayJSON{
		Kind:      kind,
		Title:     d.Title(),
		Countdown: d.Countdown(),
		Progress:  d.Fraction,
	}
}

func trigger(t TriggerInfo) TriggerJSON {
	return TriggerJSON{Enabled: t.Enabled, Time: t.At, LastFired: t.LastFired}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Display: BuildDisplay(snap),
		Clock: ClockJSON{
			TestMode:      snap.TestMode,
			OffsetSeconds: int64(snap.Offset / time.Second),
		},
		Alarm:         snap.Alarm,
		Silence:       SilenceJSON{Active: snap.Silence.Active},
		SilentMode:    snap.SilentMode,
		Periods:       snap.Periods,
		FiredToday:    snap.FiredToday,
		LastPoll:      snap.LastPoll,
		Triggers:      TriggersJSON{Shutdown: trigger(snap.Shutdown), Hibernate: trigger(snap.Hibernate)},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Bells:        snap.Counts.Bells,
			Alarms:       snap.Counts.Alarms,
			Silences:     snap.Counts.Silences,
			PowerActions: snap.Counts.PowerActions,
		},
		Config: ConfigJSON{
			WorkerMs:    snap.Config.WorkerMs,
			RenderMs:    snap.Config.RenderMs,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			RelayPin:    snap.Config.RelayPin,
		},
	}
	if !snap.LogicalNow.IsZero() {
		inner.Clock.Time = snap.LogicalNow.Format("2006-01-02T15:04:05")
	}
	if !snap.Silence.End.IsZero() {
		inner.Silence.End = snap.Silence.End.Format("15:04:05")
	}
	if !snap.Silence.LastFired.IsZero() {
		inner.Silence.LastFired = snap.Silence.LastFired.String()
	}
	if b := snap.LastBell; b != nil {
		inner.LastBell = &BellJSON{
			Timestamp: b.Time.Format("2006-01-02T15:04:05"),
			Period:    b.Seq,
			Boundary:  string(b.Boundary),
			Sound:     b.Sound,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
