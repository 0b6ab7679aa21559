// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// Topic is the MQTT topic for bell events.
const Topic = "school/bell/events"

// TopicSystem is the MQTT topic for system and priority state events.
const TopicSystem = "school/bell/system"

// System event names.
const (
	EventStartup        = "STARTUP"
	EventShutdown       = "SHUTDOWN"
	EventHeartbeat      = "HEARTBEAT"
	EventReconnected    = "RECONNECTED"
	EventAlarmOn        = "ALARM_ON"
	EventAlarmOff       = "ALARM_OFF"
	EventSilenceStart   = "SILENCE_START"
	EventSilenceEnd     = "SILENCE_END"
	EventPowerShutdown  = "POWER_SHUTDOWN"
	EventPowerHibernate = "POWER_HIBERNATE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a bell event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.BellEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle or priority state event.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "ALARM_ON", "POWER_SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only), error text for failed power actions
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Bell BellPayload `json:"bell"`
}

// BellPayload contains the bell event details.
type BellPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Period    int    `json:"period"`
	Time      string `json:"time"`
	Sound     string `json:"sound"`
}

// EventName maps a boundary to its published event name.
func EventName(b logic.Boundary) string {
	if b == logic.BoundaryEnd {
		return "LESSON_END"
	}
	return "LESSON_START"
}

// FormatPayload creates the JSON payload for a bell event with a fresh id.
func FormatPayload(event logic.BellEvent) ([]byte, error) {
	payload := Payload{
		Bell: BellPayload{
			ID:        uuid.NewString(),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     EventName(event.Boundary),
			Period:    event.Seq,
			Time:      event.Key.HHMM,
			Sound:     event.Sound.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, ALARM_ON) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
