// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/sensory-game/internal/logic"
)

// DefaultPrefix is the topic prefix for all device messages.
const DefaultPrefix = "sensory/game"

// Topics are the MQTT topics the device publishes to.
type Topics struct {
	// Events carries game notices (phase changes, scores, game over).
	Events string
	// System carries lifecycle events (startup, shutdown, heartbeat).
	System string
}

// NewTopics derives the topics from a prefix. An empty prefix uses DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a game event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event GameEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// GameEvent is a controller notice stamped with time and session.
type GameEvent struct {
	Timestamp time.Time
	Session   string
	Notice    logic.Notice
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Game GamePayload `json:"game"`
}

// GamePayload contains the game event details.
type GamePayload struct {
	Timestamp string `json:"timestamp"`
	Session   string `json:"session,omitempty"`
	Event     string `json:"event"`
	Phase     string `json:"phase"`
	Mode      string `json:"mode"`
	Module    string `json:"module,omitempty"`
	Score     int    `json:"score"`
	Reason    string `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a game event.
func FormatPayload(event GameEvent) ([]byte, error) {
	n := event.Notice
	module := ""
	if n.Module != logic.ModuleNone {
		module = n.Module.String()
	}
	payload := Payload{
		Game: GamePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Session:   event.Session,
			Event:     string(n.Kind),
			Phase:     string(n.Phase),
			Mode:      string(n.Phase.Mode()),
			Module:    module,
			Score:     n.Score,
			Reason:    n.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
