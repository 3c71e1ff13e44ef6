package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensory-game/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Phase         string       `json:"phase"`
	Module        string       `json:"module,omitempty"`
	Score         int          `json:"score"`
	Display       string       `json:"display"`
	Lights        []string     `json:"lights"`
	Instruction   string       `json:"instruction"`
	Motor         MotorJSON    `json:"motor"`
	Sensors       []SensorJSON `json:"sensors"`
	Sessions      SessionsJSON `json:"sessions"`
	Queues        []QueueJSON  `json:"queues,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MotorJSON reports the vibration motor.
type MotorJSON struct {
	State   string `json:"state"`
	Duty    int    `json:"duty"`
	Reading int    `json:"reading"`
}

// SensorJSON reports one input channel.
type SensorJSON struct {
	Channel   string `json:"channel"`
	Triggered bool   `json:"triggered"`
	Triggers  int    `json:"triggers"`
}

// SessionsJSON reports play since startup.
type SessionsJSON struct {
	Current     string `json:"current,omitempty"`
	GamesPlayed int    `json:"games_played"`
	ZenSessions int    `json:"zen_sessions"`
	LastScore   int    `json:"last_score"`
	HighScore   int    `json:"high_score"`
}

// QueueJSON reports one dispatch queue.
type QueueJSON struct {
	Name    string `json:"name"`
	Queued  int    `json:"queued"`
	Handled int    `json:"handled"`
	Dropped int    `json:"dropped"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
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
	PollMs      int64  `json:"poll_ms"`
	AnalogMs    int64  `json:"analog_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Simulated   bool   `json:"simulated"`
}

// LitModules lists the modules whose light is on, in module order.
func LitModules(mask logic.LightMask) []string {
	lit := []string{}
	for m := logic.Module(0); m < logic.NumModules; m++ {
		if mask.Has(m) {
			lit = append(lit, m.String())
		}
	}
	return lit
}

// Sensors lists every input channel with its level and trigger count.
func Sensors(d Device) []SensorJSON {
	sensors := make([]SensorJSON, logic.NumChannels)
	for i := range sensors {
		sensors[i] = SensorJSON{
			Channel:   logic.Channel(i).String(),
			Triggered: d.Levels[i] == logic.Triggered,
			Triggers:  d.Triggers[i],
		}
	}
	return sensors
}

func buildInner(snap Snapshot) StatusInner {
	d := snap.Device
	phase := d.Phase
	if phase == "" {
		phase = logic.PhaseIdle
	}
	module := ""
	if d.Module != logic.ModuleNone {
		module = d.Module.String()
	}
	instruction := string(d.Instruct)
	if instruction == "" {
		instruction = string(logic.InstructWaiting)
	}
	motor := string(d.Motor)
	if motor == "" {
		motor = string(logic.MotorOff)
	}

	var queues []QueueJSON
	for _, q := range snap.Queues {
		queues = append(queues, QueueJSON(q))
	}

	return StatusInner{
		Mode:        string(phase.Mode()),
		Phase:       string(phase),
		Module:      module,
		Score:       d.Score,
		Display:     snap.Display,
		Lights:      LitModules(d.Lights),
		Instruction: instruction,
		Motor:       MotorJSON{State: motor, Duty: d.Duty, Reading: d.Reading},
		Sensors:     Sensors(d),
		Sessions: SessionsJSON{
			Current:     snap.Sessions.Current,
			GamesPlayed: snap.Sessions.GamesPlayed,
			ZenSessions: snap.Sessions.ZenSessions,
			LastScore:   snap.Sessions.LastScore,
			HighScore:   snap.Sessions.HighScore,
		},
		Queues:        queues,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			AnalogMs:    snap.Config.AnalogMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Simulated:   snap.Config.Simulated,
		},
	}
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
