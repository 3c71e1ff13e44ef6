// Package status provides a thread-safe status tracker for the sensory-game daemon.
// It is read by HTTP handlers and by the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensory-game/internal/logic"
)

// NetworkInfo contains network state reported by the host environment.
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
	PollMs      int64
	AnalogMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Simulated   bool
}

// Device is the state of the game components, sampled once per poll tick.
type Device struct {
	Phase    logic.Phase
	Module   logic.Module
	Score    int
	Lights   logic.LightMask
	Instruct logic.InstructionState
	Motor    logic.MotorState
	Duty     int
	Reading  int
	Levels   logic.Sample
	Triggers [logic.NumChannels]int
}

// QueueStats mirrors the dispatch runtime counters for one component.
// This is a local copy to avoid importing internal/dispatch from status.
type QueueStats struct {
	Name    string
	Queued  int
	Handled int
	Dropped int
}

// Sessions summarises play since startup.
type Sessions struct {
	Current     string // id of the running game or zen session, empty in idle
	GamesPlayed int
	ZenSessions int
	LastScore   int
	HighScore   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Device        Device
	Display       string
	Sessions      Sessions
	Queues        []QueueStats
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
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Device:    Device{Phase: logic.PhaseIdle, Module: logic.ModuleNone},
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the component state. Called from the run loop on every tick.
func (t *Tracker) Update(d Device) {
	t.mu.Lock()
	t.snap.Device = d
	t.mu.Unlock()
}

// ShowString records the text on the character display, so the tracker
// can stand in as a logic.Display next to the real one.
func (t *Tracker) ShowString(text string) {
	t.mu.Lock()
	t.snap.Display = text
	t.mu.Unlock()
}

// SetQueues records the dispatch queue counters.
func (t *Tracker) SetQueues(q []QueueStats) {
	t.mu.Lock()
	t.snap.Queues = append(t.snap.Queues[:0], q...)
	t.mu.Unlock()
}

// BeginSession marks a game or zen session as running.
func (t *Tracker) BeginSession(id string) {
	t.mu.Lock()
	t.snap.Sessions.Current = id
	t.mu.Unlock()
}

// FinishGame records a finished game and its final score.
func (t *Tracker) FinishGame(score int) {
	t.mu.Lock()
	s := &t.snap.Sessions
	s.Current = ""
	s.GamesPlayed++
	s.LastScore = score
	if score > s.HighScore {
		s.HighScore = score
	}
	t.mu.Unlock()
}

// FinishZen records a finished zen session.
func (t *Tracker) FinishZen() {
	t.mu.Lock()
	t.snap.Sessions.Current = ""
	t.snap.Sessions.ZenSessions++
	t.mu.Unlock()
}

// SetHighScore seeds the high score, e.g. from stored history.
func (t *Tracker) SetHighScore(score int) {
	t.mu.Lock()
	if score > t.snap.Sessions.HighScore {
		t.snap.Sessions.HighScore = score
	}
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
	s.Queues = append([]QueueStats(nil), t.snap.Queues...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
