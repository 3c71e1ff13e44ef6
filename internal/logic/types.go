// Package logic contains the behavioral core of the sensory game device:
// the mode/game state machine, the sensor monitor and inactivity watchdog,
// the vibration motor machine and the instruction presenter.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Every suspension is expressed as a named timer through the Timers interface.
package logic

import "time"

// EventType identifies an entry in the closed event catalog.
type EventType string

const (
	EventNone         EventType = "NO_EVENT"
	EventInit         EventType = "INIT"
	EventError        EventType = "ERROR"
	EventTimeout      EventType = "TIMEOUT"
	EventTrigger      EventType = "TRIGGER"
	EventNoTrigger    EventType = "NO_TRIGGER"
	EventGameButton   EventType = "GAME_BUTTON"
	EventZenButton    EventType = "ZEN_BUTTON"
	EventTouch        EventType = "TOUCH"
	EventShake        EventType = "SHAKE"
	EventSqueeze      EventType = "SQUEEZE"
	EventWave         EventType = "WAVE"
	EventInstruct     EventType = "INSTRUCT"
	EventStopInstruct EventType = "STOP_INSTRUCT"
	EventStartMotor   EventType = "START_MOTOR"
	EventStopMotor    EventType = "STOP_MOTOR"
	EventAddChar      EventType = "ADD_CHAR"
	EventAddString    EventType = "ADD_STRING"
)

// Event is a single message delivered to a component.
type Event struct {
	Type  EventType
	Param uint32

	// Timer names the expired timer (EventTimeout only).
	Timer TimerName

	// Module and Score carry the instruct payload (EventInstruct only).
	Module Module
	Score  int

	// Text is the closing line (EventStopInstruct only). The presenter
	// shows it after any refresh already queued ahead of the stop.
	Text string
}

// NoEvent is returned by Run when a handler completed normally.
var NoEvent = Event{Type: EventNone}

// TimeoutEvent builds the expiration event for a named timer.
func TimeoutEvent(name TimerName) Event {
	return Event{Type: EventTimeout, Timer: name}
}

// InstructEvent builds an instruct command for the presenter.
func InstructEvent(m Module, score int) Event {
	return Event{Type: EventInstruct, Module: m, Score: score}
}

// StopInstructEvent stops the presenter and leaves text on the display.
func StopInstructEvent(text string) Event {
	return Event{Type: EventStopInstruct, Text: text}
}

// TimerName identifies a restartable single-shot countdown.
type TimerName string

const (
	TimerGame           TimerName = "GameTimer"
	TimerModule         TimerName = "ModuleTimer"
	TimerBlinkLight     TimerName = "BlinkLightTimer"
	TimerIdleLight      TimerName = "IdleLightTimer"
	TimerVibration      TimerName = "VibrationTimer"
	TimerNoTrigger      TimerName = "NoTriggerTimer"
	TimerNoTriggerLight TimerName = "NoTriggerLightTimer"
	TimerNoTrigBlink    TimerName = "NoTrigBlinkLight"
	TimerStateEnd       TimerName = "StateEndTimer"
	TimerInstruct       TimerName = "InstructTimer"
	TimerAudioPulse     TimerName = "AudioPulseTimer"
)

// Timers starts and stops named timers owned by one component.
// Starting a running timer supersedes its previous deadline.
// Expirations come back to the owner as TimeoutEvent(name).
type Timers interface {
	Start(name TimerName, d time.Duration)
	Stop(name TimerName)
}

// Poster enqueues an event for another component.
// It returns false only when the destination queue is full.
type Poster interface {
	Post(ev Event) bool
}

// PosterFunc adapts a function to the Poster interface.
type PosterFunc func(ev Event) bool

// Post calls f(ev).
func (f PosterFunc) Post(ev Event) bool {
	return f(ev)
}

// Module is one of the four sensor channels used as a game target.
type Module int

const (
	ModuleTouch Module = iota
	ModuleShake
	ModuleSqueeze
	ModuleWave
	ModuleNone
)

// NumModules is the number of real (lightable) modules.
const NumModules = 4

func (m Module) String() string {
	switch m {
	case ModuleTouch:
		return "TOUCH"
	case ModuleShake:
		return "SHAKE"
	case ModuleSqueeze:
		return "SQUEEZE"
	case ModuleWave:
		return "WAVE"
	}
	return "NONE"
}

// moduleForEvent maps a sensor trigger to its module.
func moduleForEvent(t EventType) (Module, bool) {
	switch t {
	case EventTouch:
		return ModuleTouch, true
	case EventShake:
		return ModuleShake, true
	case EventSqueeze:
		return ModuleSqueeze, true
	case EventWave:
		return ModuleWave, true
	}
	return ModuleNone, false
}

// LightMask has one bit per module indicator light.
type LightMask uint8

const (
	NoLights  LightMask = 0
	AllLights LightMask = 1<<NumModules - 1
)

// LightFor returns the mask with only m's light set. ModuleNone yields NoLights.
func LightFor(m Module) LightMask {
	if m < 0 || m >= ModuleNone {
		return NoLights
	}
	return 1 << uint(m)
}

// Has reports whether m's light is set.
func (l LightMask) Has(m Module) bool {
	return l&LightFor(m) != 0 && m != ModuleNone
}

// Cue selects one of the two audio trigger lines.
type Cue int

const (
	CueGame Cue = iota
	CueZen
)

func (c Cue) String() string {
	if c == CueZen {
		return "ZEN"
	}
	return "GAME"
}

// Display shows a line of text on the device's dot-matrix display.
type Display interface {
	ShowString(text string)
}

// Lights drives the four module indicator lights.
type Lights interface {
	SetLights(mask LightMask)
}

// Audio drives the trigger lines of the external sound module.
// Lines idle high; the game cue toggles its line, the zen cue pulses low.
type Audio interface {
	SetLine(cue Cue, high bool)
}

// PWM sets the vibration motor duty cycle in percent.
type PWM interface {
	SetDuty(percent int)
}

// Analog reads the intensity knob.
type Analog interface {
	Read() (int, error)
}

// Random draws uniformly from [0, n).
type Random interface {
	Intn(n int) int
}
