package logic

import "time"

// Mode is the top-level operating context.
type Mode string

const (
	ModeIdle Mode = "IDLE"
	ModeGame Mode = "GAME"
	ModeZen  Mode = "ZEN"
)

// GameState is the nested state of the game sub-machine.
type GameState string

const (
	GameStartUp        GameState = "START_UP"
	GameActivateModule GameState = "ACTIVATE_MODULE"
	GameWaitForTrigger GameState = "WAIT_FOR_TRIGGER"
	GameEndGame        GameState = "END_GAME"
)

// Phase is the composite (Mode, GameState) of the controller. Only the
// combinations listed here exist, so a game state outside Game mode
// cannot be represented.
type Phase string

const (
	PhaseIdle               Phase = "IDLE"
	PhaseGameStartUp        Phase = "GAME/START_UP"
	PhaseGameActivateModule Phase = "GAME/ACTIVATE_MODULE"
	PhaseGameWaitForTrigger Phase = "GAME/WAIT_FOR_TRIGGER"
	PhaseGameEndGame        Phase = "GAME/END_GAME"
	PhaseZen                Phase = "ZEN"
)

// Mode returns the top-level mode of p.
func (p Phase) Mode() Mode {
	switch p {
	case PhaseGameStartUp, PhaseGameActivateModule, PhaseGameWaitForTrigger, PhaseGameEndGame:
		return ModeGame
	case PhaseZen:
		return ModeZen
	}
	return ModeIdle
}

// GameState returns the nested game state, or false outside Game mode.
func (p Phase) GameState() (GameState, bool) {
	switch p {
	case PhaseGameStartUp:
		return GameStartUp, true
	case PhaseGameActivateModule:
		return GameActivateModule, true
	case PhaseGameWaitForTrigger:
		return GameWaitForTrigger, true
	case PhaseGameEndGame:
		return GameEndGame, true
	}
	return "", false
}

// Timer durations used by the controller.
const (
	GameDuration       = 60 * time.Second
	ZenDuration        = 60 * time.Second
	ModuleWindow       = 8 * time.Second
	StateEndDelay      = 15 * time.Second
	ZenInactiveRestart = 100 * time.Millisecond
	InactiveFlourish   = 3 * time.Second
	InactiveStrobeLead = 10 * time.Millisecond
	InactiveStrobe     = 5 * time.Millisecond
	AudioPulse         = 100 * time.Millisecond

	PowerOnDelay      = time.Second
	IdleLightPeriod   = 500 * time.Millisecond
	IdleRestartPeriod = 100 * time.Millisecond
	ZenFastStart      = 100 * time.Millisecond

	BlinkPeriod      = 100 * time.Millisecond
	TouchBlinkPeriod = 300 * time.Millisecond
	ZenBlinkLit      = 300 * time.Millisecond
	ZenBlinkDark     = 150 * time.Millisecond
	ZenIdleLit       = 600 * time.Millisecond
	ZenIdleDark      = 250 * time.Millisecond
	ZenMotorOn       = 1400 * time.Millisecond
	ZenMotorOff      = 600 * time.Millisecond
)

// Toggle and ramp limits.
const (
	GameBlinkToggles   = 10
	ZenBlinkToggles    = 13
	StrobeToggles      = 50
	RampHigh           = 50
	RampLow            = 20
	GameStartPulseDuty = 1
)

// NoticeKind classifies controller notices.
type NoticeKind string

const (
	NoticePhase    NoticeKind = "PHASE"
	NoticeScore    NoticeKind = "SCORE"
	NoticeInactive NoticeKind = "INACTIVE"
	NoticeGameOver NoticeKind = "GAME_OVER"
	NoticeZenOver  NoticeKind = "ZEN_OVER"
	NoticeGreet    NoticeKind = "GREET"
)

// Reasons carried by GameOver and ZenOver notices.
const (
	ReasonTimeUp   = "TIME_UP"
	ReasonInactive = "INACTIVE"
)

// Notice reports something observable about the controller to outer layers
// (telemetry, status, history). It is informational only.
type Notice struct {
	Kind   NoticeKind
	Phase  Phase
	Module Module
	Score  int
	Reason string
}

// Listener receives controller notices. Implementations must not block.
type Listener interface {
	Notify(n Notice)
}

// Deps are the collaborators of the Controller.
type Deps struct {
	Timers  Timers
	Display Display
	Lights  Lights
	Audio   Audio
	// PWM is the raw motor channel used by the idle ramp and start pulse.
	PWM PWM
	// Motor receives StartMotor/StopMotor commands.
	Motor Poster
	// Instruct receives Instruct/StopInstruct commands.
	Instruct Poster
	Random   Random
	// Listener is optional.
	Listener Listener
}

// Controller is the top-level mode machine. It owns the score and the
// active module and is the only issuer of commands to the other components.
type Controller struct {
	Deps

	phase  Phase
	score  int
	active Module
	lit    LightMask

	// idle choreography
	idleLight Module
	rampDuty  int
	rampUp    bool

	// zen choreography
	zenIdleBlinks int
	zenVibrations int

	blinkModule Module
	blinkCount  int
	strobeCount int
	inactive    bool
	gameLine    bool
}

type phaseHandler func(c *Controller, ev Event)

// phaseHandlers is the transition table. Transient game phases are entered
// and left within one Run call and have no handler.
var phaseHandlers = map[Phase]phaseHandler{
	PhaseIdle:               (*Controller).runIdle,
	PhaseGameWaitForTrigger: (*Controller).runWaitForTrigger,
	PhaseZen:                (*Controller).runZen,
}

// NewController creates a controller in Idle. Post EventInit to power it on.
func NewController(d Deps) *Controller {
	return &Controller{
		Deps:        d,
		phase:       PhaseIdle,
		active:      ModuleNone,
		blinkModule: ModuleNone,
		rampUp:      true,
		gameLine:    true,
	}
}

// Run processes one event. Unhandled combinations leave the state unchanged.
func (c *Controller) Run(ev Event) Event {
	if ev.Type == EventInit {
		c.powerOn()
		return NoEvent
	}
	if ev.Type == EventTimeout && ev.Timer == TimerAudioPulse {
		c.Audio.SetLine(CueZen, true)
		return NoEvent
	}
	if h, ok := phaseHandlers[c.phase]; ok {
		h(c, ev)
	}
	return NoEvent
}

// Query returns the current composite state.
func (c *Controller) Query() Phase {
	return c.phase
}

// Mode returns the current top-level mode.
func (c *Controller) Mode() Mode {
	return c.phase.Mode()
}

// Score returns the current game score.
func (c *Controller) Score() int {
	return c.score
}

// ActiveModule returns the lit game target, or ModuleNone.
func (c *Controller) ActiveModule() Module {
	return c.active
}

// Lit returns the lights currently on.
func (c *Controller) Lit() LightMask {
	return c.lit
}

func (c *Controller) powerOn() {
	c.Audio.SetLine(CueGame, true)
	c.Audio.SetLine(CueZen, true)
	c.gameLine = true
	c.light(ModuleNone)
	c.Display.ShowString(TextWelcome)
	c.score = 0
	c.active = ModuleNone
	c.idleLight = 0
	c.rampDuty = 0
	c.rampUp = true
	c.zenIdleBlinks = 0
	c.zenVibrations = 0
	c.strobeCount = 0
	c.blinkModule = ModuleNone
	c.inactive = false
	c.Timers.Start(TimerVibration, PowerOnDelay)
	c.Timers.Start(TimerIdleLight, PowerOnDelay)
	c.setPhase(PhaseIdle)
}

func (c *Controller) runIdle(ev Event) {
	switch ev.Type {
	case EventGameButton:
		c.Display.ShowString(TextBlank)
		c.PWM.SetDuty(GameStartPulseDuty)
		c.score = 0
		c.active = ModuleNone
		c.inactive = false
		c.startGame()

	case EventZenButton:
		c.Display.ShowString(TextRelax)
		c.light(ModuleNone)
		c.inactive = false
		c.zenIdleBlinks = 0
		c.zenVibrations = 0
		c.setPhase(PhaseZen)
		c.Timers.Start(TimerGame, ZenDuration)
		c.Timers.Start(TimerIdleLight, ZenFastStart)
		c.Timers.Start(TimerVibration, ZenFastStart)

	case EventTimeout:
		switch ev.Timer {
		case TimerIdleLight:
			c.Timers.Start(TimerIdleLight, IdleLightPeriod)
			c.idleLight = (c.idleLight + 1) % NumModules
			c.light(c.idleLight)
		case TimerVibration:
			c.stepRamp()
		case TimerStateEnd:
			c.Timers.Start(TimerVibration, IdleRestartPeriod)
			c.Display.ShowString(TextWelcome)
		}
	}
}

// stepRamp advances the idle vibration triangle between RampLow and RampHigh.
func (c *Controller) stepRamp() {
	switch {
	case c.rampDuty < RampHigh && c.rampUp:
		c.rampDuty++
		c.PWM.SetDuty(c.rampDuty)
	case c.rampDuty >= RampHigh:
		c.rampUp = false
		c.rampDuty--
		c.PWM.SetDuty(c.rampDuty)
	case !c.rampUp && c.rampDuty > RampLow:
		c.rampDuty--
		c.PWM.SetDuty(c.rampDuty)
	default:
		c.rampDuty++
		c.rampUp = true
	}
	c.Timers.Start(TimerVibration, time.Duration(20+c.rampDuty*2)*time.Millisecond)
}

// startInactivity runs the shared part of a NoTrigger exit: the display
// says so, the lights strobe, and the session ends once the flourish is over.
func (c *Controller) startInactivity() {
	c.stopInstruct(TextInactive)
	c.strobeCount = 0
	c.inactive = true
	c.Timers.Start(TimerNoTriggerLight, InactiveFlourish)
	c.Timers.Start(TimerNoTrigBlink, InactiveStrobeLead)
	c.notify(Notice{Kind: NoticeInactive, Module: c.active, Score: c.score})
}

// stopInstruct shows text now and has the presenter show it again once it
// has stopped, so a refresh queued before the stop cannot replace it.
func (c *Controller) stopInstruct(text string) {
	c.Display.ShowString(text)
	c.Instruct.Post(StopInstructEvent(text))
}

func (c *Controller) stepStrobe() {
	if c.strobeCount >= StrobeToggles {
		c.strobeCount = 0
		return
	}
	if c.strobeCount%2 == 0 {
		c.setLit(AllLights)
	} else {
		c.setLit(NoLights)
	}
	c.strobeCount++
	c.Timers.Start(TimerNoTrigBlink, InactiveStrobe)
}

func (c *Controller) playGameCue() {
	c.gameLine = !c.gameLine
	c.Audio.SetLine(CueGame, c.gameLine)
}

// playZenCue pulses the zen line low; AudioPulseTimer raises it again.
func (c *Controller) playZenCue() {
	c.Audio.SetLine(CueZen, false)
	c.Timers.Start(TimerAudioPulse, AudioPulse)
}

// light turns on m's light only. ModuleNone turns every light off.
func (c *Controller) light(m Module) {
	c.setLit(LightFor(m))
}

// lightSingle switches m's light without touching the others.
func (c *Controller) lightSingle(m Module, on bool) {
	if on {
		c.setLit(c.lit | LightFor(m))
	} else {
		c.setLit(c.lit &^ LightFor(m))
	}
}

func (c *Controller) setLit(mask LightMask) {
	c.lit = mask
	c.Lights.SetLights(mask)
}

func (c *Controller) setPhase(p Phase) {
	c.phase = p
	c.notify(Notice{Kind: NoticePhase, Phase: p, Module: c.active, Score: c.score})
}

func (c *Controller) notify(n Notice) {
	if c.Listener == nil {
		return
	}
	if n.Phase == "" {
		n.Phase = c.phase
	}
	c.Listener.Notify(n)
}
