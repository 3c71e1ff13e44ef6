package logic

import "time"

// InstructionState is the state of the instruction presenter.
type InstructionState string

const (
	InstructWaiting InstructionState = "WAIT_FOR_ACTIVATION"
	InstructActive  InstructionState = "ACTIVE"
)

// InstructInterval is the refresh cadence of the instruction line.
const InstructInterval = time.Second

// Presenter keeps the instruction line on the display while a game runs.
// It only knows the module and score pushed to it by the last Instruct.
type Presenter struct {
	state   InstructionState
	timers  Timers
	display Display
	module  Module
	score   int
}

// NewPresenter creates a presenter waiting for activation.
func NewPresenter(timers Timers, display Display) *Presenter {
	return &Presenter{
		state:   InstructWaiting,
		timers:  timers,
		display: display,
		module:  ModuleNone,
	}
}

// Run processes Instruct, StopInstruct and InstructTimer expirations.
func (p *Presenter) Run(ev Event) Event {
	switch ev.Type {
	case EventInit:
		p.state = InstructWaiting
	case EventInstruct:
		p.module = ev.Module
		p.score = ev.Score
		p.state = InstructActive
		p.show()
	case EventTimeout:
		if ev.Timer == TimerInstruct && p.state == InstructActive {
			p.show()
		}
	case EventStopInstruct:
		if p.state == InstructActive {
			p.timers.Stop(TimerInstruct)
			p.state = InstructWaiting
		}
		if ev.Text != "" {
			p.display.ShowString(ev.Text)
		}
	}
	return NoEvent
}

// Query returns the current presenter state.
func (p *Presenter) Query() InstructionState {
	return p.state
}

func (p *Presenter) show() {
	p.timers.Start(TimerInstruct, InstructInterval)
	p.display.ShowString(InstructionText(p.module, p.score))
}
