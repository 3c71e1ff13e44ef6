package logic

import (
	"errors"
	"time"
)

type timerCall struct {
	name TimerName
	d    time.Duration
	stop bool
}

// fakeTimers records timer requests instead of scheduling anything.
type fakeTimers struct {
	armed map[TimerName]time.Duration
	calls []timerCall
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{armed: make(map[TimerName]time.Duration)}
}

func (f *fakeTimers) Start(name TimerName, d time.Duration) {
	f.armed[name] = d
	f.calls = append(f.calls, timerCall{name: name, d: d})
}

func (f *fakeTimers) Stop(name TimerName) {
	delete(f.armed, name)
	f.calls = append(f.calls, timerCall{name: name, stop: true})
}

func (f *fakeTimers) isArmed(name TimerName) (time.Duration, bool) {
	d, ok := f.armed[name]
	return d, ok
}

func (f *fakeTimers) starts(name TimerName) int {
	n := 0
	for _, c := range f.calls {
		if c.name == name && !c.stop {
			n++
		}
	}
	return n
}

type fakeDisplay struct {
	lines []string
}

func (f *fakeDisplay) ShowString(text string) {
	f.lines = append(f.lines, text)
}

func (f *fakeDisplay) last() string {
	if len(f.lines) == 0 {
		return "<none>"
	}
	return f.lines[len(f.lines)-1]
}

type fakeLights struct {
	masks []LightMask
}

func (f *fakeLights) SetLights(mask LightMask) {
	f.masks = append(f.masks, mask)
}

func (f *fakeLights) last() LightMask {
	if len(f.masks) == 0 {
		return NoLights
	}
	return f.masks[len(f.masks)-1]
}

type fakeAudio struct {
	lines map[Cue]bool
	calls int
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{lines: make(map[Cue]bool)}
}

func (f *fakeAudio) SetLine(cue Cue, high bool) {
	f.lines[cue] = high
	f.calls++
}

type fakePWM struct {
	duties []int
}

func (f *fakePWM) SetDuty(percent int) {
	f.duties = append(f.duties, percent)
}

func (f *fakePWM) last() int {
	if len(f.duties) == 0 {
		return -1
	}
	return f.duties[len(f.duties)-1]
}

type fakeAnalog struct {
	value int
	err   error
}

func (f *fakeAnalog) Read() (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.value, nil
}

var errADC = errors.New("adc unavailable")

// seqRandom returns scripted draws, reduced modulo n.
type seqRandom struct {
	vals []int
	i    int
}

func (r *seqRandom) Intn(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

// recorder is a Poster that keeps every event.
type recorder struct {
	events []Event
	full   bool
}

func (r *recorder) Post(ev Event) bool {
	if r.full {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) last() Event {
	if len(r.events) == 0 {
		return NoEvent
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) types() []EventType {
	var out []EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type noticeLog struct {
	notices []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.notices = append(l.notices, n)
}

func (l *noticeLog) kinds(kind NoticeKind) []Notice {
	var out []Notice
	for _, n := range l.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (l *noticeLog) phases() []Phase {
	var out []Phase
	for _, n := range l.kinds(NoticePhase) {
		out = append(out, n.Phase)
	}
	return out
}

// rig bundles a controller with all of its fakes.
type rig struct {
	c        *Controller
	timers   *fakeTimers
	display  *fakeDisplay
	lights   *fakeLights
	audio    *fakeAudio
	pwm      *fakePWM
	motor    *recorder
	instruct *recorder
	random   *seqRandom
	notices  *noticeLog
}

// newRig returns a powered-on controller in Idle.
func newRig(draws ...int) *rig {
	r := &rig{
		timers:   newFakeTimers(),
		display:  &fakeDisplay{},
		lights:   &fakeLights{},
		audio:    newFakeAudio(),
		pwm:      &fakePWM{},
		motor:    &recorder{},
		instruct: &recorder{},
		random:   &seqRandom{vals: draws},
		notices:  &noticeLog{},
	}
	r.c = NewController(Deps{
		Timers:   r.timers,
		Display:  r.display,
		Lights:   r.lights,
		Audio:    r.audio,
		PWM:      r.pwm,
		Motor:    r.motor,
		Instruct: r.instruct,
		Random:   r.random,
		Listener: r.notices,
	})
	r.c.Run(Event{Type: EventInit})
	return r
}

func (r *rig) send(t EventType) {
	r.c.Run(Event{Type: t})
}

func (r *rig) timeout(name TimerName) {
	r.c.Run(TimeoutEvent(name))
}

// triggerFor returns the sensor event matching m.
func triggerFor(m Module) EventType {
	switch m {
	case ModuleTouch:
		return EventTouch
	case ModuleShake:
		return EventShake
	case ModuleSqueeze:
		return EventSqueeze
	case ModuleWave:
		return EventWave
	}
	return EventNone
}

// scorePoints hits the active module n times.
func (r *rig) scorePoints(n int) {
	for i := 0; i < n; i++ {
		r.send(triggerFor(r.c.ActiveModule()))
	}
}
