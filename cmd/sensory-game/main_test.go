package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/sensory-game/internal/dispatch"
	"github.com/sweeney/sensory-game/internal/gpio"
	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/mqtt"
	"github.com/sweeney/sensory-game/internal/status"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// neverFire schedules nothing; component timers stay armed forever.
func neverFire(d time.Duration, f func()) func() bool {
	return func() bool { return true }
}

// repeat returns n copies of sample.
func repeat(sample logic.Sample, n int) []logic.Sample {
	out := make([]logic.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

type fakePWM struct {
	duties []int
}

func (p *fakePWM) SetDuty(percent int) { p.duties = append(p.duties, percent) }

func (p *fakePWM) last() int {
	if len(p.duties) == 0 {
		return -1
	}
	return p.duties[len(p.duties)-1]
}

type fakeAnalog struct {
	readings []int
	i        int
}

func (a *fakeAnalog) Read() (int, error) {
	v := a.readings[a.i]
	if a.i < len(a.readings)-1 {
		a.i++
	}
	return v, nil
}

type fixedRandom int

func (r fixedRandom) Intn(n int) int { return int(r) % n }

type noticeLog struct {
	notices []logic.Notice
}

func (l *noticeLog) Notify(n logic.Notice) { l.notices = append(l.notices, n) }

func (l *noticeLog) kinds() []logic.NoticeKind {
	var out []logic.NoticeKind
	for _, n := range l.notices {
		out = append(out, n.Kind)
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (logic.Sample, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return logic.Sample{}, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type testRig struct {
	hw       *hardware
	outputs  *gpio.FakeOutputs
	pwm      *fakePWM
	analog   *fakeAnalog
	notices  *noticeLog
	tracker  *status.Tracker
	dev      *device
	analogEv int
}

func newRig(t *testing.T, reader gpio.Reader, analogEvery int) *testRig {
	t.Helper()
	r := &testRig{
		outputs: gpio.NewFakeOutputs(),
		pwm:     &fakePWM{},
		analog:  &fakeAnalog{readings: []int{0}},
		notices: &noticeLog{},
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{PollMs: 10}),
	}
	r.hw = &hardware{
		inputs:  reader,
		display: displays{r.tracker},
		lights:  r.outputs,
		audio:   audioLines{r.outputs},
		pwm:     r.pwm,
		analog:  r.analog,
	}
	r.analogEv = analogEvery
	return r
}

func (r *testRig) build() {
	r.dev = newDevice(r.hw, deviceConfig{
		fullScale:   1000,
		analogEvery: r.analogEv,
		random:      fixedRandom(0),
		listener:    r.notices,
	}, dispatch.WithAfterFunc(neverFire))
}

// drive runs runLoop for nTicks and then delivers signal, returning the
// loop's error.
func (r *testRig) drive(t *testing.T, pub mqtt.Publisher, heartbeat time.Duration, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	r.build()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	var mqttStatus mqtt.ConnectionStatus
	if fp, ok := pub.(*mqtt.FakePublisher); ok {
		mqttStatus = fp
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.dev, pub, mqttStatus, r.tracker, heartbeat, clock, tick, sig, nil)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func startClock() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Millisecond)
}

func TestRunLoopIdleShutdown(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 4))
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()

	if err := rig.drive(t, pub, 0, startClock(), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	sys := pub.System()
	if len(sys) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(sys))
	}
	if sys[0].Event != "SHUTDOWN" || sys[0].Reason != "SIGTERM" || !sys[0].Retained {
		t.Errorf("unexpected shutdown event %+v", sys[0])
	}
	if !strings.Contains(string(sys[0].RawPayload), `"event":"SHUTDOWN"`) {
		t.Errorf("expected status snapshot in payload, got %s", sys[0].RawPayload)
	}

	snap := rig.tracker.Snapshot()
	if snap.Device.Phase != logic.PhaseIdle {
		t.Errorf("expected IDLE, got %s", snap.Device.Phase)
	}
	if snap.Display != logic.TextWelcome {
		t.Errorf("expected welcome text, got %q", snap.Display)
	}
	if len(snap.Queues) != 4 || snap.Queues[0].Name != "controller" {
		t.Errorf("unexpected queue stats %+v", snap.Queues)
	}
}

func TestRunLoopGameButtonStartsGame(t *testing.T) {
	samples := append(repeat(logic.Sample{}, 2), gpio.Press(logic.ChannelGame), logic.Sample{})
	rig := newRig(t, gpio.NewFakeReader(samples), 1)
	pub := mqtt.NewFakePublisher()

	if err := rig.drive(t, pub, 0, startClock(), len(samples), syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := rig.tracker.Snapshot()
	if snap.Device.Phase != logic.PhaseGameWaitForTrigger {
		t.Fatalf("expected GAME/WAIT_FOR_TRIGGER, got %s", snap.Device.Phase)
	}
	if snap.Device.Module != logic.ModuleTouch {
		t.Errorf("expected TOUCH active, got %s", snap.Device.Module)
	}
	if snap.Device.Instruct != logic.InstructActive {
		t.Errorf("expected presenter ACTIVE, got %s", snap.Device.Instruct)
	}
	if want := logic.InstructionText(logic.ModuleTouch, 0); snap.Display != want {
		t.Errorf("display: got %q, want %q", snap.Display, want)
	}
	if snap.Device.Triggers[logic.ChannelGame] != 1 {
		t.Errorf("expected one game trigger, got %d", snap.Device.Triggers[logic.ChannelGame])
	}
	if rig.outputs.Lights() != logic.LightFor(logic.ModuleTouch) {
		t.Errorf("expected touch light, got %v", rig.outputs.Lights())
	}
	if rig.pwm.last() != logic.GameStartPulseDuty {
		t.Errorf("expected start pulse duty, got %d", rig.pwm.last())
	}
	if rig.outputs.Toggles(logic.CueGame) != 1 {
		t.Errorf("expected game cue toggled once, got %d", rig.outputs.Toggles(logic.CueGame))
	}

	var phases []logic.Phase
	for _, n := range rig.notices.notices {
		if n.Kind == logic.NoticePhase {
			phases = append(phases, n.Phase)
		}
	}
	want := []logic.Phase{logic.PhaseIdle, logic.PhaseGameStartUp, logic.PhaseGameActivateModule, logic.PhaseGameWaitForTrigger}
	if len(phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase %d: expected %s, got %s", i, want[i], phases[i])
		}
	}

	sys := pub.System()
	if len(sys) != 1 || sys[0].Reason != "SIGINT" {
		t.Errorf("expected one SIGINT shutdown, got %+v", sys)
	}
}

func TestRunLoopPressedAtPowerOnIsBaseline(t *testing.T) {
	// A button held through power-on raises nothing until it is released
	// and pressed again.
	samples := []logic.Sample{
		gpio.Press(logic.ChannelZen),
		gpio.Press(logic.ChannelZen),
		{},
	}
	rig := newRig(t, gpio.NewFakeReader(samples), 1)

	if err := rig.drive(t, mqtt.NewFakePublisher(), 0, startClock(), len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if phase := rig.tracker.Snapshot().Device.Phase; phase != logic.PhaseIdle {
		t.Errorf("expected IDLE, got %s", phase)
	}
}

func TestRunLoopZenButton(t *testing.T) {
	samples := []logic.Sample{{}, gpio.Press(logic.ChannelZen), {}}
	rig := newRig(t, gpio.NewFakeReader(samples), 1)

	if err := rig.drive(t, nil, 0, startClock(), len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	snap := rig.tracker.Snapshot()
	if snap.Device.Phase != logic.PhaseZen {
		t.Errorf("expected ZEN, got %s", snap.Device.Phase)
	}
	if snap.Display != logic.TextRelax {
		t.Errorf("expected relax text, got %q", snap.Display)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 1))
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()
	// now() is called once at start, then once per tick.
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)

	if err := rig.drive(t, pub, 2*time.Minute, clock, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var beats []mqtt.SystemEvent
	for _, ev := range pub.System() {
		if ev.Event == "HEARTBEAT" {
			beats = append(beats, ev)
		}
	}
	if len(beats) != 2 {
		t.Fatalf("expected 2 heartbeats, got %d", len(beats))
	}
	if beats[0].Retained {
		t.Error("heartbeat should not be retained")
	}
	if !strings.Contains(string(beats[0].RawPayload), `"event":"HEARTBEAT"`) {
		t.Errorf("expected status payload, got %s", beats[0].RawPayload)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 1))
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)

	if err := rig.drive(t, pub, 0, clock, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := len(pub.System()); n != 1 {
		t.Errorf("expected only SHUTDOWN, got %d system events", n)
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	inner := gpio.NewFakeReader([]logic.Sample{{}, gpio.Press(logic.ChannelZen), {}})
	reader := &faultReader{inner: inner, faultStart: 1, faultEnd: 3}
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()

	if err := rig.drive(t, pub, 0, startClock(), 6, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if phase := rig.tracker.Snapshot().Device.Phase; phase != logic.PhaseZen {
		t.Errorf("expected ZEN after reads recovered, got %s", phase)
	}
	sys := pub.System()
	if len(sys) != 1 || sys[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN after faults, got %+v", sys)
	}
}

func TestRunLoopPublishErrorDoesNotStop(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 1))
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)

	if err := rig.drive(t, pub, time.Minute, clock, 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := len(pub.System()); n != 0 {
		t.Errorf("expected nothing recorded, got %d", n)
	}
}

func TestRunLoopKnobReading(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 1))
	rig := newRig(t, reader, 2)
	rig.analog.readings = []int{0, 500}

	if err := rig.drive(t, nil, 0, startClock(), 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	snap := rig.tracker.Snapshot()
	if snap.Device.Reading != 500 {
		t.Errorf("expected knob reading 500, got %d", snap.Device.Reading)
	}
	if snap.Device.Motor != logic.MotorOff {
		t.Errorf("expected motor OFF in idle, got %s", snap.Device.Motor)
	}
}

func TestRunLoopMQTTStatus(t *testing.T) {
	reader := gpio.NewFakeReader(repeat(logic.Sample{}, 1))
	rig := newRig(t, reader, 1)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true

	if err := rig.drive(t, pub, 0, startClock(), 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !rig.tracker.Snapshot().MQTTConnected {
		t.Error("expected MQTT connected in status")
	}
}

func TestRunLoopQuit(t *testing.T) {
	rig := newRig(t, gpio.NewFakeReader(repeat(logic.Sample{}, 1)), 1)
	rig.build()
	pub := mqtt.NewFakePublisher()
	quit := make(chan struct{})
	close(quit)

	err := runLoop(rig.dev, pub, pub, rig.tracker, 0, startClock(), make(chan time.Time), make(chan os.Signal), quit)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	sys := pub.System()
	if len(sys) != 1 || sys[0].Reason != "QUIT" {
		t.Errorf("expected QUIT shutdown, got %+v", sys)
	}
}

func TestCheckAnalogCadence(t *testing.T) {
	rig := newRig(t, gpio.NewFakeReader(repeat(logic.Sample{}, 1)), 3)
	rig.build()
	rig.analog.readings = []int{10, 20, 30}
	check := rig.dev.checkAnalog(3)

	var changed []bool
	for i := 0; i < 6; i++ {
		changed = append(changed, check())
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if changed[i] != want[i] {
			t.Errorf("call %d: expected %v, got %v", i, want[i], changed[i])
		}
	}
}

func TestPrintState(t *testing.T) {
	reader := gpio.NewFakeReader([]logic.Sample{gpio.Press(logic.ChannelShake, logic.ChannelZen)})
	var buf bytes.Buffer
	if err := printState(&buf, reader); err != nil {
		t.Fatalf("printState: %v", err)
	}
	want := "TOUCH: OFF, SHAKE: ON, SQUEEZE: OFF, WAVE: OFF, GAME: OFF, ZEN: ON\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	reader.ReadError = errors.New("no chip")
	if err := printState(&buf, reader); err == nil {
		t.Error("expected read error")
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

type recordingDisplay struct{ lines []string }

func (d *recordingDisplay) ShowString(text string) { d.lines = append(d.lines, text) }

func TestTees(t *testing.T) {
	a, b := &recordingDisplay{}, &recordingDisplay{}
	displays{a, b}.ShowString("hello")
	if len(a.lines) != 1 || len(b.lines) != 1 || b.lines[0] != "hello" {
		t.Errorf("expected both displays written, got %v %v", a.lines, b.lines)
	}

	o1, o2 := gpio.NewFakeOutputs(), gpio.NewFakeOutputs()
	audioLines{o1, o2}.SetLine(logic.CueZen, false)
	if o1.Line(logic.CueZen) || o2.Line(logic.CueZen) {
		t.Error("expected zen line low on both outputs")
	}
}

type fakeCloser struct {
	err    error
	closed *[]string
	name   string
}

func (c fakeCloser) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestHardwareClose(t *testing.T) {
	var order []string
	hw := &hardware{}
	hw.closers = append(hw.closers,
		fakeCloser{name: "gpio", closed: &order},
		fakeCloser{name: "pwm", closed: &order, err: errors.New("busy")},
	)

	err := hw.Close()
	if err == nil || !strings.Contains(err.Error(), "busy") {
		t.Errorf("expected close error, got %v", err)
	}
	if len(order) != 2 || order[0] != "pwm" || order[1] != "gpio" {
		t.Errorf("expected reverse close order, got %v", order)
	}
	if err := hw.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
