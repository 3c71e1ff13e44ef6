// Package sim is a terminal stand-in for the device hardware. It renders the
// display, lights, motor and audio lines with tcell, and turns key presses
// into sensor inputs and knob movements.
package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sweeney/sensory-game/internal/logic"
)

// HoldWindow is how long a key press keeps its input triggered, so that a
// slow poll still sees it.
const HoldWindow = 150 * time.Millisecond

// KnobStep is the knob change per +/- key press.
const KnobStep = 64

const frameInterval = 50 * time.Millisecond

// Device implements the display, lights, audio lines, motor PWM, knob and
// input reader on top of a terminal.
type Device struct {
	mu        sync.Mutex
	now       func() time.Time
	text      string
	lights    logic.LightMask
	duty      int
	knob      int
	fullScale int
	lines     [2]bool
	held      [logic.NumChannels]time.Time
	presses   [logic.NumChannels]int

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates a device with the knob at mid scale.
func New(fullScale int, now func() time.Time) *Device {
	if fullScale <= 0 {
		fullScale = logic.DefaultFullScale
	}
	if now == nil {
		now = time.Now
	}
	return &Device{
		now:       now,
		knob:      fullScale / 2,
		fullScale: fullScale,
		lines:     [2]bool{true, true},
		quit:      make(chan struct{}),
	}
}

// ShowString implements logic.Display.
func (d *Device) ShowString(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

// SetLights implements logic.Lights.
func (d *Device) SetLights(mask logic.LightMask) {
	d.mu.Lock()
	d.lights = mask
	d.mu.Unlock()
}

// SetLine implements logic.Audio.
func (d *Device) SetLine(cue logic.Cue, high bool) {
	d.mu.Lock()
	if cue >= 0 && int(cue) < len(d.lines) {
		d.lines[cue] = high
	}
	d.mu.Unlock()
}

// SetDuty implements logic.PWM.
func (d *Device) SetDuty(percent int) {
	d.mu.Lock()
	d.duty = percent
	d.mu.Unlock()
}

// Read implements logic.Analog: the knob position.
func (d *Device) Read() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.knob, nil
}

// Sample implements the input side: a channel is triggered while its key
// press is within HoldWindow.
func (d *Device) Sample() (logic.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	var levels [logic.NumChannels]bool
	for ch, until := range d.held {
		levels[ch] = now.Before(until)
	}
	return logic.SampleOf(levels), nil
}

// Inputs adapts the device to the gpio.Reader shape.
func (d *Device) Inputs() *Inputs {
	return &Inputs{d: d}
}

// Inputs reads the simulated sensors.
type Inputs struct {
	d *Device
}

// Read returns the current simulated levels.
func (in *Inputs) Read() (logic.Sample, error) {
	return in.d.Sample()
}

// Close does nothing; the screen is owned by Run.
func (in *Inputs) Close() error {
	return nil
}

// Press triggers ch for HoldWindow. Pressing again while held extends the
// hold without producing a new edge.
func (d *Device) Press(ch logic.Channel) {
	if ch < 0 || ch >= logic.NumChannels {
		return
	}
	d.mu.Lock()
	d.held[ch] = d.now().Add(HoldWindow)
	d.presses[ch]++
	d.mu.Unlock()
}

// Turn moves the knob by delta, clamped to [0, fullScale].
func (d *Device) Turn(delta int) {
	d.mu.Lock()
	d.knob += delta
	if d.knob < 0 {
		d.knob = 0
	}
	if d.knob > d.fullScale {
		d.knob = d.fullScale
	}
	d.mu.Unlock()
}

// Done is closed when the user asks to quit.
func (d *Device) Done() <-chan struct{} {
	return d.quit
}

// Quit closes Done.
func (d *Device) Quit() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// action is what a key does.
type action struct {
	channel logic.Channel
	press   bool
	knob    int
	quit    bool
}

var keyChannels = map[rune]logic.Channel{
	't': logic.ChannelTouch,
	's': logic.ChannelShake,
	'q': logic.ChannelSqueeze,
	'w': logic.ChannelWave,
	'g': logic.ChannelGame,
	'z': logic.ChannelZen,
}

// mapKey translates a key into an action.
func mapKey(key tcell.Key, r rune) (action, bool) {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return action{quit: true}, true
	case tcell.KeyRune:
	default:
		return action{}, false
	}
	if ch, ok := keyChannels[r]; ok {
		return action{channel: ch, press: true}, true
	}
	switch r {
	case '+', '=':
		return action{knob: KnobStep}, true
	case '-', '_':
		return action{knob: -KnobStep}, true
	}
	return action{}, false
}

func (d *Device) apply(a action) {
	switch {
	case a.quit:
		d.Quit()
	case a.press:
		d.Press(a.channel)
	case a.knob != 0:
		d.Turn(a.knob)
	}
}

// Open creates and initializes the terminal screen.
func Open() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("new screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	return screen, nil
}

// Run draws the device and handles keys until ctx is done or the user quits.
// It finalizes the screen before returning.
func (d *Device) Run(ctx context.Context, screen tcell.Screen) {
	defer screen.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-d.quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		d.draw(screen)
		select {
		case <-ctx.Done():
			return
		case <-d.quit:
			return
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if a, ok := mapKey(ev.Key(), ev.Rune()); ok {
					d.apply(a)
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
		}
	}
}

type view struct {
	text    string
	lights  logic.LightMask
	duty    int
	knob    int
	full    int
	lines   [2]bool
	presses [logic.NumChannels]int
}

func (d *Device) snapshot() view {
	d.mu.Lock()
	defer d.mu.Unlock()
	return view{
		text:    d.text,
		lights:  d.lights,
		duty:    d.duty,
		knob:    d.knob,
		full:    d.fullScale,
		lines:   d.lines,
		presses: d.presses,
	}
}

var (
	styleText  = tcell.StyleDefault
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleLCD   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	styleLitOn = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

func (d *Device) draw(screen tcell.Screen) {
	v := d.snapshot()
	screen.Clear()

	putString(screen, 1, 0, "sensory game simulator", styleText.Bold(true))
	putString(screen, 1, 2, fmt.Sprintf("[%-16s]", lcdText(v.text)), styleLCD)

	x := 1
	for m := logic.ModuleTouch; m < logic.ModuleNone; m++ {
		style := styleDim
		mark := "o"
		if v.lights.Has(m) {
			style = styleLitOn
			mark = "*"
		}
		label := fmt.Sprintf("%s %-8s", mark, m)
		putString(screen, x, 4, label, style)
		x += len(label) + 1
	}

	putString(screen, 1, 6, fmt.Sprintf("motor %3d%% %s", v.duty, bar(v.duty, 100, 20)), styleText)
	putString(screen, 1, 7, fmt.Sprintf("knob  %4d %s", v.knob, bar(v.knob, v.full, 20)), styleText)
	putString(screen, 1, 8, fmt.Sprintf("audio game=%s zen=%s", level(v.lines[logic.CueGame]), level(v.lines[logic.CueZen])), styleText)
	putString(screen, 1, 9, fmt.Sprintf("waves %d", v.presses[logic.ChannelWave]), styleDim)

	putString(screen, 1, 11, "t touch  s shake  q squeeze  w wave  g game  z zen  +/- knob  esc quit", styleDim)
	screen.Show()
}

// lcdText keeps the first 16 columns, as the display would.
func lcdText(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

func bar(v, full, width int) string {
	if full <= 0 {
		full = 1
	}
	n := v * width / full
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", width-n) + "]"
}

func level(high bool) string {
	if high {
		return "H"
	}
	return "L"
}

func putString(screen tcell.Screen, x, y int, s string, style tcell.Style) {
	for i, r := range s {
		screen.SetContent(x+i, y, r, nil, style)
	}
}
