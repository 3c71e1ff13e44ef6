package main

import (
	"fmt"
	"io"
	"log"

	"github.com/sweeney/sensory-game/internal/audio"
	"github.com/sweeney/sensory-game/internal/config"
	"github.com/sweeney/sensory-game/internal/dispatch"
	"github.com/sweeney/sensory-game/internal/gpio"
	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/motor"
	"github.com/sweeney/sensory-game/internal/sim"
	"github.com/sweeney/sensory-game/internal/status"
)

// Endpoint priorities. The controller runs first so its commands reach the
// motor and presenter before the next sensor sample is processed.
const (
	prioController = 4
	prioSensor     = 3
	prioVibration  = 2
	prioPresenter  = 1

	queueSize = 16
)

// hardware is the set of adapters the components drive.
type hardware struct {
	inputs  gpio.Reader
	display logic.Display
	lights  logic.Lights
	audio   audioLines
	pwm     logic.PWM
	analog  logic.Analog

	// sim is set when the terminal simulator stands in for the board.
	sim     *sim.Device
	closers []io.Closer
}

func openHardware(cfg config.Config) (*hardware, error) {
	hw := &hardware{}
	if cfg.Sim {
		dev := sim.New(cfg.FullScale, nil)
		hw.sim = dev
		hw.inputs = dev.Inputs()
		hw.display = dev
		hw.lights = dev
		hw.audio = audioLines{dev}
		hw.pwm = dev
		hw.analog = dev
	} else {
		if err := hw.openBoard(cfg); err != nil {
			hw.Close()
			return nil, err
		}
	}

	if cfg.Speaker {
		spk, err := audio.NewSpeaker()
		if err != nil {
			log.Printf("audio: speaker disabled: %v", err)
		} else {
			hw.audio = append(hw.audio, spk)
			hw.closers = append(hw.closers, spk)
		}
	}
	return hw, nil
}

func (hw *hardware) openBoard(cfg config.Config) error {
	pins, err := cfg.Pins()
	if err != nil {
		return err
	}

	reader, err := gpio.NewRealReader(cfg.Chip, pins)
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	hw.inputs = reader
	hw.closers = append(hw.closers, reader)

	outputs, err := gpio.NewRealOutputs(cfg.Chip, pins)
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	hw.lights = outputs
	hw.audio = audioLines{outputs}
	hw.closers = append(hw.closers, outputs)

	pwm, err := motor.NewPWM(cfg.PWMPin, cfg.PWMPeriod)
	if err != nil {
		return fmt.Errorf("init motor pwm: %w", err)
	}
	hw.pwm = pwm
	hw.closers = append(hw.closers, pwm)

	knob, err := motor.NewKnob(cfg.Knob())
	if err != nil {
		return fmt.Errorf("init intensity knob: %w", err)
	}
	hw.analog = knob
	hw.closers = append(hw.closers, knob)

	// The board has no display of its own; the status page shows the text.
	hw.display = displays{}
	return nil
}

// Close releases every adapter in reverse order of opening.
func (hw *hardware) Close() error {
	var errs []error
	for i := len(hw.closers) - 1; i >= 0; i-- {
		if err := hw.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	hw.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// displays shows every line on all of its members.
type displays []logic.Display

func (d displays) ShowString(text string) {
	for _, disp := range d {
		disp.ShowString(text)
	}
}

// audioLines drives the same cue line on all of its members.
type audioLines []logic.Audio

func (a audioLines) SetLine(cue logic.Cue, high bool) {
	for _, line := range a {
		line.SetLine(cue, high)
	}
}

// device is the four components hosted on one dispatch runtime.
type device struct {
	rt         *dispatch.Runtime
	controller *logic.Controller
	presenter  *logic.Presenter
	vibration  *logic.Vibration
	sensors    *logic.SensorMonitor
}

type deviceConfig struct {
	fullScale   int
	analogEvery int // poll ticks between knob samples
	random      logic.Random
	listener    logic.Listener
}

func newDevice(hw *hardware, cfg deviceConfig, opts ...dispatch.Option) *device {
	rt := dispatch.New(opts...)
	ctrl := rt.Add("controller", prioController, queueSize)
	sens := rt.Add("sensor", prioSensor, queueSize)
	vib := rt.Add("vibration", prioVibration, queueSize)
	inst := rt.Add("presenter", prioPresenter, queueSize)

	d := &device{rt: rt}
	d.vibration = logic.NewVibration(hw.pwm, hw.analog, cfg.fullScale)
	d.presenter = logic.NewPresenter(inst, hw.display)
	d.sensors = logic.NewSensorMonitor(sens, ctrl)
	deps := logic.Deps{
		Timers:   ctrl,
		Display:  hw.display,
		Lights:   hw.lights,
		Audio:    hw.audio,
		PWM:      hw.pwm,
		Motor:    vib,
		Instruct: inst,
		Random:   cfg.random,
		Listener: cfg.listener,
	}
	d.controller = logic.NewController(deps)

	ctrl.Bind(dispatch.HandlerFunc(d.controller.Run))
	sens.Bind(dispatch.HandlerFunc(d.sensors.Run))
	vib.Bind(dispatch.HandlerFunc(d.vibration.Run))
	inst.Bind(dispatch.HandlerFunc(d.presenter.Run))

	rt.AddChecker(d.checkSensors(hw.inputs))
	rt.AddChecker(d.checkAnalog(cfg.analogEvery))
	return d
}

// checkSensors reads the inputs once per tick. The first good read is the
// power-on baseline and raises no events.
func (d *device) checkSensors(inputs gpio.Reader) dispatch.Checker {
	baselined := false
	failing := false
	return func() bool {
		sample, err := inputs.Read()
		if err != nil {
			if !failing {
				log.Printf("gpio: read error: %v", err)
				failing = true
			}
			return false
		}
		if failing {
			log.Printf("gpio: reads recovered")
			failing = false
		}
		if !baselined {
			d.sensors.Baseline(sample)
			baselined = true
			return false
		}
		return len(d.sensors.Process(sample)) > 0
	}
}

func (d *device) checkAnalog(every int) dispatch.Checker {
	if every < 1 {
		every = 1
	}
	n := 0
	return func() bool {
		n++
		if n < every {
			return false
		}
		n = 0
		return d.vibration.CheckAnalog()
	}
}

// state samples the components for the status tracker. It must be called
// from the goroutine that drains the runtime.
func (d *device) state() status.Device {
	return status.Device{
		Phase:    d.controller.Query(),
		Module:   d.controller.ActiveModule(),
		Score:    d.controller.Score(),
		Lights:   d.controller.Lit(),
		Instruct: d.presenter.Query(),
		Motor:    d.vibration.Query(),
		Duty:     d.vibration.Duty(),
		Reading:  d.vibration.Reading(),
		Levels:   d.sensors.Levels(),
		Triggers: d.sensors.TriggerCounts(),
	}
}

func (d *device) queues() []status.QueueStats {
	stats := d.rt.Stats()
	out := make([]status.QueueStats, len(stats))
	for i, s := range stats {
		out[i] = status.QueueStats(s)
	}
	return out
}
