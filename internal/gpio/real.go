//go:build linux

package gpio

import (
	"fmt"
	"log"

	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the inputs from actual hardware using the GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	raw   []int
}

// NewRealReader requests every input line on the named chip.
func NewRealReader(chipName string, pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Sensors and buttons pull the line to ground when triggered.
	lines, err := chip.RequestLines(pins.Inputs[:], gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input pins %v: %w", pins.Inputs, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		raw:   make([]int, len(pins.Inputs)),
	}, nil
}

// Read returns the logical level of every input.
// Inverts raw GPIO: raw 0 = triggered, raw 1 = not triggered.
func (r *RealReader) Read() (logic.Sample, error) {
	if err := r.lines.Values(r.raw); err != nil {
		return logic.Sample{}, fmt.Errorf("read input pins: %w", err)
	}
	return sampleFromRaw(r.raw), nil
}

// Close releases GPIO resources.
// Reconfigures the lines to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealReader) Close() error {
	var errs []error
	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure input pins: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs drives the light and audio lines.
type RealOutputs struct {
	chip   *gpiocdev.Chip
	lights *gpiocdev.Lines
	audio  [2]*gpiocdev.Line
}

// NewRealOutputs requests the output lines. Lights start off and the audio
// trigger lines start high (idle).
func NewRealOutputs(chipName string, pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	o := &RealOutputs{chip: chip}
	o.lights, err = chip.RequestLines(pins.Lights[:], gpiocdev.AsOutput(0, 0, 0, 0))
	if err != nil {
		o.Close()
		return nil, fmt.Errorf("request light pins %v: %w", pins.Lights, err)
	}
	for cue, pin := range pins.Audio {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(1))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request %s audio pin %d: %w", logic.Cue(cue), pin, err)
		}
		o.audio[cue] = line
	}
	return o, nil
}

// SetLights drives one line per module light.
func (o *RealOutputs) SetLights(mask logic.LightMask) {
	if err := o.lights.SetValues(lightValues(mask)); err != nil {
		log.Printf("gpio: set lights %04b: %v", mask, err)
	}
}

// SetLine drives an audio trigger line.
func (o *RealOutputs) SetLine(cue logic.Cue, high bool) {
	if cue < 0 || int(cue) >= len(o.audio) || o.audio[cue] == nil {
		return
	}
	v := 0
	if high {
		v = 1
	}
	if err := o.audio[cue].SetValue(v); err != nil {
		log.Printf("gpio: set %s audio line: %v", cue, err)
	}
}

// Close releases the output lines as inputs with pull-down.
func (o *RealOutputs) Close() error {
	var errs []error
	if o.lights != nil {
		if err := o.lights.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure light pins: %w", err))
		}
		if err := o.lights.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close light pins: %w", err))
		}
	}
	for cue, line := range o.audio {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s audio pin: %w", logic.Cue(cue), err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
