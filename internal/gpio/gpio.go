// Package gpio provides the device's digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/sensory-game/internal/logic"

// Reader reads the sensor and button inputs.
type Reader interface {
	// Read returns the logical level of every input channel.
	// The raw GPIO values are inverted: inputs pull up and a trigger
	// pulls the line low.
	Read() (logic.Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the module lights and the sound module trigger lines.
type Outputs interface {
	logic.Lights
	logic.Audio
	Close() error
}

// Pins holds BCM line offsets for every input and output.
type Pins struct {
	Inputs [logic.NumChannels]int
	Lights [logic.NumModules]int
	Audio  [2]int // indexed by logic.Cue
}

// DefaultChip is the gpiochip device name on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// DefaultPins is the reference wiring (BCM numbering).
var DefaultPins = Pins{
	Inputs: [logic.NumChannels]int{
		logic.ChannelTouch:   17,
		logic.ChannelShake:   27,
		logic.ChannelSqueeze: 22,
		logic.ChannelWave:    23,
		logic.ChannelGame:    24,
		logic.ChannelZen:     25,
	},
	Lights: [logic.NumModules]int{
		logic.ModuleTouch:   5,
		logic.ModuleShake:   6,
		logic.ModuleSqueeze: 13,
		logic.ModuleWave:    19,
	},
	Audio: [2]int{
		logic.CueGame: 20,
		logic.CueZen:  21,
	},
}

// lightValues expands a mask into one line value per light.
func lightValues(mask logic.LightMask) []int {
	vals := make([]int, logic.NumModules)
	for m := logic.ModuleTouch; m < logic.ModuleNone; m++ {
		if mask.Has(m) {
			vals[m] = 1
		}
	}
	return vals
}

// sampleFromRaw converts active-low raw values into a logical sample.
func sampleFromRaw(raw []int) logic.Sample {
	var levels [logic.NumChannels]bool
	for i := range levels {
		if i < len(raw) {
			levels[i] = raw[i] == 0
		}
	}
	return logic.SampleOf(levels)
}
