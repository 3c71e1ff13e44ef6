package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/sensory-game/internal/logic"
)

// FakeReader is a test double that returns scripted input samples.
type FakeReader struct {
	// Samples contains scripted logical samples to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []logic.Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.Sample, error) {
	if f.ReadError != nil {
		return logic.Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// Press returns a sample with only the given channels triggered.
func Press(channels ...logic.Channel) logic.Sample {
	var s logic.Sample
	for _, ch := range channels {
		s[ch] = logic.Triggered
	}
	return s
}

// FakeOutputs records light and audio line writes.
type FakeOutputs struct {
	mu     sync.Mutex
	masks  []logic.LightMask
	lines  [2]bool
	toggle [2]int
	Closed bool
}

// NewFakeOutputs returns outputs with both audio lines idle high.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{lines: [2]bool{true, true}}
}

// SetLights records the mask.
func (f *FakeOutputs) SetLights(mask logic.LightMask) {
	f.mu.Lock()
	f.masks = append(f.masks, mask)
	f.mu.Unlock()
}

// SetLine records the level and counts level changes.
func (f *FakeOutputs) SetLine(cue logic.Cue, high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cue < 0 || int(cue) >= len(f.lines) {
		return
	}
	if f.lines[cue] != high {
		f.toggle[cue]++
	}
	f.lines[cue] = high
}

// Lights returns the last mask written.
func (f *FakeOutputs) Lights() logic.LightMask {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.masks) == 0 {
		return logic.NoLights
	}
	return f.masks[len(f.masks)-1]
}

// Writes returns the number of light writes.
func (f *FakeOutputs) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.masks)
}

// Line returns the level of an audio line.
func (f *FakeOutputs) Line(cue logic.Cue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[cue]
}

// Toggles returns how many times an audio line changed level.
func (f *FakeOutputs) Toggles(cue logic.Cue) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggle[cue]
}

// Close marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
