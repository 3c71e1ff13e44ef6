// Package audio stands in for the external sound module on the simulator:
// it watches the two trigger lines and plays a cue through the speaker.
package audio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/sweeney/sensory-game/internal/logic"
)

const sampleRate = beep.SampleRate(44100)

// Sound is a cue the sound module can play.
type Sound int

const (
	SoundGame Sound = iota
	SoundZen
)

func (s Sound) String() string {
	if s == SoundZen {
		return "zen"
	}
	return "game"
}

// note is one step of a cue.
type note struct {
	freq float64
	dur  time.Duration
}

var cues = map[Sound][]note{
	SoundGame: {{660, 120 * time.Millisecond}, {880, 180 * time.Millisecond}},
	SoundZen:  {{528, 400 * time.Millisecond}},
}

// Speaker implements logic.Audio. The game line plays its cue on every
// level change; the zen line plays on a falling edge.
type Speaker struct {
	mu    sync.Mutex
	lines [2]bool
	play  func(Sound)
	mixer *beep.Mixer
}

// NewSpeaker opens the default audio device.
func NewSpeaker() (*Speaker, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	s := &Speaker{mixer: &beep.Mixer{}}
	s.play = s.mix
	s.lines = [2]bool{true, true}
	speaker.Play(s.mixer)
	return s, nil
}

func newSpeaker(play func(Sound)) *Speaker {
	return &Speaker{play: play, lines: [2]bool{true, true}}
}

// SetLine records the line level and plays the cue it triggers, if any.
func (s *Speaker) SetLine(cue logic.Cue, high bool) {
	s.mu.Lock()
	if cue < 0 || int(cue) >= len(s.lines) {
		s.mu.Unlock()
		return
	}
	prev := s.lines[cue]
	s.lines[cue] = high
	s.mu.Unlock()

	switch {
	case cue == logic.CueGame && prev != high:
		s.play(SoundGame)
	case cue == logic.CueZen && prev && !high:
		s.play(SoundZen)
	}
}

// Close silences anything still playing and releases the device.
func (s *Speaker) Close() error {
	if s.mixer == nil {
		return nil
	}
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	return nil
}

func (s *Speaker) mix(snd Sound) {
	st, err := cueStreamer(snd, sampleRate)
	if err != nil {
		log.Printf("audio: build %s cue: %v", snd, err)
		return
	}
	speaker.Lock()
	s.mixer.Add(st)
	speaker.Unlock()
}

// cueStreamer renders a cue as a finite sequence of quiet sine tones.
func cueStreamer(snd Sound, rate beep.SampleRate) (beep.Streamer, error) {
	notes, ok := cues[snd]
	if !ok {
		return nil, fmt.Errorf("unknown sound %d", snd)
	}
	parts := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		sine, err := generators.SineTone(rate, n.freq)
		if err != nil {
			return nil, fmt.Errorf("sine %.0fHz: %w", n.freq, err)
		}
		parts = append(parts, beep.Take(rate.N(n.dur), sine))
	}
	return &effects.Volume{Streamer: beep.Seq(parts...), Base: 2, Volume: -2}, nil
}
