package logic

import "time"

// Channel identifies one polled binary input.
type Channel int

const (
	ChannelTouch Channel = iota
	ChannelShake
	ChannelSqueeze
	ChannelWave
	ChannelGame
	ChannelZen
)

// NumChannels is the number of polled inputs.
const NumChannels = 6

func (c Channel) String() string {
	switch c {
	case ChannelTouch:
		return "touch"
	case ChannelShake:
		return "shake"
	case ChannelSqueeze:
		return "squeeze"
	case ChannelWave:
		return "wave"
	case ChannelGame:
		return "game"
	case ChannelZen:
		return "zen"
	}
	return "unknown"
}

// channelEvents maps each channel to the semantic event it raises.
var channelEvents = [NumChannels]EventType{
	ChannelTouch:   EventTouch,
	ChannelShake:   EventShake,
	ChannelSqueeze: EventSqueeze,
	ChannelWave:    EventWave,
	ChannelGame:    EventGameButton,
	ChannelZen:     EventZenButton,
}

// TriggerState is the observed level of one channel.
type TriggerState int

const (
	NotTriggered TriggerState = iota
	Triggered
)

// Sample is one poll of all channels, indexed by Channel.
type Sample [NumChannels]TriggerState

// SampleOf builds a Sample from logical levels (true = triggered).
func SampleOf(levels [NumChannels]bool) Sample {
	var s Sample
	for i, on := range levels {
		if on {
			s[i] = Triggered
		}
	}
	return s
}

const (
	// InactivityTimeout is the silence window before NoTrigger is raised.
	InactivityTimeout = 30 * time.Second

	// WaveThreshold is the number of raw wave triggers per Wave event.
	WaveThreshold = 6
)

// SensorMonitor turns polled levels into edge-triggered semantic events and
// raises NoTrigger after InactivityTimeout without any trigger.
type SensorMonitor struct {
	timers Timers
	target Poster
	last   Sample
	waves  int
	counts [NumChannels]int
}

// NewSensorMonitor creates a monitor that posts semantic events to target.
func NewSensorMonitor(timers Timers, target Poster) *SensorMonitor {
	return &SensorMonitor{
		timers: timers,
		target: target,
	}
}

// Baseline records the levels observed at power-on without raising events.
func (s *SensorMonitor) Baseline(sample Sample) {
	s.last = sample
}

// Poll compares level to the channel's last observed level. An unchanged
// level is ignored. A change is stored, and a change to Triggered signals
// activity and returns the channel's event. The wave channel only returns
// an event on every WaveThreshold-th trigger.
func (s *SensorMonitor) Poll(ch Channel, level TriggerState) (Event, bool) {
	if ch < 0 || ch >= NumChannels {
		return NoEvent, false
	}
	if s.last[ch] == level {
		return NoEvent, false
	}
	s.last[ch] = level
	if level != Triggered {
		return NoEvent, false
	}

	s.counts[ch]++
	s.activity()

	if ch == ChannelWave {
		s.waves++
		if s.waves < WaveThreshold {
			return NoEvent, false
		}
		s.waves = 0
	}
	return Event{Type: channelEvents[ch], Param: uint32(level)}, true
}

// Process polls every channel of sample in channel order and posts the
// resulting events to the target. Events whose post fails are still returned.
func (s *SensorMonitor) Process(sample Sample) []Event {
	var events []Event
	for ch := Channel(0); ch < NumChannels; ch++ {
		ev, ok := s.Poll(ch, sample[ch])
		if !ok {
			continue
		}
		events = append(events, ev)
		if s.target != nil {
			s.target.Post(ev)
		}
	}
	return events
}

// Run handles the monitor's own events: Init and Trigger arm the watchdog,
// and its expiry posts NoTrigger to the target.
func (s *SensorMonitor) Run(ev Event) Event {
	switch ev.Type {
	case EventInit, EventTrigger:
		s.activity()
	case EventTimeout:
		if ev.Timer == TimerNoTrigger && s.target != nil {
			s.target.Post(Event{Type: EventNoTrigger})
		}
	}
	return NoEvent
}

// Levels returns the last observed level of every channel.
func (s *SensorMonitor) Levels() Sample {
	return s.last
}

// TriggerCounts returns the number of raw triggers seen per channel.
func (s *SensorMonitor) TriggerCounts() [NumChannels]int {
	return s.counts
}

// PendingWaves returns the raw wave triggers counted toward the next Wave event.
func (s *SensorMonitor) PendingWaves() int {
	return s.waves
}

func (s *SensorMonitor) activity() {
	s.timers.Start(TimerNoTrigger, InactivityTimeout)
}
