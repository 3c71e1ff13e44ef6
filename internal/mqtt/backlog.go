package mqtt

import "log"

// outbound is a serialized message waiting for the broker.
type outbound struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while the broker is unreachable and
// replays them in order after reconnection. When full, the oldest message
// is overwritten. Not safe for concurrent use.
type backlog struct {
	msgs    []outbound
	next    int // next write position
	count   int
	dropped int // overwritten since the last drain
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{msgs: make([]outbound, capacity)}
}

func (b *backlog) push(msg outbound) {
	capacity := len(b.msgs)
	if b.count == capacity {
		if b.dropped == 0 {
			log.Printf("mqtt: backlog full (%d messages), dropping oldest", capacity)
		}
		b.dropped++
	} else {
		b.count++
	}
	b.msgs[b.next] = msg
	b.next = (b.next + 1) % capacity
}

// drain returns the held messages oldest first and empties the backlog.
func (b *backlog) drain() []outbound {
	if b.count == 0 {
		return nil
	}

	capacity := len(b.msgs)
	out := make([]outbound, b.count)
	start := (b.next - b.count + capacity) % capacity
	for i := range out {
		out[i] = b.msgs[(start+i)%capacity]
		b.msgs[(start+i)%capacity] = outbound{}
	}

	b.count = 0
	b.next = 0
	b.dropped = 0
	return out
}

func (b *backlog) len() int {
	return b.count
}
