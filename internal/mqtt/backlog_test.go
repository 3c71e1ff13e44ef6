package mqtt

import "testing"

func msg(i int) outbound {
	return outbound{topic: "t", payload: []byte{byte(i)}}
}

func TestBacklogEmptyDrain(t *testing.T) {
	b := newBacklog(10)
	if got := b.drain(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestBacklogPushAndDrain(t *testing.T) {
	b := newBacklog(10)
	for i := 0; i < 5; i++ {
		b.push(msg(i))
	}

	got := b.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}
	if got := b.drain(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestBacklogOverflowKeepsNewest(t *testing.T) {
	b := newBacklog(5)
	for i := 0; i < 8; i++ {
		b.push(msg(i))
	}
	if b.dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", b.dropped)
	}

	got := b.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
	if b.dropped != 0 {
		t.Errorf("expected drop count reset by drain, got %d", b.dropped)
	}
}

func TestBacklogCycles(t *testing.T) {
	b := newBacklog(5)
	for i := 0; i < 3; i++ {
		b.push(msg(i))
	}
	if got := b.drain(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		b.push(msg(i))
	}
	got := b.drain()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, m := range got {
		if m.payload[0] != byte(10+i) {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, 10+i, m.payload[0])
		}
	}
}

func TestBacklogLen(t *testing.T) {
	b := newBacklog(0)
	if len(b.msgs) != 1 {
		t.Errorf("expected capacity clamped to 1, got %d", len(b.msgs))
	}
	b.push(msg(1))
	b.push(msg(2))
	if b.len() != 1 {
		t.Errorf("expected len 1, got %d", b.len())
	}
	if got := b.drain(); got[0].payload[0] != 2 {
		t.Errorf("expected newest message kept, got %d", got[0].payload[0])
	}
}

func TestBacklogPreservesFields(t *testing.T) {
	b := newBacklog(10)
	b.push(outbound{topic: "sensory/game/system", payload: []byte(`{"test":true}`), qos: 1, retained: true})

	got := b.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "sensory/game/system" || string(m.payload) != `{"test":true}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
