// Package dispatch hosts the device components on a single goroutine.
//
// Each component owns an Endpoint: a bounded FIFO queue plus a set of named
// one-shot timers. Endpoints are served in priority order, one event at a
// time, so handlers never run concurrently and never need locks of their own.
package dispatch

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/sweeney/sensory-game/internal/logic"
)

// Handler processes one event to completion.
type Handler interface {
	Run(ev logic.Event) logic.Event
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev logic.Event) logic.Event

// Run calls f(ev).
func (f HandlerFunc) Run(ev logic.Event) logic.Event {
	return f(ev)
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Checker polls an input source. It runs on the dispatch goroutine on every
// tick and reports whether it found anything.
type Checker func() bool

// Stats is a point-in-time view of one endpoint.
type Stats struct {
	Name    string
	Queued  int
	Handled int
	Dropped int
}

type item struct {
	ev    logic.Event
	timer bool
	gen   uint64
}

type timerSlot struct {
	gen  uint64
	stop func() bool
}

// Runtime owns the endpoints, their timers and the checkers.
type Runtime struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	byPrio    []*Endpoint
	checkers  []Checker
	wake      chan struct{}
	afterFunc AfterFunc
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithAfterFunc replaces time.AfterFunc. Tests use it to fire timers by hand.
func WithAfterFunc(f AfterFunc) Option {
	return func(r *Runtime) {
		r.afterFunc = f
	}
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		wake:      make(chan struct{}, 1),
		afterFunc: realAfterFunc,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add registers an endpoint. Higher priority endpoints are served first;
// equal priorities are served in registration order. The handler is bound
// later with Bind so components can be built with the endpoint's timers.
func (r *Runtime) Add(name string, priority, capacity int) *Endpoint {
	if capacity < 1 {
		capacity = 1
	}
	e := &Endpoint{
		rt:       r,
		name:     name,
		priority: priority,
		capacity: capacity,
		timers:   make(map[logic.TimerName]*timerSlot),
	}

	r.mu.Lock()
	r.endpoints = append(r.endpoints, e)
	r.byPrio = append([]*Endpoint(nil), r.endpoints...)
	sort.SliceStable(r.byPrio, func(i, j int) bool {
		return r.byPrio[i].priority > r.byPrio[j].priority
	})
	r.mu.Unlock()
	return e
}

// AddChecker registers an input checker run on every tick.
func (r *Runtime) AddChecker(c Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, c)
	r.mu.Unlock()
}

// Init posts EventInit to every endpoint, highest priority first.
func (r *Runtime) Init() {
	r.mu.Lock()
	eps := append([]*Endpoint(nil), r.byPrio...)
	r.mu.Unlock()
	for _, e := range eps {
		e.Post(logic.Event{Type: logic.EventInit})
	}
}

// Check runs every checker once.
func (r *Runtime) Check() bool {
	r.mu.Lock()
	checkers := append([]Checker(nil), r.checkers...)
	r.mu.Unlock()

	found := false
	for _, c := range checkers {
		if c() {
			found = true
		}
	}
	return found
}

// Drain serves queued events until every queue is empty and returns the
// number of events handled. Events posted by handlers are served in the
// same call.
func (r *Runtime) Drain() int {
	n := 0
	for {
		e, it, ok := r.next()
		if !ok {
			return n
		}
		if it.timer && !e.claim(it) {
			continue
		}
		if e.handler == nil {
			log.Printf("dispatch: %s has no handler, dropped %s", e.name, it.ev.Type)
			continue
		}
		if res := e.handler.Run(it.ev); res.Type != logic.EventNone {
			log.Printf("dispatch: %s returned %s for %s", e.name, res.Type, it.ev.Type)
		}
		n++
		r.mu.Lock()
		e.handled++
		r.mu.Unlock()
	}
}

// Stats returns a snapshot of every endpoint in registration order.
func (r *Runtime) Stats() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stats, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, Stats{
			Name:    e.name,
			Queued:  len(e.queue),
			Handled: e.handled,
			Dropped: e.dropped,
		})
	}
	return out
}

// Wake is signalled when an event is posted or a timer expires. The host
// loop selects on it and calls Drain.
func (r *Runtime) Wake() <-chan struct{} {
	return r.wake
}

// Stop cancels every armed timer.
func (r *Runtime) Stop() {
	r.stopAll()
}

func (r *Runtime) next() (*Endpoint, item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byPrio {
		if len(e.queue) == 0 {
			continue
		}
		it := e.queue[0]
		e.queue[0] = item{}
		e.queue = e.queue[1:]
		return e, it, true
	}
	return nil, item{}, false
}

func (r *Runtime) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.endpoints {
		for name, slot := range e.timers {
			slot.stop()
			delete(e.timers, name)
		}
	}
}

// Endpoint is one component's queue and timer set. It implements
// logic.Poster and logic.Timers.
type Endpoint struct {
	rt       *Runtime
	name     string
	priority int
	capacity int
	handler  Handler

	// guarded by rt.mu
	queue   []item
	timers  map[logic.TimerName]*timerSlot
	gen     uint64
	handled int
	dropped int
}

// Bind sets the handler that receives this endpoint's events.
func (e *Endpoint) Bind(h Handler) {
	e.rt.mu.Lock()
	e.handler = h
	e.rt.mu.Unlock()
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// Post enqueues ev. It returns false when the queue is full.
func (e *Endpoint) Post(ev logic.Event) bool {
	e.rt.mu.Lock()
	if len(e.queue) >= e.capacity {
		e.dropped++
		e.rt.mu.Unlock()
		log.Printf("dispatch: %s queue full, dropped %s", e.name, ev.Type)
		return false
	}
	e.queue = append(e.queue, item{ev: ev})
	e.rt.mu.Unlock()
	e.rt.signal()
	return true
}

// Start arms the named timer. Restarting a running timer supersedes it.
func (e *Endpoint) Start(name logic.TimerName, d time.Duration) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()

	if slot, ok := e.timers[name]; ok {
		slot.stop()
	}
	e.gen++
	gen := e.gen
	stop := e.rt.afterFunc(d, func() {
		e.expire(name, gen)
	})
	e.timers[name] = &timerSlot{gen: gen, stop: stop}
}

// Stop cancels the named timer. An expiration already queued is discarded.
func (e *Endpoint) Stop(name logic.TimerName) {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()

	if slot, ok := e.timers[name]; ok {
		slot.stop()
		delete(e.timers, name)
	}
}

// Running reports whether the named timer is armed.
func (e *Endpoint) Running(name logic.TimerName) bool {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	_, ok := e.timers[name]
	return ok
}

// expire queues a timeout. Timeouts are not subject to the queue capacity:
// a dropped expiration would stall the owner's state machine.
func (e *Endpoint) expire(name logic.TimerName, gen uint64) {
	e.rt.mu.Lock()
	e.queue = append(e.queue, item{ev: logic.TimeoutEvent(name), timer: true, gen: gen})
	e.rt.mu.Unlock()
	e.rt.signal()
}

// claim reports whether a queued timeout is still current and disarms it.
func (e *Endpoint) claim(it item) bool {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	slot, ok := e.timers[it.ev.Timer]
	if !ok || slot.gen != it.gen {
		return false
	}
	delete(e.timers, it.ev.Timer)
	return true
}
