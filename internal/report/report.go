// Package report moves controller notices off the dispatch goroutine and
// fans them out to telemetry, session history and the status tracker.
package report

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/mqtt"
	"github.com/sweeney/sensory-game/internal/store"
)

// QueueSize is how many notices may wait for the reporter goroutine.
const QueueSize = 64

// History records finished sessions.
type History interface {
	Record(ctx context.Context, s store.Session) error
}

// Sessions is told about session boundaries.
type Sessions interface {
	BeginSession(id string)
	FinishGame(score int)
	FinishZen()
}

// Reporter implements logic.Listener. Notify never blocks; notices that do
// not fit in the queue are dropped and counted.
type Reporter struct {
	pub      mqtt.Publisher
	history  History
	sessions Sessions
	now      func() time.Time
	newID    func() string

	notices chan queued
	dropped atomic.Int64

	// owned by the Run goroutine
	current store.Session
	open    bool
}

// queued is a notice stamped when the controller raised it.
type queued struct {
	notice logic.Notice
	at     time.Time
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithIDs replaces the session id generator.
func WithIDs(newID func() string) Option {
	return func(r *Reporter) { r.newID = newID }
}

// New creates a Reporter. Any of pub, history and sessions may be nil.
func New(pub mqtt.Publisher, history History, sessions Sessions, opts ...Option) *Reporter {
	r := &Reporter{
		pub:      pub,
		history:  history,
		sessions: sessions,
		now:      time.Now,
		newID:    uuid.NewString,
		notices:  make(chan queued, QueueSize),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Notify stamps n and queues it for the reporter goroutine.
func (r *Reporter) Notify(n logic.Notice) {
	select {
	case r.notices <- queued{notice: n, at: r.now()}:
	default:
		if r.dropped.Add(1) == 1 {
			log.Printf("report: queue full, dropping %s notice", n.Kind)
		}
	}
}

// Dropped returns how many notices did not fit in the queue.
func (r *Reporter) Dropped() int {
	return int(r.dropped.Load())
}

// Run handles notices until ctx is cancelled, then handles whatever is
// still queued and returns.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case q := <-r.notices:
			r.handle(q.notice, q.at)
		case <-ctx.Done():
			for {
				select {
				case q := <-r.notices:
					r.handle(q.notice, q.at)
				default:
					return
				}
			}
		}
	}
}

// Session returns the id of the open session, or "" in idle.
// Only meaningful from the Run goroutine or after Run returned.
func (r *Reporter) Session() string {
	if !r.open {
		return ""
	}
	return r.current.ID
}

func (r *Reporter) handle(n logic.Notice, now time.Time) {
	switch {
	case n.Kind == logic.NoticePhase && n.Phase == logic.PhaseGameStartUp:
		r.begin(store.KindGame, now)
	case n.Kind == logic.NoticePhase && n.Phase == logic.PhaseZen:
		if !r.open || r.current.Kind != store.KindZen {
			r.begin(store.KindZen, now)
		}
	}

	r.publish(n, now)

	switch n.Kind {
	case logic.NoticeGameOver:
		r.finish(store.KindGame, n, now)
	case logic.NoticeZenOver:
		r.finish(store.KindZen, n, now)
	case logic.NoticePhase:
		if n.Phase == logic.PhaseIdle && r.open {
			log.Printf("report: session %s left without result", r.current.ID)
			r.open = false
		}
	}
}

func (r *Reporter) begin(kind store.Kind, now time.Time) {
	if r.open {
		log.Printf("report: session %s superseded", r.current.ID)
	}
	r.current = store.Session{ID: r.newID(), Kind: kind, StartedAt: now}
	r.open = true
	log.Printf("report: %s session %s started", kind, r.current.ID)
	if r.sessions != nil {
		r.sessions.BeginSession(r.current.ID)
	}
}

func (r *Reporter) finish(kind store.Kind, n logic.Notice, now time.Time) {
	if !r.open || r.current.Kind != kind {
		log.Printf("report: %s without open %s session", n.Kind, kind)
		return
	}
	sess := r.current
	sess.EndedAt = now
	sess.Score = n.Score
	sess.Reason = n.Reason
	r.open = false

	log.Printf("report: %s session %s finished score=%d reason=%s", kind, sess.ID, sess.Score, sess.Reason)

	if r.sessions != nil {
		if kind == store.KindGame {
			r.sessions.FinishGame(sess.Score)
		} else {
			r.sessions.FinishZen()
		}
	}
	if r.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.history.Record(ctx, sess)
		cancel()
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			log.Printf("report: failed to record session %s: %v", sess.ID, err)
		}
	}
}

func (r *Reporter) publish(n logic.Notice, now time.Time) {
	if r.pub == nil {
		return
	}
	ev := mqtt.GameEvent{Timestamp: now, Session: r.Session(), Notice: n}
	if err := r.pub.Publish(ev); err != nil {
		// Don't crash on publish failure
		log.Printf("report: failed to publish %s: %v", n.Kind, err)
	}
}
