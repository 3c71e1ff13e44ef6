package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	sessions := []Session{
		{ID: "g1", Kind: KindGame, StartedAt: base, EndedAt: base.Add(time.Minute), Score: 7, Reason: "TIME_UP"},
		{ID: "z1", Kind: KindZen, StartedAt: base.Add(2 * time.Minute), EndedAt: base.Add(3 * time.Minute), Reason: "TIME_UP"},
		{ID: "g2", Kind: KindGame, StartedAt: base.Add(4 * time.Minute), EndedAt: base.Add(4*time.Minute + 30*time.Second), Score: 2, Reason: "INACTIVE"},
	}
	for _, sess := range sessions {
		if err := s.Record(ctx, sess); err != nil {
			t.Fatalf("record %s: %v", sess.ID, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ID != "g2" || got[1].ID != "z1" {
		t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Kind != KindGame || got[0].Score != 2 || got[0].Reason != "INACTIVE" {
		t.Errorf("unexpected session %+v", got[0])
	}
	if got[0].Duration() != 30*time.Second {
		t.Errorf("expected 30s duration, got %v", got[0].Duration())
	}
	if !got[1].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("unexpected start time %v", got[1].StartedAt)
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	s := openTempStore(t)
	got, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty history, got %d", len(got))
	}
}

func TestRecordDuplicate(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()
	sess := Session{ID: "dup", Kind: KindGame, Score: 1}

	if err := s.Record(ctx, sess); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, sess); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestRecordValidation(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Session{Kind: KindGame}); err == nil {
		t.Error("expected error for missing id")
	}
	if err := s.Record(ctx, Session{ID: "x", Kind: "PINBALL"}); err == nil {
		t.Error("expected error for unknown kind")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Record(cancelled, Session{ID: "y", Kind: KindZen}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHighScore(t *testing.T) {
	s := openTempStore(t)
	ctx := context.Background()

	best, err := s.HighScore(ctx)
	if err != nil {
		t.Fatalf("high score: %v", err)
	}
	if best != 0 {
		t.Errorf("expected 0 on empty store, got %d", best)
	}

	s.Record(ctx, Session{ID: "a", Kind: KindGame, Score: 4})
	s.Record(ctx, Session{ID: "b", Kind: KindGame, Score: 11})
	s.Record(ctx, Session{ID: "c", Kind: KindZen, Score: 50})

	best, err = s.HighScore(ctx)
	if err != nil {
		t.Fatalf("high score: %v", err)
	}
	if best != 11 {
		t.Errorf("expected 11 (zen sessions ignored), got %d", best)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Record(context.Background(), Session{ID: "keep", Kind: KindGame, Score: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Errorf("expected stored session after reopen, got %+v", got)
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
