package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensory-game/internal/store"
)

// HistoryJSON is the JSON envelope for /history.json.
type HistoryJSON struct {
	Sessions []SessionJSON `json:"sessions"`
}

// SessionJSON is one finished session.
type SessionJSON struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	StartedAt       string `json:"started_at"`
	EndedAt         string `json:"ended_at"`
	DurationSeconds int64  `json:"duration_seconds"`
	Score           int    `json:"score"`
	Reason          string `json:"reason,omitempty"`
}

func formatHistory(sessions []store.Session) []byte {
	hj := HistoryJSON{Sessions: make([]SessionJSON, 0, len(sessions))}
	for _, s := range sessions {
		hj.Sessions = append(hj.Sessions, SessionJSON{
			ID:              s.ID,
			Kind:            string(s.Kind),
			StartedAt:       s.StartedAt.UTC().Format(time.RFC3339),
			EndedAt:         s.EndedAt.UTC().Format(time.RFC3339),
			DurationSeconds: int64(s.Duration().Truncate(time.Second).Seconds()),
			Score:           s.Score,
			Reason:          s.Reason,
		})
	}

	data, _ := json.MarshalIndent(hj, "", "  ")
	return data
}
