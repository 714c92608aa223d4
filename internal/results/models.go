package results

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/pruefungstrainer/internal/grading"
)

var ErrNotFound = errors.New("result not found")

// Finish reasons.
const (
	ReasonManual = "manual"
	ReasonTimer  = "timer"
)

// Result is the persisted outcome of a finished exam session.
type Result struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	UserID      string              `json:"user_id"`
	Module      string              `json:"module"`
	Section     string              `json:"section"`
	Level       string              `json:"level"`
	Theme       string              `json:"theme"`
	Version     string              `json:"version"`
	Reason      string              `json:"reason"`
	TotalEarned float64             `json:"total_earned"`
	TotalMax    float64             `json:"total_max"`
	Percent     int                 `json:"percent"`
	PassPercent float64             `json:"pass_percent"`
	Passed      bool                `json:"passed"`
	Parts       []grading.Breakdown `json:"parts"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// FromSummary copies the aggregate fields of a score summary.
func (r *Result) FromSummary(s grading.Summary) {
	r.TotalEarned = s.TotalEarned
	r.TotalMax = s.TotalMax
	r.Percent = s.Percent
	r.PassPercent = s.PassPercent
	r.Passed = s.Passed
	r.Parts = append([]grading.Breakdown(nil), s.Parts...)
}

// Store persists results and the per-user timer preference.
type Store interface {
	Save(ctx context.Context, r Result) error
	Get(ctx context.Context, id string) (Result, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Result, error)
	SetTimerPreference(ctx context.Context, userID string, enabled bool) error
	// TimerPreference returns nil when the user never set one.
	TimerPreference(ctx context.Context, userID string) (*bool, error)
}
