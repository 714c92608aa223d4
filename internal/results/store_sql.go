package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	syncx "github.com/mind-engage/pruefungstrainer/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
}

// NewSQLStore works with both the sqlite and the postgres schema. Every
// saved result is mirrored into the event log in the same transaction.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, events: syncx.NewEventRepo(db)}
}

func (s *SQLStore) Save(ctx context.Context, r Result) error {
	parts, err := json.Marshal(r.Parts)
	if err != nil {
		return err
	}
	ev, err := syncx.NewEvent(syncx.TypeResultRecorded, r.ID, map[string]interface{}{
		"user_id": r.UserID,
		"module":  r.Module,
		"theme":   r.Theme,
		"version": r.Version,
		"percent": r.Percent,
		"passed":  r.Passed,
		"reason":  r.Reason,
	})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO results
		(id,session_id,user_id,module,section,level,theme,version,reason,
		 total_earned,total_max,percent,pass_percent,passed,parts_json,finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		r.ID, r.SessionID, r.UserID, r.Module, r.Section, r.Level, r.Theme, r.Version, r.Reason,
		r.TotalEarned, r.TotalMax, r.Percent, r.PassPercent, r.Passed, string(parts), r.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if err := s.events.AppendTx(ctx, tx, ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return tx.Commit()
}

const resultColumns = `id,session_id,user_id,module,section,level,theme,version,reason,
	total_earned,total_max,percent,pass_percent,passed,parts_json,finished_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row scanner) (Result, error) {
	var r Result
	var parts string
	var finished int64
	if err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Module, &r.Section, &r.Level, &r.Theme,
		&r.Version, &r.Reason, &r.TotalEarned, &r.TotalMax, &r.Percent, &r.PassPercent, &r.Passed,
		&parts, &finished); err != nil {
		return Result{}, err
	}
	if err := json.Unmarshal([]byte(parts), &r.Parts); err != nil {
		return Result{}, err
	}
	r.FinishedAt = time.Unix(finished, 0).UTC()
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id=$1`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	return r, err
}

// ListByUser returns the newest results first; an empty userID lists all.
func (s *SQLStore) ListByUser(ctx context.Context, userID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if userID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+resultColumns+` FROM results ORDER BY finished_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+resultColumns+` FROM results WHERE user_id=$1 ORDER BY finished_at DESC LIMIT $2`, userID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetTimerPreference(ctx context.Context, userID string, enabled bool) error {
	ev, err := syncx.NewEvent(syncx.TypeTimerPrefSet, userID, map[string]bool{"enabled": enabled})
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO preferences (user_id,timer_enabled,updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET timer_enabled=EXCLUDED.timer_enabled, updated_at=EXCLUDED.updated_at`,
		userID, enabled, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := s.events.AppendTx(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) TimerPreference(ctx context.Context, userID string) (*bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `SELECT timer_enabled FROM preferences WHERE user_id=$1`, userID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enabled, nil
}

// Events exposes the audit trail written alongside results.
func (s *SQLStore) Events() *syncx.EventRepo { return s.events }
