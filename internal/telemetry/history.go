// Package telemetry records what the robot has done and how it is
// doing: motion outcomes go to SQLite, periodic battery and motor
// samples go to InfluxDB.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MotionRecord is one pilot operation that reached a terminal state.
// Distance, Angle and Radius are nil when the motion kind has no such
// parameter (a pure rotation has no distance, a straight travel no
// angle).
type MotionRecord struct {
	ID         int64     `json:"id"`
	RobotID    string    `json:"robot_id"`
	Kind       string    `json:"kind"`
	Distance   *float64  `json:"distance,omitempty"`
	Angle      *float64  `json:"angle,omitempty"`
	Radius     *float64  `json:"radius,omitempty"`
	Speed      float64   `json:"speed"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// History reads and writes the motion_history table.
type History struct {
	db *sql.DB
}

// NewHistory creates a motion history repository.
func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Insert appends one terminal motion record. Timestamps are stored as
// RFC 3339 UTC, the duration is derived from them.
func (h *History) Insert(ctx context.Context, rec MotionRecord) error {
	if rec.RobotID == "" {
		return fmt.Errorf("%w: robot_id is empty", ErrInvalidRecord)
	}
	if rec.Kind == "" {
		return fmt.Errorf("%w: kind is empty", ErrInvalidRecord)
	}
	if rec.Outcome == "" {
		return fmt.Errorf("%w: outcome is empty", ErrInvalidRecord)
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO motion_history (robot_id, kind, distance, angle, radius, speed, outcome, started_at, finished_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RobotID, rec.Kind,
		nullableFloat(rec.Distance), nullableFloat(rec.Angle), nullableFloat(rec.Radius),
		rec.Speed, rec.Outcome,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.UTC().Format(time.RFC3339),
		rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting motion record: %w", err)
	}
	return nil
}

// nullableFloat returns nil for a nil pointer, or the value otherwise.
// Used for nullable REAL columns in SQLite.
func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Recent returns up to limit motion records, newest first. A
// non-positive limit defaults to 50.
func (h *History) Recent(ctx context.Context, limit int) ([]MotionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, robot_id, kind, distance, angle, radius, speed, outcome, started_at, finished_at
		 FROM motion_history ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying motion history: %w", err)
	}
	defer rows.Close()

	var records []MotionRecord
	for rows.Next() {
		var rec MotionRecord
		var distance, angle, radius sql.NullFloat64
		var startedAt, finishedAt string

		if err := rows.Scan(&rec.ID, &rec.RobotID, &rec.Kind,
			&distance, &angle, &radius, &rec.Speed, &rec.Outcome,
			&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning motion record: %w", err)
		}

		if distance.Valid {
			rec.Distance = &distance.Float64
		}
		if angle.Valid {
			rec.Angle = &angle.Float64
		}
		if radius.Valid {
			rec.Radius = &radius.Float64
		}

		if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating motion history: %w", err)
	}

	if records == nil {
		records = []MotionRecord{}
	}
	return records, nil
}

// CountByOutcome returns how many records exist per outcome.
func (h *History) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM motion_history GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting motion history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcome counts: %w", err)
	}
	return counts, nil
}
