package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openbrick/brickd/internal/infrastructure/database"
	_ "github.com/openbrick/brickd/migrations"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func floatPtr(f float64) *float64 { return &f }

func TestHistory_InsertAndRecent(t *testing.T) {
	db := openTestDB(t)
	h := NewHistory(db.DB)
	ctx := context.Background()

	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := MotionRecord{
		RobotID:    "brick-001",
		Kind:       "travel",
		Distance:   floatPtr(250),
		Speed:      150,
		Outcome:    "completed",
		StartedAt:  started,
		FinishedAt: started.Add(1700 * time.Millisecond),
	}
	if err := h.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d records, want 1", len(got))
	}

	r := got[0]
	if r.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if r.RobotID != "brick-001" || r.Kind != "travel" || r.Outcome != "completed" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Distance == nil || *r.Distance != 250 {
		t.Errorf("Distance = %v, want 250", r.Distance)
	}
	if r.Angle != nil {
		t.Errorf("Angle = %v, want nil", r.Angle)
	}
	if !r.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", r.StartedAt, started)
	}
}

func TestHistory_RecentOrdering(t *testing.T) {
	db := openTestDB(t)
	h := NewHistory(db.DB)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i, kind := range []string{"travel", "rotate", "arc"} {
		rec := MotionRecord{
			RobotID:    "brick-001",
			Kind:       kind,
			Speed:      100,
			Outcome:    "completed",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := h.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", kind, err)
		}
	}

	got, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d records, want 2", len(got))
	}
	if got[0].Kind != "arc" || got[1].Kind != "rotate" {
		t.Errorf("order = [%s, %s], want [arc, rotate]", got[0].Kind, got[1].Kind)
	}
}

func TestHistory_RecentEmpty(t *testing.T) {
	db := openTestDB(t)
	h := NewHistory(db.DB)

	got, err := h.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if got == nil {
		t.Error("Recent() = nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("Recent() returned %d records, want 0", len(got))
	}
}

func TestHistory_InsertValidation(t *testing.T) {
	db := openTestDB(t)
	h := NewHistory(db.DB)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name string
		rec  MotionRecord
	}{
		{"missing robot ID", MotionRecord{Kind: "travel", Outcome: "completed", StartedAt: now, FinishedAt: now}},
		{"missing kind", MotionRecord{RobotID: "brick-001", Outcome: "completed", StartedAt: now, FinishedAt: now}},
		{"missing outcome", MotionRecord{RobotID: "brick-001", Kind: "travel", StartedAt: now, FinishedAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Insert(ctx, tt.rec)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("Insert() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestHistory_CountByOutcome(t *testing.T) {
	db := openTestDB(t)
	h := NewHistory(db.DB)
	ctx := context.Background()
	now := time.Now()

	for _, outcome := range []string{"completed", "completed", "stalled"} {
		rec := MotionRecord{
			RobotID:    "brick-001",
			Kind:       "travel",
			Outcome:    outcome,
			StartedAt:  now,
			FinishedAt: now.Add(time.Second),
		}
		if err := h.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	counts, err := h.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome() error = %v", err)
	}
	if counts["completed"] != 2 || counts["stalled"] != 1 {
		t.Errorf("counts = %v, want completed:2 stalled:1", counts)
	}
}
