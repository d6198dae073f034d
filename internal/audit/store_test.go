package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestStore_Record_AssignsID(t *testing.T) {
	store := newTestStore(t)
	ev := &Event{Mode: "single_image", Source: "upload", Outcome: OutcomeStructured, DurationMs: 120}

	if err := store.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.HasPrefix(ev.ID, "evt_") {
		t.Errorf("expected evt_ prefix, got %q", ev.ID)
	}
	if ev.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Recent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := &Event{Mode: "video", Source: "upload", Outcome: OutcomeStructured, FrameCount: 5}
		ev.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].CreatedAt.Before(events[1].CreatedAt) {
		t.Error("expected newest event first")
	}
}

func TestStore_Summary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []*Event{
		{Mode: "single_image", Source: "url", Outcome: OutcomeStructured},
		{Mode: "single_image", Source: "upload", Outcome: OutcomeStructured},
		{Mode: "single_image", Source: "upload", Outcome: OutcomeContentFiltered},
		{Mode: "video", Source: "upload", Outcome: OutcomeExtractionFailed},
	}
	for _, ev := range records {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	counts, err := store.Summary(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	got := make(map[string]int64)
	for _, c := range counts {
		got[c.Mode+"/"+string(c.Outcome)] = c.Count
	}
	if got["single_image/structured"] != 2 {
		t.Errorf("expected 2 structured single_image, got %d", got["single_image/structured"])
	}
	if got["single_image/content_filtered"] != 1 {
		t.Errorf("expected 1 filtered, got %d", got["single_image/content_filtered"])
	}
	if got["video/extraction_failed"] != 1 {
		t.Errorf("expected 1 extraction failure, got %d", got["video/extraction_failed"])
	}
}

func TestStore_Summary_RespectsSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &Event{Mode: "live_frame", Source: "upload", Outcome: OutcomeFallback, CreatedAt: time.Now().Add(-48 * time.Hour)}
	if err := store.Record(ctx, old); err != nil {
		t.Fatalf("record: %v", err)
	}

	counts, err := store.Summary(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("expected no counts, got %+v", counts)
	}
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Record(ctx, &Event{Mode: "video", Source: "upload", Outcome: OutcomeStructured, CreatedAt: time.Now().Add(-72 * time.Hour)})
	_ = store.Record(ctx, &Event{Mode: "video", Source: "upload", Outcome: OutcomeStructured})

	removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	if err := r.Record(context.Background(), &Event{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
