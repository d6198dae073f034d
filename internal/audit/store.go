package audit

import (
	"context"
	"time"

	"github.com/eleven-am/vision-backend/internal/shared"
	"gorm.io/gorm"
)

type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Event{})
}

func (s *Store) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = shared.NewID("evt_")
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *Store) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []*Event
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// Summary counts events per mode and outcome created at or after since.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	var counts []OutcomeCount
	err := s.db.WithContext(ctx).
		Model(&Event{}).
		Select("mode, outcome, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("mode, outcome").
		Order("mode, outcome").
		Scan(&counts).Error
	return counts, err
}

func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&Event{})
	return res.RowsAffected, res.Error
}

type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, *Event) error {
	return nil
}
