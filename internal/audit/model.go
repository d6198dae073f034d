package audit

import "time"

type Outcome string

const (
	OutcomeStructured       Outcome = "structured"
	OutcomeFallback         Outcome = "fallback"
	OutcomeContentFiltered  Outcome = "content_filtered"
	OutcomeTooLarge         Outcome = "too_large"
	OutcomeRejectedURL      Outcome = "rejected_url"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeUpstreamFailed   Outcome = "upstream_failed"
)

// Event records how one analysis ended. Result content is never stored.
type Event struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Mode       string    `gorm:"not null;index" json:"mode"`
	Source     string    `gorm:"not null" json:"source"`
	Outcome    Outcome   `gorm:"not null;index" json:"outcome"`
	FrameCount int       `json:"frame_count"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

type OutcomeCount struct {
	Mode    string  `json:"mode"`
	Outcome Outcome `json:"outcome"`
	Count   int64   `json:"count"`
}
