package live

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 5 * time.Second

type Config struct {
	Interval  time.Duration
	Immediate bool
}

// CallFunc performs one capture-and-analyze round trip for sequence.
type CallFunc[T any] func(ctx context.Context, sequence uint64) (T, error)

type Result[T any] struct {
	Sequence uint64
	Value    T
	Err      error
}

type Stats struct {
	Fired     uint64
	Dropped   uint64
	Delivered uint64
	Discarded uint64
}

// Scheduler fires a call on a fixed interval with at most one call in
// flight. Ticks that arrive while a call is running are dropped, and results
// older than the newest delivered one are discarded.
type Scheduler[T any] struct {
	interval  time.Duration
	immediate bool
	call      CallFunc[T]
	deliver   func(Result[T])
	logger    *slog.Logger

	mu        sync.Mutex
	inFlight  bool
	sequence  uint64
	delivered uint64
	stats     Stats
	wg        sync.WaitGroup
}

func NewScheduler[T any](cfg Config, call CallFunc[T], deliver func(Result[T]), logger *slog.Logger) *Scheduler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler[T]{
		interval:  cfg.Interval,
		immediate: cfg.Immediate,
		call:      call,
		deliver:   deliver,
		logger:    logger.With("component", "live-scheduler"),
	}
}

// Run schedules calls until ctx is cancelled. A call still in flight at that
// point runs to completion and its result is delivered before Run returns.
func (s *Scheduler[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.immediate {
		s.fire(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler[T]) fire(ctx context.Context) bool {
	s.mu.Lock()
	if s.inFlight {
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Debug("tick dropped, call in flight")
		return false
	}
	s.inFlight = true
	s.sequence++
	seq := s.sequence
	s.stats.Fired++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		value, err := s.call(context.WithoutCancel(ctx), seq)

		s.mu.Lock()
		s.inFlight = false
		stale := seq <= s.delivered
		if stale {
			s.stats.Discarded++
		} else {
			s.delivered = seq
			s.stats.Delivered++
		}
		s.mu.Unlock()

		if stale {
			s.logger.Debug("discarding stale result", "sequence", seq)
			return
		}
		s.deliver(Result[T]{Sequence: seq, Value: value, Err: err})
	}()
	return true
}

func (s *Scheduler[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
