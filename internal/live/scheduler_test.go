package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mu      sync.Mutex
	results []Result[string]
}

func (c *collector) deliver(r Result[string]) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Result[string] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result[string](nil), c.results...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(Config{}, func(context.Context, uint64) (string, error) { return "", nil }, func(Result[string]) {}, nil)
	if s.interval != DefaultInterval {
		t.Errorf("expected %v, got %v", DefaultInterval, s.interval)
	}
}

func TestScheduler_ImmediateFire(t *testing.T) {
	c := &collector{}
	s := NewScheduler(Config{Interval: time.Hour, Immediate: true},
		func(_ context.Context, seq uint64) (string, error) { return "frame", nil },
		c.deliver, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
	cancel()
	<-done

	got := c.snapshot()
	if got[0].Sequence != 1 || got[0].Value != "frame" {
		t.Errorf("unexpected result %+v", got[0])
	}
}

func TestScheduler_DropsTicksWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls sync.WaitGroup
	calls.Add(1)

	c := &collector{}
	s := NewScheduler(Config{Interval: 5 * time.Millisecond, Immediate: true},
		func(_ context.Context, seq uint64) (string, error) {
			if seq == 1 {
				calls.Done()
				<-release
			}
			return "ok", nil
		},
		c.deliver, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	calls.Wait()
	waitFor(t, func() bool { return s.Stats().Dropped >= 3 })

	if fired := s.Stats().Fired; fired != 1 {
		t.Errorf("expected a single call in flight, got %d fired", fired)
	}

	close(release)
	waitFor(t, func() bool { return len(c.snapshot()) >= 2 })
	cancel()
	<-done

	got := c.snapshot()
	for i := 1; i < len(got); i++ {
		if got[i].Sequence <= got[i-1].Sequence {
			t.Errorf("results out of order: %d after %d", got[i].Sequence, got[i-1].Sequence)
		}
	}
}

func TestScheduler_DeliversInFlightAfterStop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	c := &collector{}
	s := NewScheduler(Config{Interval: time.Hour, Immediate: true},
		func(ctx context.Context, seq uint64) (string, error) {
			close(started)
			<-release
			return "late", ctx.Err()
		},
		c.deliver, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before in-flight call completed")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivered result, got %d", len(got))
	}
	if got[0].Value != "late" {
		t.Errorf("unexpected value %q", got[0].Value)
	}
	if got[0].Err != nil {
		t.Errorf("in-flight call should not see cancellation, got %v", got[0].Err)
	}
}

func TestScheduler_DeliversErrors(t *testing.T) {
	boom := errors.New("boom")
	c := &collector{}
	s := NewScheduler(Config{Interval: time.Hour, Immediate: true},
		func(context.Context, uint64) (string, error) { return "", boom },
		c.deliver, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
	cancel()
	<-done

	if !errors.Is(c.snapshot()[0].Err, boom) {
		t.Errorf("expected boom, got %v", c.snapshot()[0].Err)
	}
}

func TestScheduler_DiscardsStaleResults(t *testing.T) {
	c := &collector{}
	s := NewScheduler(Config{Interval: time.Hour},
		func(context.Context, uint64) (string, error) { return "", nil },
		c.deliver, discardLogger())

	s.delivered = 5
	s.sequence = 3
	s.fire(context.Background())
	s.wg.Wait()

	if len(c.snapshot()) != 0 {
		t.Errorf("expected stale result to be discarded, got %+v", c.snapshot())
	}
	if s.Stats().Discarded != 1 {
		t.Errorf("expected 1 discarded, got %d", s.Stats().Discarded)
	}
}
