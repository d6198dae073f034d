package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/eleven-am/vision-backend/internal/frames"
	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
)

const wellFormedReply = `{"general_description":"A cat on a sofa.","number_of_people":"No people","objects":"Cat, Sofa"}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*prompt.Request
}

func (f *fakeClient) Complete(_ context.Context, req *prompt.Request) (*llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Reply{Text: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeExtractor writes frame files under outputRoot and returns them in
// the listed order, which need not be ascending.
type fakeExtractor struct {
	order []int
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, videoPath, outputRoot string, count int) (*frames.Extraction, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &frames.Error{Op: "open", Err: err}
	}

	dir := filepath.Join(outputRoot, "frames-test")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	extraction := &frames.Extraction{Dir: dir}

	if f.err != nil {
		_ = os.WriteFile(filepath.Join(dir, "frame-1.png"), []byte("partial"), 0o644)
		return extraction, &frames.Error{Op: "ffmpeg", Err: f.err}
	}

	order := f.order
	if order == nil {
		for i := 1; i <= count; i++ {
			order = append(order, i)
		}
	}
	for _, idx := range order {
		path := filepath.Join(dir, fmt.Sprintf("frame-%d.png", idx))
		if err := os.WriteFile(path, frameContent(idx), 0o644); err != nil {
			return nil, err
		}
		extraction.Frames = append(extraction.Frames, frames.Frame{Index: idx, Path: path})
	}
	return extraction, nil
}

func frameContent(idx int) []byte {
	return []byte(fmt.Sprintf("frame-bytes-%02d", idx))
}

type fakeTracker struct {
	latest map[string]uint64
	err    error
}

func (f *fakeTracker) Advance(_ context.Context, sessionID string, sequence uint64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.latest == nil {
		f.latest = make(map[string]uint64)
	}
	if cur, ok := f.latest[sessionID]; ok && cur >= sequence {
		return false, nil
	}
	f.latest[sessionID] = sequence
	return true, nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (f *fakeRecorder) Record(_ context.Context, ev *audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRecorder) last() *audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

func newTestAnalyzer(client llm.Client, extractor Extractor, frameCount int) *Analyzer {
	return NewAnalyzer(
		Config{FrameCount: frameCount},
		media.NewEncoder(media.EncoderConfig{}),
		prompt.NewAssembler(),
		client,
		extractor,
		discardLogger(),
	)
}

var errFFmpeg = errors.New("exit status 1")

func contentFilterError() error {
	return &llm.UpstreamError{Status: 400, Code: "content_filter", Message: "The response was filtered"}
}
