package frames

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoFrames     = errors.New("no frames extracted")
	ErrInvalidCount = errors.New("frame count must be positive")
)

type Config struct {
	FFmpegPath  string
	FFprobePath string
	Height      int
	Timeout     time.Duration
}

type Frame struct {
	Index int
	Path  string
}

// Extraction is the ordered result of one Extract call. Frames are sorted by
// Index ascending.
type Extraction struct {
	Dir    string
	Frames []Frame
}

func (e *Extraction) Paths() []string {
	paths := make([]string, 0, len(e.Frames))
	for _, f := range e.Frames {
		paths = append(paths, f.Path)
	}
	return paths
}

// Error is returned for any extraction failure.
type Error struct {
	Op     string
	Err    error
	Output string
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("frame extraction %s: %v (output: %s)", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("frame extraction %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
