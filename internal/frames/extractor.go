package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultHeight  = 480
	defaultTimeout = 2 * time.Minute
)

var frameNamePattern = regexp.MustCompile(`^frame-(\d+)\.png$`)

type Extractor struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
	height  int
	timeout time.Duration
	logger  *slog.Logger
}

func NewExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		runner:  runner,
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		height:  cfg.Height,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "frame-extractor"),
	}
}

// Extract samples count frames evenly across the video and writes them into
// a fresh directory under outputRoot. The caller owns outputRoot and must
// remove it whether or not Extract succeeds.
func (x *Extractor) Extract(ctx context.Context, videoPath, outputRoot string, count int) (*Extraction, error) {
	if count <= 0 {
		return nil, &Error{Op: "validate", Err: ErrInvalidCount}
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &Error{Op: "stat", Err: err}
	}

	dir := filepath.Join(outputRoot, "frames-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "mkdir", Err: err}
	}
	result := &Extraction{Dir: dir}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	duration, err := x.probeDuration(ctx, videoPath)
	if err != nil {
		return result, err
	}

	start := time.Now()
	for i := 1; i <= count; i++ {
		offset := duration * float64(i) / float64(count+1)
		out := filepath.Join(dir, fmt.Sprintf("frame-%d.png", i))
		args := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
			"-i", videoPath,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=-2:%d", x.height),
			out,
		}
		if output, err := x.runner.Run(ctx, x.ffmpeg, args...); err != nil {
			return result, &Error{Op: "ffmpeg", Err: err, Output: strings.TrimSpace(string(output))}
		}
	}

	frames, err := ListFrames(dir)
	if err != nil {
		return result, &Error{Op: "list", Err: err}
	}
	if len(frames) != count {
		return result, &Error{Op: "list", Err: fmt.Errorf("%w: want %d, got %d", ErrNoFrames, count, len(frames))}
	}
	result.Frames = frames

	x.logger.Debug("frames extracted",
		"video", filepath.Base(videoPath),
		"count", count,
		"duration_s", duration,
		"elapsed_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (x *Extractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	output, err := x.runner.Run(ctx, x.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, &Error{Op: "ffprobe", Err: err, Output: strings.TrimSpace(string(output))}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || duration <= 0 {
		return 0, &Error{Op: "ffprobe", Err: fmt.Errorf("invalid duration %q", strings.TrimSpace(string(output)))}
	}
	return duration, nil
}

// ListFrames reads frame-<n>.png files from dir, ignoring anything else.
func ListFrames(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []Frame
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := frameNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, Frame{Index: idx, Path: filepath.Join(dir, entry.Name())})
	}

	SortByIndex(frames)
	return frames, nil
}

// SortByIndex orders frames by numeric index, so frame-10 follows frame-9.
func SortByIndex(frames []Frame) {
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Index < frames[j].Index
	})
}
