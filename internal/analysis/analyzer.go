package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/eleven-am/vision-backend/internal/frames"
	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
)

var ErrExtraction = errors.New("frame extraction failed")

const frameMimeType = "image/png"

type Extractor interface {
	Extract(ctx context.Context, videoPath, outputRoot string, count int) (*frames.Extraction, error)
}

type Config struct {
	FrameCount int
}

// Outcome is a completed analysis. Structured is false when the model reply
// could not be decoded and the fallback result was used.
type Outcome struct {
	Result     Result
	Structured bool
	Frames     int
}

type Analyzer struct {
	encoder    *media.Encoder
	assembler  *prompt.Assembler
	client     llm.Client
	extractor  Extractor
	frameCount int
	logger     *slog.Logger
}

func NewAnalyzer(cfg Config, encoder *media.Encoder, assembler *prompt.Assembler, client llm.Client, extractor Extractor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameCount <= 0 {
		cfg.FrameCount = 5
	}
	return &Analyzer{
		encoder:    encoder,
		assembler:  assembler,
		client:     client,
		extractor:  extractor,
		frameCount: cfg.FrameCount,
		logger:     logger.With("component", "analyzer"),
	}
}

func (a *Analyzer) AnalyzeImage(ctx context.Context, in media.Input, mode prompt.Mode) (*Outcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ref, err := a.encoder.Encode(in)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	a.logger.Debug("image encoded", "mode", mode, "kind", ref.Kind, "mime_type", ref.MimeType())

	return a.analyze(ctx, mode, []media.Reference{ref})
}

// AnalyzeVideo extracts frames from videoPath into workDir and analyzes them
// in a single model call. The caller owns workDir and removes it.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, videoPath, workDir string) (*Outcome, error) {
	extraction, err := a.extractor.Extract(ctx, videoPath, workDir, a.frameCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	a.logger.Debug("frames extracted", "dir", extraction.Dir, "paths", extraction.Paths())

	ordered := slices.Clone(extraction.Frames)
	frames.SortByIndex(ordered)

	refs := make([]media.Reference, 0, len(ordered))
	for _, f := range ordered {
		ref, err := a.encoder.EncodeFile(f.Path, frameMimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: encode frame %d: %w", ErrExtraction, f.Index, err)
		}
		refs = append(refs, ref)
	}

	out, err := a.analyze(ctx, prompt.ModeVideo, refs)
	if err != nil {
		return nil, err
	}
	out.Frames = len(refs)
	return out, nil
}

func (a *Analyzer) analyze(ctx context.Context, mode prompt.Mode, refs []media.Reference) (*Outcome, error) {
	req, err := a.assembler.Assemble(mode, refs)
	if err != nil {
		return nil, fmt.Errorf("assemble prompt: %w", err)
	}

	reply, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	res, structured := normalize(reply.Text)
	if !structured {
		a.logger.Warn("model reply was not a json object, using fallback",
			"mode", mode,
			"reply_len", len(reply.Text))
	}

	return &Outcome{Result: res, Structured: structured}, nil
}
