package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
)

func TestNewAnalyzer_DefaultFrameCount(t *testing.T) {
	a := newTestAnalyzer(&fakeClient{}, &fakeExtractor{}, 0)
	if a.frameCount != 5 {
		t.Errorf("expected default frame count 5, got %d", a.frameCount)
	}
}

func TestAnalyzer_AnalyzeImage_Inline(t *testing.T) {
	client := &fakeClient{reply: wellFormedReply}
	a := newTestAnalyzer(client, nil, 5)

	out, err := a.AnalyzeImage(context.Background(), media.Inline([]byte("jpeg-bytes"), "image/jpeg"), prompt.ModeSingleImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Structured {
		t.Error("expected structured outcome")
	}
	if out.Result.Objects != "Cat, Sofa" {
		t.Errorf("unexpected objects: %q", out.Result.Objects)
	}

	req := client.requests[0]
	if req.Mode != prompt.ModeSingleImage || req.MaxTokens != 300 {
		t.Errorf("unexpected request mode %s tokens %d", req.Mode, req.MaxTokens)
	}
	if len(req.Images) != 1 || req.Images[0].Payload != media.DataURL("image/jpeg", []byte("jpeg-bytes")) {
		t.Errorf("unexpected images: %+v", req.Images)
	}
}

func TestAnalyzer_AnalyzeImage_RemoteURL(t *testing.T) {
	client := &fakeClient{reply: wellFormedReply}
	a := newTestAnalyzer(client, nil, 5)

	_, err := a.AnalyzeImage(context.Background(), media.Remote("https://example.com/cat.jpg"), prompt.ModeSingleImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref := client.requests[0].Images[0]
	if ref.Kind != media.KindURL || ref.Payload != "https://example.com/cat.jpg" {
		t.Errorf("expected url passthrough, got %+v", ref)
	}
}

func TestAnalyzer_AnalyzeImage_InvalidInputSkipsModel(t *testing.T) {
	client := &fakeClient{reply: wellFormedReply}
	a := newTestAnalyzer(client, nil, 5)

	_, err := a.AnalyzeImage(context.Background(), media.Input{}, prompt.ModeLiveFrame)
	if !errors.Is(err, media.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if client.calls() != 0 {
		t.Errorf("expected no model calls, got %d", client.calls())
	}
}

func TestAnalyzer_AnalyzeImage_Fallback(t *testing.T) {
	a := newTestAnalyzer(&fakeClient{reply: "I see a dog."}, nil, 5)

	out, err := a.AnalyzeImage(context.Background(), media.Inline([]byte("x"), "image/png"), prompt.ModeSingleImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Structured {
		t.Error("expected fallback outcome")
	}
	if out.Result != (Result{"I see a dog.", Unknown, Unknown}) {
		t.Errorf("unexpected result: %+v", out.Result)
	}
}

func TestAnalyzer_AnalyzeImage_UpstreamErrorPassesThrough(t *testing.T) {
	a := newTestAnalyzer(&fakeClient{err: contentFilterError()}, nil, 5)

	_, err := a.AnalyzeImage(context.Background(), media.Inline([]byte("x"), "image/png"), prompt.ModeSingleImage)
	if !llm.IsContentFiltered(err) {
		t.Errorf("expected content filter error, got %v", err)
	}
}

func TestAnalyzer_AnalyzeVideo_FrameOrder(t *testing.T) {
	client := &fakeClient{reply: wellFormedReply}
	shuffled := []int{10, 2, 12, 1, 11, 3, 9, 4, 8, 5, 7, 6}
	a := newTestAnalyzer(client, &fakeExtractor{order: shuffled}, 12)

	workDir := t.TempDir()
	videoPath := filepath.Join(workDir, "upload.mp4")
	if err := os.WriteFile(videoPath, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := a.AnalyzeVideo(context.Background(), videoPath, workDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Frames != 12 {
		t.Errorf("expected 12 frames, got %d", out.Frames)
	}

	req := client.requests[0]
	if req.Mode != prompt.ModeVideo || req.MaxTokens != 500 {
		t.Errorf("unexpected request mode %s tokens %d", req.Mode, req.MaxTokens)
	}
	if len(req.Images) != 12 {
		t.Fatalf("expected 12 images, got %d", len(req.Images))
	}
	for i, ref := range req.Images {
		want := media.DataURL("image/png", frameContent(i+1))
		if ref.Payload != want {
			t.Errorf("image %d: expected frame %d", i, i+1)
		}
	}
}

func TestAnalyzer_AnalyzeVideo_ExtractionFailure(t *testing.T) {
	client := &fakeClient{reply: wellFormedReply}
	a := newTestAnalyzer(client, &fakeExtractor{err: errFFmpeg}, 5)

	workDir := t.TempDir()
	videoPath := filepath.Join(workDir, "upload.mp4")
	_ = os.WriteFile(videoPath, []byte("video"), 0o644)

	_, err := a.AnalyzeVideo(context.Background(), videoPath, workDir)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
	if !errors.Is(err, errFFmpeg) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if client.calls() != 0 {
		t.Errorf("expected no model calls, got %d", client.calls())
	}
}
