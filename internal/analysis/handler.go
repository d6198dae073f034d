package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
	"github.com/eleven-am/vision-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

const (
	RefusalMessage = "I cannot analyze this image due to safety content filters."

	HeaderLiveSession  = "X-Live-Session"
	HeaderLiveSequence = "X-Live-Sequence"

	sourceUpload = "upload"
	sourceURL    = "url"
)

type Service interface {
	AnalyzeImage(ctx context.Context, in media.Input, mode prompt.Mode) (*Outcome, error)
	AnalyzeVideo(ctx context.Context, videoPath, workDir string) (*Outcome, error)
}

type SequenceTracker interface {
	Advance(ctx context.Context, sessionID string, sequence uint64) (bool, error)
}

type AnalyzeResponse struct {
	Result   any     `json:"result" swaggertype:"object"`
	Sequence *uint64 `json:"sequence,omitempty"`
	Stale    *bool   `json:"stale,omitempty"`
}

type imageURLRequest struct {
	ImageURL string `json:"imageUrl" form:"imageUrl"`
}

type Handler struct {
	service    Service
	tracker    SequenceTracker
	recorder   audit.Recorder
	scratchDir string
	logger     *slog.Logger
}

func NewHandler(service Service, tracker SequenceTracker, recorder audit.Recorder, scratchDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Handler{
		service:    service,
		tracker:    tracker,
		recorder:   recorder,
		scratchDir: scratchDir,
		logger:     logger.With("handler", "analysis"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/analyze-image", h.AnalyzeImage)
	g.POST("/analyze-live", h.AnalyzeLive)
	g.POST("/analyze-video", h.AnalyzeVideo)
}

// AnalyzeImage godoc
// @Summary      Analyze an image
// @Description  Describes an uploaded image or an image at a remote URL
// @Tags         analysis
// @Accept       multipart/form-data,json
// @Produce      json
// @Param        image     formData  file    false  "Image file"
// @Param        imageUrl  formData  string  false  "Remote image URL"
// @Success      200  {object}  AnalyzeResponse
// @Failure      400  {object}  shared.APIError
// @Failure      413  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /api/analyze-image [post]
func (h *Handler) AnalyzeImage(c echo.Context) error {
	defer releaseMultipart(c)
	start := time.Now()

	in, source, err := h.readImageInput(c, true)
	if err != nil {
		return err
	}

	out, err := h.service.AnalyzeImage(c.Request().Context(), in, prompt.ModeSingleImage)
	h.record(c.Request().Context(), prompt.ModeSingleImage, source, start, out, err)
	if err != nil {
		return h.failure(c, err, "Failed to analyze image. Ensure the URL is directly accessible.")
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{Result: out.Result})
}

// AnalyzeLive godoc
// @Summary      Analyze a live frame
// @Description  Describes one webcam snapshot. Optional session and sequence headers mark superseded results as stale.
// @Tags         analysis
// @Accept       multipart/form-data
// @Produce      json
// @Param        image            formData  file    true   "Snapshot"
// @Param        X-Live-Session   header    string  false  "Live session id"
// @Param        X-Live-Sequence  header    int     false  "Capture sequence number"
// @Success      200  {object}  AnalyzeResponse
// @Failure      400  {object}  shared.APIError
// @Failure      413  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /api/analyze-live [post]
func (h *Handler) AnalyzeLive(c echo.Context) error {
	defer releaseMultipart(c)
	start := time.Now()

	sessionID, sequence, tagged, err := liveHeaders(c)
	if err != nil {
		return err
	}

	in, source, err := h.readImageInput(c, false)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	out, err := h.service.AnalyzeImage(ctx, in, prompt.ModeLiveFrame)
	h.record(ctx, prompt.ModeLiveFrame, source, start, out, err)
	if err != nil {
		return h.failure(c, err, "Failed to analyze frame")
	}

	resp := AnalyzeResponse{Result: out.Result}
	if tagged {
		stale := h.isStale(ctx, sessionID, sequence)
		resp.Sequence = &sequence
		resp.Stale = &stale
	}
	return c.JSON(http.StatusOK, resp)
}

// AnalyzeVideo godoc
// @Summary      Analyze a video
// @Description  Samples frames from an uploaded video and describes what happens across them
// @Tags         analysis
// @Accept       multipart/form-data
// @Produce      json
// @Param        video  formData  file  true  "Video file"
// @Success      200  {object}  AnalyzeResponse
// @Failure      400  {object}  shared.APIError
// @Failure      413  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /api/analyze-video [post]
func (h *Handler) AnalyzeVideo(c echo.Context) error {
	defer releaseMultipart(c)
	start := time.Now()

	fh, err := c.FormFile("video")
	if err != nil {
		return shared.BadRequest("missing_video", "No video uploaded")
	}

	workDir, err := h.newWorkspace()
	if err != nil {
		h.logger.Error("failed to create request workspace", "error", err)
		return shared.InternalError("workspace_failed", "Failed to process video")
	}
	defer h.removeWorkspace(workDir)

	videoPath := filepath.Join(workDir, "upload"+uploadExt(fh.Filename))
	if err := saveUpload(fh, videoPath); err != nil {
		h.logger.Error("failed to store uploaded video", "error", err)
		return shared.InternalError("upload_failed", "Failed to process video")
	}

	ctx := c.Request().Context()
	out, err := h.service.AnalyzeVideo(ctx, videoPath, workDir)
	h.record(ctx, prompt.ModeVideo, sourceUpload, start, out, err)
	if err != nil {
		return h.failure(c, err, "Failed to analyze video")
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{Result: out.Result})
}

func (h *Handler) readImageInput(c echo.Context, allowURL bool) (media.Input, string, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if allowURL && strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var req imageURLRequest
		if err := c.Bind(&req); err != nil {
			return media.Input{}, "", shared.BadRequest("invalid_body", "invalid request body")
		}
		if strings.TrimSpace(req.ImageURL) == "" {
			return media.Input{}, "", shared.BadRequest("missing_image", "No image or URL provided")
		}
		return media.Remote(strings.TrimSpace(req.ImageURL)), sourceURL, nil
	}

	if fh, err := c.FormFile("image"); err == nil {
		data, err := readUpload(fh)
		if err != nil {
			h.logger.Warn("failed to read uploaded image", "error", err)
			return media.Input{}, "", shared.BadRequest("invalid_body", "could not read uploaded image")
		}
		if len(data) == 0 {
			return media.Input{}, "", shared.BadRequest("missing_image", "No image or URL provided")
		}
		return media.Inline(data, fh.Header.Get(echo.HeaderContentType)), sourceUpload, nil
	}

	if allowURL {
		if url := strings.TrimSpace(c.FormValue("imageUrl")); url != "" {
			return media.Remote(url), sourceURL, nil
		}
		return media.Input{}, "", shared.BadRequest("missing_image", "No image or URL provided")
	}
	return media.Input{}, "", shared.BadRequest("missing_image", "No image captured")
}

func liveHeaders(c echo.Context) (string, uint64, bool, error) {
	sessionID := strings.TrimSpace(c.Request().Header.Get(HeaderLiveSession))
	rawSeq := strings.TrimSpace(c.Request().Header.Get(HeaderLiveSequence))
	if sessionID == "" || rawSeq == "" {
		return "", 0, false, nil
	}
	seq, err := strconv.ParseUint(rawSeq, 10, 64)
	if err != nil {
		return "", 0, false, shared.BadRequest("invalid_sequence", "X-Live-Sequence must be a non-negative integer")
	}
	return sessionID, seq, true, nil
}

func (h *Handler) isStale(ctx context.Context, sessionID string, sequence uint64) bool {
	if h.tracker == nil {
		return false
	}
	advanced, err := h.tracker.Advance(ctx, sessionID, sequence)
	if err != nil {
		h.logger.Warn("live sequence tracking unavailable", "error", err, "session_id", sessionID)
		return false
	}
	return !advanced
}

func (h *Handler) failure(c echo.Context, err error, message string) error {
	switch {
	case llm.IsContentFiltered(err):
		h.logger.Info("analysis refused by content filter")
		return c.JSON(http.StatusOK, AnalyzeResponse{Result: RefusalMessage})
	case errors.Is(err, media.ErrTooLarge):
		return shared.TooLarge("image_too_large", "Image exceeds the inline size limit")
	case errors.Is(err, media.ErrEmptyInput), errors.Is(err, media.ErrAmbiguousInput):
		return shared.BadRequest("missing_image", err.Error())
	case errors.Is(err, llm.ErrImageURLRejected):
		return shared.BadRequest("invalid_image_url", "Image URL must be a public http or https address")
	case errors.Is(err, ErrExtraction):
		h.logger.Error("frame extraction failed", "error", err)
		return shared.InternalError("extraction_failed", "Failed to process video")
	}

	h.logger.Error("analysis failed", "error", err)
	return shared.InternalError("analysis_failed", message)
}

func (h *Handler) record(ctx context.Context, mode prompt.Mode, source string, start time.Time, out *Outcome, err error) {
	ev := &audit.Event{
		Mode:       mode.String(),
		Source:     source,
		Outcome:    outcomeOf(out, err),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if out != nil {
		ev.FrameCount = out.Frames
	}
	if recErr := h.recorder.Record(context.WithoutCancel(ctx), ev); recErr != nil {
		h.logger.Warn("failed to record analysis event", "error", recErr)
	}
}

func outcomeOf(out *Outcome, err error) audit.Outcome {
	switch {
	case err == nil && out.Structured:
		return audit.OutcomeStructured
	case err == nil:
		return audit.OutcomeFallback
	case llm.IsContentFiltered(err):
		return audit.OutcomeContentFiltered
	case errors.Is(err, media.ErrTooLarge):
		return audit.OutcomeTooLarge
	case errors.Is(err, llm.ErrImageURLRejected):
		return audit.OutcomeRejectedURL
	case errors.Is(err, ErrExtraction):
		return audit.OutcomeExtractionFailed
	}
	return audit.OutcomeUpstreamFailed
}

func (h *Handler) newWorkspace() (string, error) {
	if err := os.MkdirAll(h.scratchDir, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(h.scratchDir, "req-*")
}

func (h *Handler) removeWorkspace(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		h.logger.Warn("failed to remove request workspace", "error", err, "dir", dir)
	}
}

func releaseMultipart(c echo.Context) {
	if form := c.Request().MultipartForm; form != nil {
		_ = form.RemoveAll()
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("copy upload: %w", err)
	}
	return out.Close()
}

func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, r := range ext[min(1, len(ext)):] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	if len(ext) > 8 {
		return ""
	}
	return ext
}
