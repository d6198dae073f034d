package client

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/eleven-am/vision-backend/internal/analysis"
)

const (
	defaultTimeout   = 90 * time.Second
	maxResponseBytes = 1 << 20
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Response is a decoded analysis response. Exactly one of Result or Refusal
// is set.
type Response struct {
	Result   *analysis.Result
	Refusal  string
	Sequence *uint64
	Stale    bool
}

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "vision-client"),
	}
}

func (c *Client) AnalyzeImageFile(ctx context.Context, path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, "/api/analyze-image", "image", filepath.Base(path), data, nil)
}

func (c *Client) AnalyzeImageURL(ctx context.Context, imageURL string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"imageUrl": imageURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-image", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// AnalyzeLive submits one snapshot. A non-empty sessionID tags the request so
// the server can flag superseded results as stale.
func (c *Client) AnalyzeLive(ctx context.Context, data []byte, sessionID string, sequence uint64) (*Response, error) {
	headers := map[string]string{}
	if sessionID != "" {
		headers[analysis.HeaderLiveSession] = sessionID
		headers[analysis.HeaderLiveSequence] = strconv.FormatUint(sequence, 10)
	}
	return c.upload(ctx, "/api/analyze-live", "image", "snapshot.jpg", data, headers)
}

func (c *Client) AnalyzeVideoFile(ctx context.Context, path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.upload(ctx, "/api/analyze-video", "video", filepath.Base(path), data, nil)
}

func (c *Client) upload(ctx context.Context, path, field, filename string, data []byte, headers map[string]string) (*Response, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

type wireResponse struct {
	Result   json.RawMessage `json:"result"`
	Sequence *uint64         `json:"sequence"`
	Stale    bool            `json:"stale"`
}

type wireError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("analysis request complete",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		var we wireError
		if err := json.Unmarshal(data, &we); err != nil || we.Error == "" {
			we.Error = strings.TrimSpace(string(data))
		}
		return nil, &Error{Status: resp.StatusCode, Code: we.Code, Message: we.Error}
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decodeResult(wr)
}

func decodeResult(wr wireResponse) (*Response, error) {
	out := &Response{Sequence: wr.Sequence, Stale: wr.Stale}

	trimmed := bytes.TrimSpace(wr.Result)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &out.Refusal); err != nil {
			return nil, fmt.Errorf("decode refusal: %w", err)
		}
		return out, nil
	}

	var res analysis.Result
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	out.Result = &res
	return out, nil
}
