package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eleven-am/vision-backend/internal/prompt"
)

type AzureClient struct {
	httpClient *http.Client
	url        string
	modelsURL  string
	apiKey     string
	maxBytes   int64
	logger     *slog.Logger
}

func NewAzureClient(cfg Config, logger *slog.Logger) *AzureClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AzureClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        completionsURL(cfg),
		modelsURL:  modelsURL(cfg),
		apiKey:     cfg.APIKey,
		maxBytes:   maxBytes,
		logger:     logger.With("component", "azure-openai"),
	}
}

func completionsURL(cfg Config) string {
	base := strings.TrimRight(cfg.Endpoint, "/")
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions", base, url.PathEscape(cfg.DeploymentID))
	if cfg.APIVersion != "" {
		u += "?api-version=" + url.QueryEscape(cfg.APIVersion)
	}
	return u
}

func modelsURL(cfg Config) string {
	u := strings.TrimRight(cfg.Endpoint, "/") + "/openai/models"
	if cfg.APIVersion != "" {
		u += "?api-version=" + url.QueryEscape(cfg.APIVersion)
	}
	return u
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error *struct {
		Code       any    `json:"code"`
		Message    string `json:"message"`
		InnerError *struct {
			Code string `json:"code"`
		} `json:"innererror"`
	} `json:"error"`
}

func buildChatRequest(req *prompt.Request) chatRequest {
	parts := make([]contentPart, 0, len(req.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: req.UserText})
	for _, img := range req.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img.Payload}})
	}

	return chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemInstruction},
			{Role: "user", Content: parts},
		},
		MaxTokens: req.MaxTokens,
	}
}

func (c *AzureClient) Complete(ctx context.Context, req *prompt.Request) (*Reply, error) {
	if req == nil || len(req.Images) == 0 {
		return nil, prompt.ErrNoImages
	}

	body, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	c.logger.Debug("sending completion",
		"mode", req.Mode,
		"images", len(req.Images),
		"max_tokens", req.MaxTokens,
		"body_bytes", len(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := readLimited(resp, c.maxBytes)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAzureError(resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Code: "invalid_response", Message: err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return nil, &UpstreamError{Status: resp.StatusCode, Code: "empty_response", Message: "no choices returned"}
	}

	choice := parsed.Choices[0]
	if choice.FinishReason == codeContentFilter {
		return nil, &UpstreamError{Status: resp.StatusCode, Code: codeContentFilter, Message: "completion was filtered"}
	}

	c.logger.Debug("completion received",
		"mode", req.Mode,
		"finish_reason", choice.FinishReason,
		"length", len(choice.Message.Content))

	return &Reply{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

// IsAvailable lists the resource's models, which needs a reachable endpoint
// and a valid key but consumes no tokens.
func (c *AzureClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelsURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func parseAzureError(status int, data []byte) error {
	upstream := &UpstreamError{Status: status, Message: http.StatusText(status)}

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Error == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			upstream.Message = s
		}
		return upstream
	}

	if env.Error.Message != "" {
		upstream.Message = env.Error.Message
	}
	switch code := env.Error.Code.(type) {
	case string:
		upstream.Code = code
	case float64:
		upstream.Code = fmt.Sprintf("%.0f", code)
	}
	if env.Error.InnerError != nil && strings.EqualFold(env.Error.InnerError.Code, "ResponsibleAIPolicyViolation") {
		upstream.Code = codeContentFilter
	}
	return upstream
}

// IsContentFiltered reports whether err is a provider safety refusal.
func IsContentFiltered(err error) bool {
	return errors.Is(err, ErrContentFiltered)
}
