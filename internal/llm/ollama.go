package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
)

const (
	maxImageBytes     = 20 << 20
	maxImageRedirects = 5
)

var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// OllamaClient talks to a local Ollama server. Ollama cannot dereference
// image URLs, so remote references are downloaded here, restricted to
// public http(s) hosts.
type OllamaClient struct {
	httpClient  *http.Client
	fetchClient *http.Client
	baseURL     string
	model      string
	maxBytes   int64
	logger     *slog.Logger
}

func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) *OllamaClient {
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

	return &OllamaClient{
		httpClient:  &http.Client{Timeout: timeout},
		fetchClient: newFetchClient(timeout, publicIP),
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		model:       cfg.Model,
		maxBytes:    maxBytes,
		logger:      logger.With("component", "ollama"),
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
	Error      string        `json:"error"`
}

func (c *OllamaClient) Complete(ctx context.Context, req *prompt.Request) (*Reply, error) {
	if req == nil || len(req.Images) == 0 {
		return nil, prompt.ErrNoImages
	}

	images := make([]string, 0, len(req.Images))
	for _, ref := range req.Images {
		b64, err := c.imageBase64(ctx, ref)
		if err != nil {
			return nil, err
		}
		images = append(images, b64)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: req.SystemInstruction},
			{Role: "user", Content: req.UserText, Images: images},
		},
		Stream:  false,
		Options: map[string]any{"num_predict": req.MaxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending chat", "model", c.model, "mode", req.Mode, "images", len(images))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := readLimited(resp, c.maxBytes)
	if err != nil {
		return nil, err
	}

	var parsed ollamaChatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Code: "invalid_response", Message: decodeErr.Error()}
	}

	c.logger.Debug("chat complete", "model", c.model, "length", len(parsed.Message.Content))

	return &Reply{
		Text:         parsed.Message.Content,
		FinishReason: parsed.DoneReason,
	}, nil
}

func (c *OllamaClient) imageBase64(ctx context.Context, ref media.Reference) (string, error) {
	if b64, ok := ref.Base64(); ok {
		return b64, nil
	}

	u, err := url.Parse(ref.Payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageURLRejected, err)
	}
	if err := checkImageURL(u); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create image request: %w", err)
	}
	resp, err := c.fetchClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrImageURLRejected) {
			c.logger.Warn("refused image url", "host", u.Hostname())
			return "", fmt.Errorf("fetch image: %w", err)
		}
		return "", &NetworkError{Err: fmt.Errorf("fetch image: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode, Code: "image_fetch_failed", Message: "could not download " + ref.Payload}
	}

	data, err := readLimited(resp, maxImageBytes)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// newFetchClient builds the client used for remote images. The address is
// checked after DNS resolution at dial time, so every redirect hop and
// every resolved address goes through allow.
func newFetchClient(timeout time.Duration, allow func(net.IP) bool) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil || !allow(ip) {
				return fmt.Errorf("%w: address %s", ErrImageURLRejected, host)
			}
			return nil
		},
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxImageRedirects {
				return fmt.Errorf("%w: too many redirects", ErrImageURLRejected)
			}
			return checkImageURL(req.URL)
		},
	}
}

func checkImageURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrImageURLRejected, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrImageURLRejected)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", ErrImageURLRejected)
	}
	return nil
}

func publicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

func (c *OllamaClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
