package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eleven-am/vision-backend/internal/prompt"
)

const (
	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 1 << 20

	codeContentFilter = "content_filter"
)

// ErrContentFiltered matches any error produced when the provider refuses a
// request on safety grounds. Use errors.Is.
var ErrContentFiltered = errors.New("content filtered by provider")

// ErrImageURLRejected is returned when a remote image points at a scheme or
// address the server will not fetch from.
var ErrImageURLRejected = errors.New("image url not allowed")

// Client sends one assembled prompt and returns the raw completion. It never
// retries.
type Client interface {
	Complete(ctx context.Context, req *prompt.Request) (*Reply, error)
}

// Config identifies an Azure OpenAI chat deployment.
type Config struct {
	Endpoint         string
	APIKey           string
	DeploymentID     string
	APIVersion       string
	Timeout          time.Duration
	MaxResponseBytes int64
}

type OllamaConfig struct {
	URL              string
	Model            string
	Timeout          time.Duration
	MaxResponseBytes int64
}

type Reply struct {
	Text         string
	FinishReason string
}

// UpstreamError carries the provider-reported failure.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrContentFiltered && e.Code == codeContentFilter
}

// NetworkError wraps a transport failure reaching the provider.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
