package llm

import (
	"fmt"
	"io"
	"net/http"
)

func readLimited(resp *http.Response, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(data)) > limit {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Code:    "response_too_large",
			Message: fmt.Sprintf("response exceeds %d bytes", limit),
		}
	}
	return data, nil
}
