package media

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

const (
	defaultInlineHeight = 480
	defaultJPEGQuality  = 85
)

type EncoderConfig struct {
	// MaxInlineBytes enables the size guard when positive.
	MaxInlineBytes  int
	MaxInlineHeight int
	JPEGQuality     int
}

type Encoder struct {
	maxBytes  int
	maxHeight int
	quality   int
}

func NewEncoder(cfg EncoderConfig) *Encoder {
	if cfg.MaxInlineHeight <= 0 {
		cfg.MaxInlineHeight = defaultInlineHeight
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = defaultJPEGQuality
	}
	return &Encoder{
		maxBytes:  cfg.MaxInlineBytes,
		maxHeight: cfg.MaxInlineHeight,
		quality:   cfg.JPEGQuality,
	}
}

func (e *Encoder) Encode(in Input) (Reference, error) {
	if err := in.Validate(); err != nil {
		return Reference{}, err
	}

	if in.IsRemote() {
		return Reference{Kind: KindURL, Payload: strings.TrimSpace(in.URL)}, nil
	}

	data := in.Data
	mimeType := DetectMimeType(data, in.MimeType)

	if e.maxBytes > 0 && len(data) > e.maxBytes {
		shrunk, err := shrink(data, e.maxHeight, e.quality)
		if err != nil {
			return Reference{}, fmt.Errorf("%w: %v", ErrTooLarge, err)
		}
		if len(shrunk) > e.maxBytes {
			return Reference{}, ErrTooLarge
		}
		data = shrunk
		mimeType = "image/jpeg"
	}

	return Reference{
		Kind:    KindInline,
		Payload: DataURL(mimeType, data),
	}, nil
}

func (e *Encoder) EncodeFile(path, mimeType string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("read image %s: %w", path, err)
	}
	return e.Encode(Inline(data, mimeType))
}

func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DetectMimeType trusts the declared type unless it is missing or generic.
func DetectMimeType(data []byte, declared string) string {
	declared, _, _ = strings.Cut(declared, ";")
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	detected, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return detected
}
