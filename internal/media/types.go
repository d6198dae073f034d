package media

import (
	"errors"
	"strings"
)

var (
	ErrEmptyInput     = errors.New("no image data or url provided")
	ErrAmbiguousInput = errors.New("both image data and url provided")
	ErrTooLarge       = errors.New("image exceeds inline size limit")
)

// Input is the client-supplied media before encoding. Exactly one of Data
// or URL is set.
type Input struct {
	Data     []byte
	MimeType string
	URL      string
}

func Inline(data []byte, mimeType string) Input {
	return Input{Data: data, MimeType: mimeType}
}

func Remote(url string) Input {
	return Input{URL: url}
}

func (in Input) IsRemote() bool {
	return strings.TrimSpace(in.URL) != ""
}

func (in Input) Validate() error {
	hasData := len(in.Data) > 0
	hasURL := strings.TrimSpace(in.URL) != ""
	switch {
	case hasData && hasURL:
		return ErrAmbiguousInput
	case !hasData && !hasURL:
		return ErrEmptyInput
	}
	return nil
}

type Kind string

const (
	KindInline Kind = "inline"
	KindURL    Kind = "url"
)

// Reference is a model-ready pointer to image content. Inline payloads are
// data URLs, URL payloads are passed through untouched.
type Reference struct {
	Kind    Kind
	Payload string
}

// Base64 returns the raw base64 body of an inline data URL.
func (r Reference) Base64() (string, bool) {
	if r.Kind != KindInline {
		return "", false
	}
	_, b64, ok := strings.Cut(r.Payload, ";base64,")
	return b64, ok
}

// MimeType returns the media type declared by an inline data URL.
func (r Reference) MimeType() string {
	if r.Kind != KindInline {
		return ""
	}
	head, _, ok := strings.Cut(r.Payload, ";base64,")
	if !ok {
		return ""
	}
	return strings.TrimPrefix(head, "data:")
}
