package prompt

import (
	"errors"
	"fmt"

	"github.com/eleven-am/vision-backend/internal/media"
)

var (
	ErrNoImages    = errors.New("prompt requires at least one image")
	ErrUnknownMode = errors.New("unknown analysis mode")
)

type Mode string

const (
	ModeSingleImage Mode = "single_image"
	ModeLiveFrame   Mode = "live_frame"
	ModeVideo       Mode = "video"
)

func (m Mode) String() string {
	return string(m)
}

type Request struct {
	Mode              Mode
	SystemInstruction string
	UserText          string
	Images            []media.Reference
	MaxTokens         int
}

type template struct {
	system    string
	user      string
	maxTokens int
}

const outputContract = `
Return a raw, valid JSON object (no markdown, no backticks) with exactly these fields:
{
   "general_description": "%s",
   "number_of_people": "Count (e.g., '1 person', 'No people', '3 people')",
   "objects": "List of main objects (e.g., '%s')"
}`

var templates = map[Mode]template{
	ModeSingleImage: {
		system: "You are an AI Vision Assistant. Identify the main object in the image.\n" +
			fmt.Sprintf(outputContract, "2-3 sentences describing the image.", "Persian Cat, Sofa, Window"),
		user:      "Analyze this image.",
		maxTokens: 300,
	},
	ModeLiveFrame: {
		system: "You are an AI Vision Assistant analyzing a live camera feed.\n" +
			fmt.Sprintf(outputContract, "2-3 sentences describing the scene.", "Laptop, Coffee Cup, Keyboard"),
		user:      "Analyze this frame.",
		maxTokens: 300,
	},
	ModeVideo: {
		system: "You are a video analysis AI. The images are frames sampled in order from one video.\n" +
			fmt.Sprintf(outputContract, "2-3 sentences describing the action in the video.", "Robot, Box, Shelf"),
		user:      "These are frames from a video. Describe what is happening in the video.",
		maxTokens: 500,
	},
}

// Assembler builds the role-structured request for one analysis. Images keep
// the order they are given in.
type Assembler struct{}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) Assemble(mode Mode, images []media.Reference) (*Request, error) {
	tmpl, ok := templates[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	ordered := make([]media.Reference, len(images))
	copy(ordered, images)

	return &Request{
		Mode:              mode,
		SystemInstruction: tmpl.system,
		UserText:          tmpl.user,
		Images:            ordered,
		MaxTokens:         tmpl.maxTokens,
	}, nil
}
