package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

// mockPlan is returned by Mock.GeneratePlan regardless of the request.
const mockPlan = `{
  "subtasks": [
    {"type": "text", "prompt": "Write a short introduction to the topic."},
    {"type": "image", "prompt": "An illustration summarizing the topic."},
    {"type": "diagram", "prompt": "A diagram of the main components and how they relate."},
    {"type": "text", "prompt": "Write a brief conclusion."}
  ]
}`

// Mock is an offline backend that answers every operation locally and
// deterministically. It is useful for trying the pipeline without keys.
type Mock struct {
	tracker *TokenTracker
}

// NewMock creates a new Mock backend.
func NewMock() *Mock {
	return &Mock{tracker: NewTokenTracker()}
}

// Name implements capability.Capability.
func (m *Mock) Name() string { return "mock" }

// Tracker returns the token tracker for this backend.
func (m *Mock) Tracker() *TokenTracker { return m.tracker }

// GenerateText implements capability.Capability.
func (m *Mock) GenerateText(ctx context.Context, prompt string, _ capability.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.count(prompt)
	return fmt.Sprintf("Generated text for: %s", summarize(prompt)), nil
}

// GenerateImage implements capability.Capability.
func (m *Mock) GenerateImage(ctx context.Context, prompt string, _ capability.Options) (capability.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return capability.ImageRef{}, err
	}
	m.count(prompt)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(len(prompt)), G: 128, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return capability.ImageRef{}, capability.NewGenerationError(capability.OpGenerateImage, m.Name(), err)
	}
	return capability.ImageRef{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

// GenerateDiagramMarkup implements capability.Capability.
func (m *Mock) GenerateDiagramMarkup(ctx context.Context, prompt string, _ capability.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.count(prompt)
	raw := "Here is the diagram:\n\\begin{tikzpicture}\n" +
		"  \\node[draw] (a) {Request};\n" +
		"  \\node[draw, right=of a] (b) {Response};\n" +
		"  \\draw[->] (a) -- (b);\n" +
		"\\end{tikzpicture}\nLet me know if you need changes."
	return capability.ExtractTikZ(raw), nil
}

// GeneratePlan implements capability.Capability.
func (m *Mock) GeneratePlan(ctx context.Context, prompt string, _ capability.Options) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.count(prompt)
	return capability.DecodePlan(m.Name(), mockPlan)
}

func (m *Mock) count(prompt string) {
	m.tracker.Add(int64(len(strings.Fields(prompt))), 0)
}

func summarize(prompt string) string {
	line := strings.TrimSpace(prompt)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return line
}

var _ capability.Capability = (*Mock)(nil)
