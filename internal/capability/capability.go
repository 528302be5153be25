// Package capability defines the provider-agnostic generation contract that
// every backend implements, together with its error taxonomy.
package capability

import (
	"context"
)

// Operation names one generation operation of the contract.
type Operation string

const (
	OpGenerateText    Operation = "generate-text"
	OpGenerateImage   Operation = "generate-image"
	OpGenerateDiagram Operation = "generate-diagram-markup"
	OpGeneratePlan    Operation = "generate-structured-plan"
)

// Options tunes a single generation call. Zero values mean "backend default".
type Options struct {
	// Model overrides the backend's configured model.
	Model string
	// MaxTokens caps the completion length.
	MaxTokens int
	// Temperature is the sampling temperature; nil leaves the backend default.
	Temperature *float64
	// Size is the image dimensions, e.g. "1024x1024".
	Size string
	// Quality is the image quality, e.g. "standard".
	Quality string
}

// Temperature returns a pointer to t for use in Options.
func Temperature(t float64) *float64 {
	return &t
}

// ImageRef locates a generated image: a URL, or an in-memory raster.
type ImageRef struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Empty reports whether the reference locates nothing.
func (r ImageRef) Empty() bool {
	return r.URL == "" && len(r.Data) == 0
}

// Capability is the set of generation operations a backend may offer.
// Operations a backend cannot serve fail with *UnsupportedCapabilityError.
type Capability interface {
	// Name identifies the backend in errors and logs.
	Name() string
	// GenerateText returns a plain-text completion.
	GenerateText(ctx context.Context, prompt string, opts Options) (string, error)
	// GenerateImage returns a locatable image.
	GenerateImage(ctx context.Context, prompt string, opts Options) (ImageRef, error)
	// GenerateDiagramMarkup returns TikZ markup, stripped of surrounding commentary.
	GenerateDiagramMarkup(ctx context.Context, prompt string, opts Options) (string, error)
	// GeneratePlan returns the backend output decoded as a JSON object.
	GeneratePlan(ctx context.Context, prompt string, opts Options) (map[string]any, error)
}

// Unsupported can be embedded by backends that implement only part of
// Capability. Each method fails immediately without contacting anything.
type Unsupported struct {
	Backend string
}

func (u Unsupported) GenerateText(context.Context, string, Options) (string, error) {
	return "", &UnsupportedCapabilityError{Operation: OpGenerateText, Backend: u.Backend}
}

func (u Unsupported) GenerateImage(context.Context, string, Options) (ImageRef, error) {
	return ImageRef{}, &UnsupportedCapabilityError{Operation: OpGenerateImage, Backend: u.Backend}
}

func (u Unsupported) GenerateDiagramMarkup(context.Context, string, Options) (string, error) {
	return "", &UnsupportedCapabilityError{Operation: OpGenerateDiagram, Backend: u.Backend}
}

func (u Unsupported) GeneratePlan(context.Context, string, Options) (map[string]any, error) {
	return nil, &UnsupportedCapabilityError{Operation: OpGeneratePlan, Backend: u.Backend}
}
