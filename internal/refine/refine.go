// Package refine rewrites a subtask's draft prompt through a meta-prompting
// call before the subtask is generated.
package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// RefinementError is returned when a prompt could not be refined. Callers
// fall back to the unrefined prompt.
type RefinementError struct {
	Type models.SubtaskType
	Err  error
}

func (e *RefinementError) Error() string {
	return fmt.Sprintf("refine %s prompt: %v", e.Type, e.Err)
}

func (e *RefinementError) Unwrap() error {
	return e.Err
}

var templates = map[models.SubtaskType]string{
	models.SubtaskTypeText:    textTemplate,
	models.SubtaskTypeImage:   imageTemplate,
	models.SubtaskTypeDiagram: diagramTemplate,
}

// Config holds the refiner's generation settings.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{MaxTokens: 2000, Temperature: 0.5}
}

// Refiner improves prompts with a plain-text completion.
type Refiner struct {
	backend capability.Capability
	cfg     Config
	log     *logging.Logger
}

// New creates a Refiner. A nil logger discards output.
func New(backend capability.Capability, cfg Config, log *logging.Logger) *Refiner {
	return &Refiner{backend: backend, cfg: cfg, log: logging.OrNop(log)}
}

// BuildPrompt fills the template for typ.
func BuildPrompt(typ models.SubtaskType, request, draft string, sc models.SubtaskContext) (string, error) {
	tmpl, ok := templates[typ]
	if !ok {
		return "", fmt.Errorf("no refinement template for type %q", typ)
	}
	return fmt.Sprintf(tmpl, request, draft, contextBlock(typ, sc)), nil
}

// Refine returns an improved version of draft. The backend's output is used
// verbatim apart from trimming surrounding whitespace.
func (r *Refiner) Refine(ctx context.Context, typ models.SubtaskType, request, draft string, sc models.SubtaskContext) (string, error) {
	prompt, err := BuildPrompt(typ, request, draft, sc)
	if err != nil {
		return "", &RefinementError{Type: typ, Err: err}
	}

	out, err := r.backend.GenerateText(ctx, prompt, capability.Options{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: capability.Temperature(r.cfg.Temperature),
	})
	if err != nil {
		return "", &RefinementError{Type: typ, Err: err}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", &RefinementError{Type: typ, Err: errors.New("empty refinement")}
	}
	r.log.Debug("refined prompt", "type", typ, "draft", draft, "refined", out)
	return out, nil
}

func contextBlock(typ models.SubtaskType, sc models.SubtaskContext) string {
	if sc.Empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if sc.Before != "" {
		fmt.Fprintf(&sb, "- This %s follows an element about: %s\n", typ, sc.Before)
	}
	if sc.After != "" {
		fmt.Fprintf(&sb, "- This %s precedes an element about: %s\n", typ, sc.After)
	}
	sb.WriteString("\n")
	return sb.String()
}
