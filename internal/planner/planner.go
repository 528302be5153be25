// Package planner turns a free-form request into an ordered plan of typed
// generation subtasks with a single structured-generation call.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// PlanningError is returned when no usable subtask list could be obtained.
// It is fatal to the whole response.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

// Config holds the planner's generation settings.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{MaxTokens: 4000, Temperature: 0.5}
}

// Planner produces plans through a backend's structured-plan operation.
type Planner struct {
	backend capability.Capability
	cfg     Config
	log     *logging.Logger
}

// New creates a Planner. A nil logger discards output.
func New(backend capability.Capability, cfg Config, log *logging.Logger) *Planner {
	return &Planner{backend: backend, cfg: cfg, log: logging.OrNop(log)}
}

// BuildPrompt returns the planning meta-prompt for request.
func BuildPrompt(request string) string {
	return fmt.Sprintf(planningPrompt, exampleQuery, exampleResponse, request)
}

// Plan asks the backend for a plan covering request.
// A malformed structured response is returned as *capability.MalformedPlanError;
// every other failure is a *PlanningError.
func (p *Planner) Plan(ctx context.Context, request string) (*models.Plan, error) {
	if strings.TrimSpace(request) == "" {
		return nil, &PlanningError{Reason: "empty request"}
	}

	prompt := BuildPrompt(request)
	p.log.Debug("planning prompt", "prompt", prompt)

	payload, err := p.backend.GeneratePlan(ctx, prompt, capability.Options{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: capability.Temperature(p.cfg.Temperature),
	})
	if err != nil {
		var mpe *capability.MalformedPlanError
		if errors.As(err, &mpe) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &PlanningError{Reason: "plan generation call failed", Err: err}
	}

	plan, err := FromPayload(payload)
	if err != nil {
		return nil, err
	}
	p.log.Info("generated plan", "backend", p.backend.Name(), "subtasks", plan.Len())
	return plan, nil
}

// FromPayload extracts the subtask list from a decoded plan payload. Entries
// are converted without validation; fields other than type and prompt are
// kept in Subtask.Extra.
func FromPayload(payload map[string]any) (*models.Plan, error) {
	raw, ok := payload["subtasks"]
	if !ok {
		return nil, &PlanningError{Reason: `response has no "subtasks" field`}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &PlanningError{Reason: fmt.Sprintf(`"subtasks" is %T, not a list`, raw)}
	}
	if len(items) == 0 {
		return nil, &PlanningError{Reason: "plan has no subtasks"}
	}

	plan := &models.Plan{Subtasks: make([]*models.Subtask, len(items))}
	for i, item := range items {
		st := &models.Subtask{Index: i}
		if fields, ok := item.(map[string]any); ok {
			for k, v := range fields {
				switch k {
				case "type":
					s, _ := v.(string)
					st.Type = models.SubtaskType(strings.ToLower(strings.TrimSpace(s)))
				case "prompt":
					st.Prompt, _ = v.(string)
				default:
					if st.Extra == nil {
						st.Extra = make(map[string]any)
					}
					st.Extra[k] = v
				}
			}
		}
		plan.Subtasks[i] = st
	}
	return plan, nil
}
