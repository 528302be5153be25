package models

import "fmt"

// SubtaskType identifies which generation operation a subtask needs.
type SubtaskType string

const (
	// SubtaskTypeText produces prose.
	SubtaskTypeText SubtaskType = "text"
	// SubtaskTypeImage produces an image.
	SubtaskTypeImage SubtaskType = "image"
	// SubtaskTypeDiagram produces diagram markup (TikZ).
	SubtaskTypeDiagram SubtaskType = "diagram"
)

// Valid returns true if the type is a known value.
func (t SubtaskType) Valid() bool {
	switch t {
	case SubtaskTypeText, SubtaskTypeImage, SubtaskTypeDiagram:
		return true
	default:
		return false
	}
}

// SubtaskState represents where a subtask is in its lifecycle.
type SubtaskState string

const (
	// SubtaskStatePlanned is the initial state after planning.
	SubtaskStatePlanned SubtaskState = "planned"
	// SubtaskStateRefining indicates the prompt is being refined.
	SubtaskStateRefining SubtaskState = "refining"
	// SubtaskStateGenerating indicates content generation is in flight.
	SubtaskStateGenerating SubtaskState = "generating"
	// SubtaskStateCompleted indicates an element was produced.
	SubtaskStateCompleted SubtaskState = "completed"
	// SubtaskStateFailed indicates the subtask produced nothing.
	SubtaskStateFailed SubtaskState = "failed"
)

// Terminal returns true for states a subtask never leaves.
func (s SubtaskState) Terminal() bool {
	return s == SubtaskStateCompleted || s == SubtaskStateFailed
}

// SubtaskContext holds the neighbouring material a refinement may use.
// It is only ever read.
type SubtaskContext struct {
	// Before describes the element preceding this one, if any.
	Before string `json:"before,omitempty" yaml:"before,omitempty"`
	// After describes the element following this one, if any.
	After string `json:"after,omitempty" yaml:"after,omitempty"`
}

// Empty reports whether no context is available.
func (c SubtaskContext) Empty() bool {
	return c.Before == "" && c.After == ""
}

// Subtask is one planned unit of content generation.
type Subtask struct {
	// Index is the position in the plan. It is never renumbered.
	Index int `json:"index" yaml:"index"`
	// Type selects the generation operation and refinement template.
	Type SubtaskType `json:"type" yaml:"type"`
	// Prompt is the current generation instruction. Refinement replaces it.
	Prompt string `json:"prompt" yaml:"prompt"`
	// Context is refinement input only.
	Context SubtaskContext `json:"context,omitempty" yaml:"context,omitempty"`
	// Extra carries any fields of the plan payload beyond type and prompt.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Plan is the ordered list of subtasks produced by one planning call.
type Plan struct {
	Subtasks []*Subtask `json:"subtasks" yaml:"subtasks"`
}

// Len returns the number of subtasks.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Subtasks)
}

// Validate checks the invariants the orchestrator relies on at dispatch time:
// the plan is non-empty and every subtask has a known type. An empty prompt
// is not a plan error; the orchestrator fails that subtask alone.
func (p *Plan) Validate() error {
	if p.Len() == 0 {
		return fmt.Errorf("plan has no subtasks")
	}
	for i, st := range p.Subtasks {
		if st == nil {
			return fmt.Errorf("subtask %d is null", i)
		}
		if st.Index != i {
			return fmt.Errorf("subtask at position %d has index %d", i, st.Index)
		}
		if !st.Type.Valid() {
			return fmt.Errorf("subtask %d has unsupported type %q", i, st.Type)
		}
	}
	return nil
}
