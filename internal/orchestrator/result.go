package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/mosaic/pkg/models"
)

// SubtaskFailure records why a subtask produced no element.
type SubtaskFailure struct {
	Index int
	Type  models.SubtaskType
	Err   error
}

func (f SubtaskFailure) Error() string {
	return fmt.Sprintf("subtask %d (%s): %v", f.Index, f.Type, f.Err)
}

func (f SubtaskFailure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one GenerateResponse call.
type Result struct {
	// Plan is the executed plan. Refined subtasks carry their refined prompt.
	Plan *models.Plan
	// Document is sealed; appending to it fails with models.ErrSealed.
	Document *models.Document
	// Failures lists failed subtasks in ascending index order.
	Failures []SubtaskFailure
	// States holds the final state of each subtask, by index.
	States []models.SubtaskState
	// Transitions holds the states each subtask passed through, by index.
	Transitions [][]models.SubtaskState
	// Prompts holds the prompt each subtask was generated from, by index.
	Prompts []string
}

// Total returns the number of planned subtasks.
func (r *Result) Total() int {
	return r.Plan.Len()
}

// Completed returns the number of subtasks that produced an element.
func (r *Result) Completed() int {
	n := 0
	for _, s := range r.States {
		if s == models.SubtaskStateCompleted {
			n++
		}
	}
	return n
}

// Failure returns the failure recorded for index, if any.
func (r *Result) Failure(index int) (SubtaskFailure, bool) {
	for _, f := range r.Failures {
		if f.Index == index {
			return f, true
		}
	}
	return SubtaskFailure{}, false
}

// Summary returns a one-line "N of M elements generated" report.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d of %d elements generated", r.Completed(), r.Total())
}
