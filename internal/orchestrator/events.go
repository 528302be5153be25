package orchestrator

import (
	"time"

	"github.com/ShayCichocki/mosaic/pkg/models"
)

// EventType represents the type of manager event.
type EventType string

const (
	// EventPlanned indicates the plan was generated and validated.
	EventPlanned EventType = "planned"
	// EventSubtaskState indicates a subtask moved to a new state.
	EventSubtaskState EventType = "subtask_state"
	// EventRefineFallback indicates refinement failed and the draft prompt is used.
	EventRefineFallback EventType = "refine_fallback"
	// EventRenderFailed indicates a diagram could not be rasterized.
	EventRenderFailed EventType = "render_failed"
	// EventDone indicates the response is assembled.
	EventDone EventType = "done"
)

// Event is emitted while a response is generated. Handlers are called
// serially, never concurrently.
type Event struct {
	Type EventType
	// Index is the subtask index, or -1 for response-level events.
	Index int
	// SubtaskType is the type of the related subtask, if any.
	SubtaskType models.SubtaskType
	// State is the new state for EventSubtaskState.
	State models.SubtaskState
	// Total is the number of planned subtasks.
	Total int
	// Completed is the number of completed subtasks, set on EventDone.
	Completed int
	Error     error
	Timestamp time.Time
}

// EventHandler receives manager events.
type EventHandler func(Event)
