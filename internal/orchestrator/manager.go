package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/internal/planner"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// ErrEmptyPrompt fails a subtask whose prompt is blank. Only that subtask
// is affected; the rest of the response is still generated.
var ErrEmptyPrompt = errors.New("empty prompt")

// Manager turns requests into multimodal documents.
// A Manager holds no per-request state and may serve concurrent calls.
type Manager struct {
	planner Planner
	text    capability.Capability
	image   capability.Capability
	opts    managerOptions
	log     *logging.Logger
}

// New creates a Manager.
func New(req RequiredConfig, opts ...Option) (*Manager, error) {
	if req.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if req.Text == nil {
		return nil, errors.New("text backend is required")
	}
	if req.Image == nil {
		return nil, errors.New("image backend is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	return &Manager{
		planner: req.Planner,
		text:    req.Text,
		image:   req.Image,
		opts:    o,
		log:     logging.OrNop(o.log),
	}, nil
}

// GenerateResponse plans request, generates every subtask and returns the
// assembled document. Subtask failures are reported in Result.Failures.
// Planning failures are returned as errors. On cancellation the context's
// error is returned and the partial document is discarded.
func (m *Manager) GenerateResponse(ctx context.Context, request string, refine bool) (*Result, error) {
	m.log.Info("planning response", "request", request)

	plan, err := m.planner.Plan(ctx, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.log.Error("planning failed", "error", err)
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		m.log.Error("invalid plan", "error", err)
		return nil, &planner.PlanningError{Reason: "invalid plan", Err: err}
	}
	fillContext(plan)

	resp := newResponse(m, request, plan, refine && m.opts.refiner != nil)
	m.log.Info("plan ready", "subtasks", plan.Len(), "refine", resp.refine)
	resp.emit(Event{Type: EventPlanned, Index: -1, Total: plan.Len()})

	g := new(errgroup.Group)
	g.SetLimit(m.opts.concurrency)
	for _, st := range plan.Subtasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			resp.execute(ctx, st)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		m.log.Warn("response cancelled", "error", err)
		return nil, err
	}

	res, err := resp.assemble()
	if err != nil {
		return nil, err
	}
	m.log.Info("response generated",
		"completed", res.Completed(),
		"total", res.Total(),
		"failed", len(res.Failures),
	)
	resp.emit(Event{Type: EventDone, Index: -1, Total: res.Total(), Completed: res.Completed()})
	return res, nil
}

// fillContext gives each subtask its neighbours' draft prompts as context,
// leaving any context the planner already supplied untouched.
func fillContext(plan *models.Plan) {
	for i, st := range plan.Subtasks {
		if !st.Context.Empty() {
			continue
		}
		if i > 0 {
			st.Context.Before = plan.Subtasks[i-1].Prompt
		}
		if i < len(plan.Subtasks)-1 {
			st.Context.After = plan.Subtasks[i+1].Prompt
		}
	}
}

type outcome struct {
	element models.Element
	err     error
	prompt  string
}

// response is the state of one GenerateResponse call. Each subtask only
// writes its own outcome slot; states and events are serialized by mu.
type response struct {
	m       *Manager
	request string
	plan    *models.Plan
	refine  bool

	outcomes []outcome

	mu          sync.Mutex
	states      []models.SubtaskState
	transitions [][]models.SubtaskState
}

func newResponse(m *Manager, request string, plan *models.Plan, refine bool) *response {
	n := plan.Len()
	r := &response{
		m:           m,
		request:     request,
		plan:        plan,
		refine:      refine,
		outcomes:    make([]outcome, n),
		states:      make([]models.SubtaskState, n),
		transitions: make([][]models.SubtaskState, n),
	}
	for i := range r.states {
		r.states[i] = models.SubtaskStatePlanned
		r.transitions[i] = []models.SubtaskState{models.SubtaskStatePlanned}
	}
	return r
}

func (r *response) execute(ctx context.Context, st *models.Subtask) {
	if ctx.Err() != nil {
		return
	}
	log := r.m.log.With("subtask", st.Index, "type", st.Type)

	prompt := st.Prompt
	if r.refine && strings.TrimSpace(prompt) != "" {
		r.setState(st, models.SubtaskStateRefining, nil)
		refined, err := r.m.opts.refiner.Refine(ctx, st.Type, r.request, st.Prompt, st.Context)
		if err != nil {
			r.revertRefining(st)
			if ctx.Err() != nil {
				return
			}
			log.Warn("refinement failed, using draft prompt", "error", err)
			r.emit(Event{Type: EventRefineFallback, Index: st.Index, SubtaskType: st.Type, Error: err})
		} else {
			prompt = refined
			st.Prompt = refined
		}
	}
	r.outcomes[st.Index].prompt = prompt

	r.setState(st, models.SubtaskStateGenerating, nil)
	el, err := r.dispatch(ctx, st, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("subtask failed", "error", err)
		r.outcomes[st.Index].err = err
		r.setState(st, models.SubtaskStateFailed, err)
		return
	}
	r.outcomes[st.Index].element = el
	r.setState(st, models.SubtaskStateCompleted, nil)
}

func (r *response) dispatch(ctx context.Context, st *models.Subtask, prompt string) (models.Element, error) {
	if strings.TrimSpace(prompt) == "" {
		op, backend := capability.OpGenerateText, r.m.text.Name()
		switch st.Type {
		case models.SubtaskTypeImage:
			op, backend = capability.OpGenerateImage, r.m.image.Name()
		case models.SubtaskTypeDiagram:
			op = capability.OpGenerateDiagram
		}
		return nil, capability.NewGenerationError(op, backend, ErrEmptyPrompt)
	}

	switch st.Type {
	case models.SubtaskTypeText:
		out, err := r.m.text.GenerateText(ctx, prompt, r.m.opts.textOpts)
		if err != nil {
			return nil, err
		}
		return models.TextElement{Index: st.Index, Content: out}, nil

	case models.SubtaskTypeImage:
		ref, err := r.m.image.GenerateImage(ctx, prompt, r.m.opts.imageOpts)
		if err != nil {
			return nil, err
		}
		if ref.Empty() {
			return nil, capability.NewGenerationError(capability.OpGenerateImage, r.m.image.Name(), errors.New("backend returned no image"))
		}
		return models.ImageElement{
			Index:    st.Index,
			URL:      ref.URL,
			Data:     ref.Data,
			MIMEType: ref.MIMEType,
			AltText:  extraString(st, "alt_text"),
			Caption:  extraString(st, "caption"),
		}, nil

	case models.SubtaskTypeDiagram:
		markup, err := r.m.text.GenerateDiagramMarkup(ctx, prompt, r.m.opts.diagramOpts)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(markup) == "" {
			return nil, capability.NewGenerationError(capability.OpGenerateDiagram, r.m.text.Name(), errors.New("backend returned no markup"))
		}
		return r.renderDiagram(ctx, st, markup), nil
	}
	return nil, fmt.Errorf("unsupported subtask type %q", st.Type)
}

// renderDiagram returns an image element for the rasterized markup, or the
// markup itself as text when no renderer is set or rendering fails.
func (r *response) renderDiagram(ctx context.Context, st *models.Subtask, markup string) models.Element {
	text := models.TextElement{Index: st.Index, Content: markup}
	if r.m.opts.renderer == nil {
		return text
	}
	path, err := r.m.opts.renderer.Render(ctx, markup)
	if err != nil {
		r.m.log.Warn("diagram rendering failed, keeping markup", "subtask", st.Index, "error", err)
		r.emit(Event{Type: EventRenderFailed, Index: st.Index, SubtaskType: st.Type, Error: err})
		return text
	}
	alt := extraString(st, "alt_text")
	if alt == "" {
		alt = "Diagram"
	}
	return models.ImageElement{
		Index:    st.Index,
		URL:      path,
		MIMEType: "image/png",
		AltText:  alt,
		Caption:  extraString(st, "caption"),
	}
}

func (r *response) setState(st *models.Subtask, state models.SubtaskState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[st.Index] = state
	r.transitions[st.Index] = append(r.transitions[st.Index], state)
	r.emitLocked(Event{Type: EventSubtaskState, Index: st.Index, SubtaskType: st.Type, State: state, Total: r.plan.Len(), Error: err})
}

// revertRefining drops a Refining state whose refinement failed, so the
// recorded history goes straight from Planned to Generating.
func (r *response) revertRefining(st *models.Subtask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr := r.transitions[st.Index]
	if n := len(tr); n > 1 && tr[n-1] == models.SubtaskStateRefining {
		r.transitions[st.Index] = tr[:n-1]
		r.states[st.Index] = tr[n-2]
	}
}

func (r *response) emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(e)
}

func (r *response) emitLocked(e Event) {
	if r.m.opts.onEvent == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	r.m.opts.onEvent(e)
}

// assemble builds the document from completed outcomes in index order.
func (r *response) assemble() (*Result, error) {
	res := &Result{
		Plan:        r.plan,
		Document:    &models.Document{},
		States:      r.states,
		Transitions: r.transitions,
		Prompts:     make([]string, len(r.outcomes)),
	}
	for i, out := range r.outcomes {
		res.Prompts[i] = out.prompt
		if out.element != nil {
			if err := res.Document.Append(out.element); err != nil {
				return nil, fmt.Errorf("assemble document: %w", err)
			}
			continue
		}
		if out.err != nil {
			res.Failures = append(res.Failures, SubtaskFailure{
				Index: i,
				Type:  r.plan.Subtasks[i].Type,
				Err:   out.err,
			})
		}
	}
	res.Document.Seal()
	return res, nil
}

func extraString(st *models.Subtask, key string) string {
	s, _ := st.Extra[key].(string)
	return strings.TrimSpace(s)
}
