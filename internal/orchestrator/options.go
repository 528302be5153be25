package orchestrator

import (
	"context"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// Planner produces a plan for a request.
type Planner interface {
	Plan(ctx context.Context, request string) (*models.Plan, error)
}

// Refiner improves a draft prompt.
type Refiner interface {
	Refine(ctx context.Context, typ models.SubtaskType, request, draft string, sc models.SubtaskContext) (string, error)
}

// DiagramRenderer rasterizes diagram markup and returns the image path.
type DiagramRenderer interface {
	Render(ctx context.Context, markup string) (string, error)
}

// RequiredConfig contains the collaborators every Manager needs.
type RequiredConfig struct {
	Planner Planner
	// Text serves text and diagram subtasks.
	Text capability.Capability
	// Image serves image subtasks.
	Image capability.Capability
}

// Option configures a Manager. Use With* functions to create Options.
type Option func(*managerOptions)

type managerOptions struct {
	refiner     Refiner
	renderer    DiagramRenderer
	concurrency int
	log         *logging.Logger
	onEvent     EventHandler

	textOpts    capability.Options
	imageOpts   capability.Options
	diagramOpts capability.Options
}

func defaultOptions() managerOptions {
	return managerOptions{
		concurrency: 1,
		textOpts:    capability.Options{MaxTokens: 2000, Temperature: capability.Temperature(0.5)},
		diagramOpts: capability.Options{MaxTokens: 4000, Temperature: capability.Temperature(0.5)},
	}
}

// WithRefiner sets the prompt refiner used when refinement is requested.
// Without one, refinement requests are ignored.
func WithRefiner(r Refiner) Option {
	return func(o *managerOptions) { o.refiner = r }
}

// WithDiagramRenderer rasterizes diagram markup into image elements.
func WithDiagramRenderer(r DiagramRenderer) Option {
	return func(o *managerOptions) { o.renderer = r }
}

// WithConcurrency sets how many subtasks may be generated at once.
// Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(o *managerOptions) { o.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *managerOptions) { o.log = l }
}

// WithEventHandler registers a callback for progress events.
func WithEventHandler(h EventHandler) Option {
	return func(o *managerOptions) { o.onEvent = h }
}

// WithTextOptions sets the generation options for text subtasks.
func WithTextOptions(opts capability.Options) Option {
	return func(o *managerOptions) { o.textOpts = opts }
}

// WithImageOptions sets the generation options for image subtasks.
func WithImageOptions(opts capability.Options) Option {
	return func(o *managerOptions) { o.imageOpts = opts }
}

// WithDiagramOptions sets the generation options for diagram subtasks.
func WithDiagramOptions(opts capability.Options) Option {
	return func(o *managerOptions) { o.diagramOpts = opts }
}
