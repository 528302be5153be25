package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/internal/config"
	"github.com/ShayCichocki/mosaic/internal/export"
	"github.com/ShayCichocki/mosaic/internal/orchestrator"
	"github.com/ShayCichocki/mosaic/internal/planner"
	"github.com/ShayCichocki/mosaic/internal/refine"
	"github.com/ShayCichocki/mosaic/internal/render"
	"github.com/ShayCichocki/mosaic/internal/state"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

var (
	genNoRefine       bool
	genConcurrency    int
	genRenderDiagrams bool
	genOutput         string
	genTitle          string
	genNoLocalize     bool
	genQuiet          bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <request>",
	Short: "Generate a multimodal response",
	Long: `Generate a document answering the request.

The request is planned into text, image and diagram parts. Each draft
prompt is refined before generation unless --no-refine is given. Parts
that fail are left out and reported; the rest of the document is kept.

Without --output the Markdown is written to stdout. An output path ending
in .html produces a standalone page; anything else produces Markdown with
images copied into an images/ directory next to it.

Diagrams are returned as TikZ source unless --render-diagrams is given and
pdflatex and ImageMagick are installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&genNoRefine, "no-refine", false, "Use the planner's draft prompts as-is")
	generateCmd.Flags().IntVar(&genConcurrency, "concurrency", 0, "Parts generated at once (default from config)")
	generateCmd.Flags().BoolVar(&genRenderDiagrams, "render-diagrams", false, "Rasterize TikZ diagrams into PNG images")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write the document to this .md or .html file")
	generateCmd.Flags().StringVar(&genTitle, "title", "", "Document title")
	generateCmd.Flags().BoolVar(&genNoLocalize, "no-localize", false, "Reference images by their original URLs")
	generateCmd.Flags().BoolVarP(&genQuiet, "quiet", "q", false, "Do not print progress")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		return errors.New("request is empty")
	}
	doRefine := cfg.Generate.Refine && !genNoRefine

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Generate.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Generate.Timeout)
		defer cancel()
	}

	backends, err := newBackends(ctx, cfg)
	if err != nil {
		return err
	}
	mgr, err := newManager(backends, cfg)
	if err != nil {
		return err
	}

	history := openHistory(cfg)
	run := &state.Run{
		ID:        uuid.NewString(),
		Request:   request,
		Refine:    doRefine,
		StartedAt: time.Now(),
	}
	if history != nil {
		if err := history.CreateRun(run); err != nil {
			logger.Warn("recording run failed", "error", err)
			history.Close()
			history = nil
		}
	}
	if history != nil {
		defer history.Close()
	}

	res, genErr := mgr.GenerateResponse(ctx, request, doRefine)

	var outErr error
	if genErr == nil {
		run.OutputPath, outErr = writeDocument(ctx, res.Document, genOutput, genTitle, !genNoLocalize)
	}

	fillRun(run, res, firstErr(genErr, outErr))
	run.TokensUsed = backends.tokensUsed()
	if history != nil {
		if err := history.FinishRun(run); err != nil {
			logger.Warn("recording run failed", "error", err)
		}
	}

	if genErr != nil {
		return genErr
	}
	if outErr != nil {
		return outErr
	}
	printSummary(res, run)
	return nil
}

// newManager wires the planner, refiner and optional renderer around backends.
func newManager(b *backendSet, cfg *config.Config) (*orchestrator.Manager, error) {
	pl := planner.New(b.planner, planner.Config{
		MaxTokens:   cfg.Planner.MaxTokens,
		Temperature: cfg.Planner.Temperature,
	}, logger)

	textOpts := capability.Options{
		MaxTokens:   cfg.Text.MaxTokens,
		Temperature: capability.Temperature(cfg.Text.Temperature),
	}
	ref := refine.New(b.text, refine.Config{
		MaxTokens:   cfg.Text.MaxTokens,
		Temperature: cfg.Text.Temperature,
	}, logger)

	concurrency := cfg.Generate.Concurrency
	if genConcurrency > 0 {
		concurrency = genConcurrency
	}

	opts := []orchestrator.Option{
		orchestrator.WithRefiner(ref),
		orchestrator.WithConcurrency(concurrency),
		orchestrator.WithLogger(logger),
		orchestrator.WithTextOptions(textOpts),
		orchestrator.WithImageOptions(capability.Options{
			Size:    cfg.Image.Size,
			Quality: cfg.Image.Quality,
		}),
	}
	if !genQuiet {
		opts = append(opts, orchestrator.WithEventHandler(printEvent))
	}

	if genRenderDiagrams || cfg.Generate.RenderDiagrams {
		r := render.New(render.Config{
			OutputDir: cfg.Render.OutputDir,
			PDFLatex:  cfg.Render.PDFLatex,
			Convert:   cfg.Render.Convert,
			Density:   cfg.Render.Density,
		}, nil, logger)
		if err := r.Available(); err != nil {
			logger.Warn("diagram rendering disabled", "error", err)
		} else {
			opts = append(opts, orchestrator.WithDiagramRenderer(r))
		}
	}

	return orchestrator.New(orchestrator.RequiredConfig{
		Planner: pl,
		Text:    b.text,
		Image:   b.image,
	}, opts...)
}

// openHistory opens the run history, or returns nil when it is disabled or
// unavailable. Runs left unfinished by an earlier process are marked
// interrupted.
func openHistory(cfg *config.Config) state.StateStore {
	if cfg.State.Path == "" {
		return nil
	}
	db, err := state.Open(cfg.State.Path)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return nil
	}
	if err := db.Migrate(); err != nil {
		logger.Warn("run history unavailable", "error", err)
		db.Close()
		return nil
	}
	if n, err := db.MarkInterrupted(); err != nil {
		logger.Warn("marking interrupted runs failed", "error", err)
	} else if n > 0 {
		logger.Info("marked interrupted runs", "count", n)
	}
	return db
}

// writeDocument writes doc to path, or to stdout when path is empty.
// It returns the absolute path written.
func writeDocument(ctx context.Context, doc *models.Document, path, title string, localize bool) (string, error) {
	exp := export.New(nil, logger)
	opts := export.Options{Title: title, Localize: localize, NormalizeCode: true}

	if path == "" {
		opts.Localize = false
		md, err := exp.Markdown(ctx, doc, "", opts)
		if err != nil {
			return "", fmt.Errorf("render markdown: %w", err)
		}
		fmt.Print(md)
		return "", nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".html", ".htm":
		err = exp.WriteHTML(ctx, doc, abs, opts)
	default:
		err = exp.WriteMarkdown(ctx, doc, abs, opts)
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	return abs, nil
}

// fillRun copies a response outcome into a history record.
func fillRun(run *state.Run, res *orchestrator.Result, err error) {
	run.Status = runStatus(res, err)
	if err != nil {
		run.Error = err.Error()
	}
	if res == nil {
		return
	}

	run.Total = res.Total()
	run.Completed = res.Completed()
	run.Outcomes = make([]state.SubtaskOutcome, run.Total)
	for i, st := range res.Plan.Subtasks {
		o := state.SubtaskOutcome{
			Index: i,
			Type:  string(st.Type),
		}
		if i < len(res.States) {
			o.State = string(res.States[i])
		}
		if i < len(res.Prompts) {
			o.Prompt = res.Prompts[i]
		}
		if f, ok := res.Failure(i); ok {
			o.Error = f.Err.Error()
		}
		run.Outcomes[i] = o
	}
}

func runStatus(res *orchestrator.Result, err error) state.RunStatus {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return state.RunCanceled
	case err != nil || res == nil:
		return state.RunFailed
	case res.Completed() == res.Total():
		return state.RunCompleted
	case res.Completed() == 0:
		return state.RunFailed
	default:
		return state.RunPartial
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func printEvent(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventPlanned:
		fmt.Fprintf(os.Stderr, "%s planned %d parts\n", color.CyanString("●"), e.Total)
	case orchestrator.EventSubtaskState:
		var mark string
		switch e.State {
		case models.SubtaskStateCompleted:
			mark = color.GreenString("✓")
		case models.SubtaskStateFailed:
			mark = color.RedString("✗")
		default:
			mark = color.New(color.Faint).Sprint("·")
		}
		line := fmt.Sprintf("%s [%d/%d] %s %s", mark, e.Index+1, e.Total, e.SubtaskType, e.State)
		if e.Error != nil {
			line += ": " + e.Error.Error()
		}
		fmt.Fprintln(os.Stderr, line)
	case orchestrator.EventRefineFallback:
		fmt.Fprintf(os.Stderr, "%s [%d] refinement failed, using draft prompt\n", color.YellowString("⚠"), e.Index+1)
	case orchestrator.EventRenderFailed:
		fmt.Fprintf(os.Stderr, "%s [%d] diagram kept as TikZ source: %v\n", color.YellowString("⚠"), e.Index+1, e.Error)
	}
}

func printSummary(res *orchestrator.Result, run *state.Run) {
	summary := res.Summary()
	switch run.Status {
	case state.RunCompleted:
		summary = color.GreenString(summary)
	case state.RunPartial:
		summary = color.YellowString(summary)
	default:
		summary = color.RedString(summary)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", summary)
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "  %s part %d (%s): %v\n", color.RedString("✗"), f.Index+1, f.Type, f.Err)
	}
	if run.TokensUsed > 0 {
		fmt.Fprintf(os.Stderr, "Tokens: %s\n", formatNumber(run.TokensUsed))
	}
	if run.OutputPath != "" {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", run.OutputPath)
	}
}
