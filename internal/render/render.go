// Package render rasterizes TikZ diagram markup into PNG images using
// pdflatex and ImageMagick.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	iexec "github.com/ShayCichocki/mosaic/internal/exec"
	"github.com/ShayCichocki/mosaic/internal/logging"
)

// Stages a rendering can fail at.
const (
	StagePrepare   = "prepare"
	StageTypeset   = "typeset"
	StageRasterize = "rasterize"
)

// RenderingError reports a diagram that produced no image.
type RenderingError struct {
	Stage  string
	Output string
	Err    error
}

func (e *RenderingError) Error() string {
	return fmt.Sprintf("render diagram (%s): %v", e.Stage, e.Err)
}

func (e *RenderingError) Unwrap() error {
	return e.Err
}

// Config holds the renderer's tool settings.
type Config struct {
	OutputDir string
	PDFLatex  string
	Convert   string
	Density   int
	Quality   int
}

// DefaultConfig returns settings for a standard TeX Live and ImageMagick install.
func DefaultConfig() Config {
	pdflatex := "pdflatex"
	if runtime.GOOS == "darwin" {
		pdflatex = "/Library/TeX/texbin/pdflatex"
	}
	return Config{
		OutputDir: "tikz_images",
		PDFLatex:  pdflatex,
		Convert:   "convert",
		Density:   300,
		Quality:   90,
	}
}

const preamble = `\documentclass[border=10pt]{standalone}
\usepackage{tikz}
\usepackage{pgfplots}
\pgfplotsset{compat=1.18}
\usetikzlibrary{arrows,shapes,positioning,fit,calc,decorations.pathreplacing,decorations.markings}

\begin{document}
`

// BuildDocument wraps markup in a standalone LaTeX document.
func BuildDocument(markup string) string {
	return preamble + strings.TrimSpace(markup) + "\n\\end{document}\n"
}

// Renderer turns diagram markup into PNG files under Config.OutputDir.
type Renderer struct {
	cfg    Config
	runner iexec.CommandRunner
	log    *logging.Logger
}

// New creates a Renderer. Zero config fields take their defaults and a nil
// runner uses os/exec.
func New(cfg Config, runner iexec.CommandRunner, log *logging.Logger) *Renderer {
	def := DefaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.PDFLatex == "" {
		cfg.PDFLatex = def.PDFLatex
	}
	if cfg.Convert == "" {
		cfg.Convert = def.Convert
	}
	if cfg.Density <= 0 {
		cfg.Density = def.Density
	}
	if cfg.Quality <= 0 {
		cfg.Quality = def.Quality
	}
	if runner == nil {
		runner = iexec.NewRunner()
	}
	return &Renderer{cfg: cfg, runner: runner, log: logging.OrNop(log)}
}

// Available reports whether both external tools can be found.
func (r *Renderer) Available() error {
	for _, tool := range []string{r.cfg.PDFLatex, r.cfg.Convert} {
		if _, err := r.runner.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found: %w", tool, err)
		}
	}
	return nil
}

// Render typesets markup and rasterizes it, returning the PNG path.
func (r *Renderer) Render(ctx context.Context, markup string) (string, error) {
	dir, err := filepath.Abs(r.cfg.OutputDir)
	if err != nil {
		return "", &RenderingError{Stage: StagePrepare, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &RenderingError{Stage: StagePrepare, Err: err}
	}

	stem := uuid.NewString()[:8]
	texPath := filepath.Join(dir, stem+".tex")
	pdfPath := filepath.Join(dir, stem+".pdf")
	pngPath := filepath.Join(dir, stem+".png")

	if err := os.WriteFile(texPath, []byte(BuildDocument(markup)), 0644); err != nil {
		return "", &RenderingError{Stage: StagePrepare, Err: err}
	}

	out, err := r.runner.Run(ctx, dir, r.cfg.PDFLatex, "-interaction=nonstopmode", "-output-directory", dir, texPath)
	if err != nil {
		return "", &RenderingError{Stage: StageTypeset, Output: string(out), Err: err}
	}

	out, err = r.runner.Run(ctx, dir, r.cfg.Convert,
		"-density", strconv.Itoa(r.cfg.Density),
		pdfPath,
		"-quality", strconv.Itoa(r.cfg.Quality),
		pngPath,
	)
	if err != nil {
		return "", &RenderingError{Stage: StageRasterize, Output: string(out), Err: err}
	}
	if _, err := os.Stat(pngPath); err != nil {
		return "", &RenderingError{Stage: StageRasterize, Output: string(out), Err: err}
	}

	for _, ext := range []string{".aux", ".log"} {
		_ = os.Remove(filepath.Join(dir, stem+ext))
	}
	r.log.Debug("rendered diagram", "png", pngPath)
	return pngPath, nil
}
