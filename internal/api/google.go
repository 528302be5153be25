package api

import (
	"context"
	"errors"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GoogleConfig contains configuration for the Gemini backend.
type GoogleConfig struct {
	// Model is the Gemini model name.
	Model string
	// APIKey is the Gemini API key. If empty, uses GEMINI_API_KEY env var.
	APIKey string
}

// Google serves text, diagram and plan generation through the Gemini API.
// Image generation is not offered by this backend.
type Google struct {
	capability.Unsupported

	client  *genai.Client
	model   string
	tracker *TokenTracker
}

// NewGoogle creates a new Gemini backend.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Google{
		Unsupported: capability.Unsupported{Backend: "google"},
		client:      client,
		model:       model,
		tracker:     NewTokenTracker(),
	}, nil
}

// Name implements capability.Capability.
func (g *Google) Name() string { return "google" }

// Tracker returns the token tracker for this backend.
func (g *Google) Tracker() *TokenTracker { return g.tracker }

// GenerateText implements capability.Capability.
func (g *Google) GenerateText(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := g.generate(ctx, prompt, opts, "")
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateText, g.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateDiagramMarkup implements capability.Capability.
func (g *Google) GenerateDiagramMarkup(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := g.generate(ctx, prompt, opts, "")
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateDiagram, g.Name(), err)
	}
	return capability.ExtractTikZ(text), nil
}

// GeneratePlan implements capability.Capability.
func (g *Google) GeneratePlan(ctx context.Context, prompt string, opts capability.Options) (map[string]any, error) {
	text, err := g.generate(ctx, prompt, opts, "application/json")
	if err != nil {
		return nil, capability.NewGenerationError(capability.OpGeneratePlan, g.Name(), err)
	}
	return capability.DecodePlan(g.Name(), text)
}

func (g *Google) generate(ctx context.Context, prompt string, opts capability.Options, mimeType string) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.model
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: mimeType}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		g.tracker.Add(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}

var _ capability.Capability = (*Google)(nil)
