package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

const (
	defaultOpenAIModel  = "gpt-4o"
	defaultImageModel   = "dall-e-3"
	defaultImageSize    = "1024x1024"
	defaultImageQuality = "standard"
)

// OpenAIConfig contains configuration for the OpenAI backend.
type OpenAIConfig struct {
	// Model is the chat or image model. Image models (dall-e-*, gpt-image-*)
	// are used for GenerateImage; everything else for chat completions.
	Model string
	// APIKey is the OpenAI API key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL points at an OpenAI-compatible endpoint.
	BaseURL string
}

// OpenAI implements every operation of capability.Capability using the
// official openai-go SDK.
type OpenAI struct {
	client  openai.Client
	model   string
	tracker *TokenTracker
}

// NewOpenAI creates a new OpenAI backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// Name implements capability.Capability.
func (o *OpenAI) Name() string { return "openai" }

// Tracker returns the token tracker for this backend.
func (o *OpenAI) Tracker() *TokenTracker { return o.tracker }

// GenerateText implements capability.Capability.
func (o *OpenAI) GenerateText(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := o.chat(ctx, prompt, opts, false)
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateText, o.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateDiagramMarkup implements capability.Capability.
func (o *OpenAI) GenerateDiagramMarkup(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := o.chat(ctx, prompt, opts, false)
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateDiagram, o.Name(), err)
	}
	return capability.ExtractTikZ(text), nil
}

// GeneratePlan implements capability.Capability.
func (o *OpenAI) GeneratePlan(ctx context.Context, prompt string, opts capability.Options) (map[string]any, error) {
	text, err := o.chat(ctx, prompt, opts, true)
	if err != nil {
		return nil, capability.NewGenerationError(capability.OpGeneratePlan, o.Name(), err)
	}
	return capability.DecodePlan(o.Name(), text)
}

// GenerateImage implements capability.Capability.
func (o *OpenAI) GenerateImage(ctx context.Context, prompt string, opts capability.Options) (capability.ImageRef, error) {
	model := opts.Model
	if model == "" {
		model = o.model
	}
	if !isImageModel(model) {
		model = defaultImageModel
	}
	size := opts.Size
	if size == "" {
		size = defaultImageSize
	}
	quality := opts.Quality
	if quality == "" {
		quality = defaultImageQuality
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openai.ImageModel(model),
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize(size),
		Quality: openai.ImageGenerateParamsQuality(quality),
	})
	if err != nil {
		return capability.ImageRef{}, capability.NewGenerationError(capability.OpGenerateImage, o.Name(), err)
	}
	if len(resp.Data) == 0 {
		return capability.ImageRef{}, capability.NewGenerationError(capability.OpGenerateImage, o.Name(), errors.New("empty image data"))
	}

	img := resp.Data[0]
	if img.URL != "" {
		return capability.ImageRef{URL: img.URL}, nil
	}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return capability.ImageRef{}, capability.NewGenerationError(capability.OpGenerateImage, o.Name(), fmt.Errorf("decode b64_json: %w", err))
		}
		return capability.ImageRef{Data: data, MIMEType: "image/png"}, nil
	}
	return capability.ImageRef{}, capability.NewGenerationError(capability.OpGenerateImage, o.Name(), errors.New("image has neither url nor b64_json"))
}

func (o *OpenAI) chat(ctx context.Context, prompt string, opts capability.Options, jsonObject bool) (string, error) {
	model := opts.Model
	if model == "" {
		model = o.model
	}
	if isImageModel(model) {
		model = defaultOpenAIModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if jsonObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	o.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isImageModel(model string) bool {
	return strings.HasPrefix(model, "dall-e") || strings.HasPrefix(model, "gpt-image")
}

var _ capability.Capability = (*OpenAI)(nil)
