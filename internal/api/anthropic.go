package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

const (
	defaultAnthropicModel = anthropic.ModelClaude3_7Sonnet20250219
	defaultThinkingBudget = 2048
)

// AnthropicConfig contains configuration for the Anthropic backend.
type AnthropicConfig struct {
	// Model is the Claude model to use. Defaults to Claude 3.7 Sonnet.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// ExtendedThinking enables a thinking budget on structured-plan calls.
	ExtendedThinking bool
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Anthropic serves text, diagram and plan generation through Claude.
// Claude has no image generation, so GenerateImage always fails.
type Anthropic struct {
	capability.Unsupported

	inner    anthropic.Client
	model    anthropic.Model
	bedrock  bool
	thinking bool
	tracker  *TokenTracker
}

// NewAnthropic creates a new Anthropic backend.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &Anthropic{
		Unsupported: capability.Unsupported{Backend: "anthropic"},
		inner:       anthropic.NewClient(opts...),
		model:       model,
		bedrock:     cfg.UseAWSBedrock,
		thinking:    cfg.ExtendedThinking,
		tracker:     NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Name implements capability.Capability.
func (a *Anthropic) Name() string { return "anthropic" }

// Model returns the configured model name.
func (a *Anthropic) Model() anthropic.Model { return a.model }

// Tracker returns the token tracker for this backend.
func (a *Anthropic) Tracker() *TokenTracker { return a.tracker }

// GenerateText implements capability.Capability.
func (a *Anthropic) GenerateText(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := a.complete(ctx, prompt, opts, false)
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateText, a.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateDiagramMarkup implements capability.Capability.
func (a *Anthropic) GenerateDiagramMarkup(ctx context.Context, prompt string, opts capability.Options) (string, error) {
	text, err := a.complete(ctx, prompt, opts, false)
	if err != nil {
		return "", capability.NewGenerationError(capability.OpGenerateDiagram, a.Name(), err)
	}
	return capability.ExtractTikZ(text), nil
}

// GeneratePlan implements capability.Capability.
func (a *Anthropic) GeneratePlan(ctx context.Context, prompt string, opts capability.Options) (map[string]any, error) {
	text, err := a.complete(ctx, prompt, opts, a.thinking)
	if err != nil {
		return nil, capability.NewGenerationError(capability.OpGeneratePlan, a.Name(), err)
	}
	return capability.DecodePlan(a.Name(), text)
}

func (a *Anthropic) complete(ctx context.Context, prompt string, opts capability.Options, thinking bool) (string, error) {
	model := a.model
	if opts.Model != "" {
		model = anthropic.Model(opts.Model)
		if a.bedrock {
			model = translateModelForBedrock(model)
		}
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if thinking {
		// The thinking budget counts against max_tokens and excludes temperature.
		if maxTokens <= defaultThinkingBudget {
			params.MaxTokens = defaultThinkingBudget + maxTokens
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(defaultThinkingBudget)
	} else if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	resp, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	a.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response content")
	}
	return sb.String(), nil
}

var _ capability.Capability = (*Anthropic)(nil)
