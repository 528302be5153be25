// Package api provides the concrete generation backends (Anthropic, OpenAI,
// Google Gemini and an offline mock) behind capability.Capability.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

// Provider selects a backend implementation.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderMock      Provider = "mock"
)

// Valid returns true if the provider is a known value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderMock:
		return true
	default:
		return false
	}
}

// Backend is a generation capability that reports its token usage.
type Backend interface {
	capability.Capability
	Tracker() *TokenTracker
}

// BackendConfig contains everything needed to construct any backend.
// Fields irrelevant to the selected provider are ignored.
type BackendConfig struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string

	// Anthropic only.
	UseAWSBedrock    bool
	AWSRegion        string
	AWSProfile       string
	ExtendedThinking bool
}

// NewBackend constructs the backend named by cfg.Provider.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{
			Model:            cfg.Model,
			APIKey:           cfg.APIKey,
			BaseURL:          cfg.BaseURL,
			UseAWSBedrock:    cfg.UseAWSBedrock,
			AWSRegion:        cfg.AWSRegion,
			AWSProfile:       cfg.AWSProfile,
			ExtendedThinking: cfg.ExtendedThinking,
		})
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	case ProviderGoogle:
		return NewGoogle(ctx, GoogleConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		})
	case ProviderMock:
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}
