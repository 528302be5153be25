package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/mosaic/internal/api"
	"github.com/ShayCichocki/mosaic/internal/config"
)

// backendSet holds one backend per role.
type backendSet struct {
	planner api.Backend
	text    api.Backend
	image   api.Backend
}

// backendConfig builds the api.BackendConfig for one role.
func backendConfig(cfg *config.Config, provider, model string, thinking bool) (api.BackendConfig, error) {
	p := api.Provider(strings.ToLower(provider))
	if !p.Valid() {
		return api.BackendConfig{}, fmt.Errorf("unknown provider: %q", provider)
	}

	bc := api.BackendConfig{Provider: p, Model: model}
	switch p {
	case api.ProviderAnthropic:
		bc.UseAWSBedrock = cfg.Anthropic.Bedrock
		bc.AWSRegion = cfg.Anthropic.AWSRegion
		bc.AWSProfile = cfg.Anthropic.AWSProfile
		bc.ExtendedThinking = thinking
		if bc.UseAWSBedrock {
			return bc, nil
		}
	case api.ProviderOpenAI:
		bc.BaseURL = cfg.OpenAI.BaseURL
	case api.ProviderMock:
		return bc, nil
	}

	key, err := config.GetAPIKey(cfg, string(p))
	if err != nil {
		return api.BackendConfig{}, fmt.Errorf("%s: %w (set %s)", p, err, config.EnvVar(string(p)))
	}
	bc.APIKey = key
	return bc, nil
}

// newBackends constructs the planner, text and image backends. Roles with
// identical settings share one backend.
func newBackends(ctx context.Context, cfg *config.Config) (*backendSet, error) {
	cache := map[api.BackendConfig]api.Backend{}
	build := func(role, provider, model string, thinking bool) (api.Backend, error) {
		bc, err := backendConfig(cfg, provider, model, thinking)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", role, err)
		}
		if b, ok := cache[bc]; ok {
			return b, nil
		}
		b, err := api.NewBackend(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", role, err)
		}
		cache[bc] = b
		return b, nil
	}

	var (
		set backendSet
		err error
	)
	if set.planner, err = build("planner", cfg.Planner.Provider, cfg.Planner.Model, cfg.Planner.ExtendedThinking); err != nil {
		return nil, err
	}
	if set.text, err = build("text", cfg.Text.Provider, cfg.Text.Model, false); err != nil {
		return nil, err
	}
	if set.image, err = build("image", cfg.Image.Provider, cfg.Image.Model, false); err != nil {
		return nil, err
	}
	return &set, nil
}

// tokensUsed sums input and output tokens over the distinct backends.
func (s *backendSet) tokensUsed() int64 {
	seen := map[*api.TokenTracker]bool{}
	var total int64
	for _, b := range []api.Backend{s.planner, s.text, s.image} {
		if b == nil {
			continue
		}
		tr := b.Tracker()
		if tr == nil || seen[tr] {
			continue
		}
		seen[tr] = true
		total += tr.Usage().Sum()
	}
	return total
}
