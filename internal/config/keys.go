package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for a provider.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider names with API keys.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

var keyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GEMINI_API_KEY",
}

var keyPrefix = map[string]string{
	ProviderAnthropic: "sk-ant-",
	ProviderOpenAI:    "sk-",
}

// EnvVar returns the environment variable holding provider's API key.
func EnvVar(provider string) string {
	return keyEnv[provider]
}

func configuredKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	switch provider {
	case ProviderAnthropic:
		return cfg.Anthropic.APIKey
	case ProviderOpenAI:
		return cfg.OpenAI.APIKey
	case ProviderGoogle:
		return cfg.Google.APIKey
	}
	return ""
}

// GetAPIKey returns the API key for provider.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	if env := keyEnv[provider]; env != "" {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	if key := os.ExpandEnv(configuredKey(cfg, provider)); key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}

	return "", fmt.Errorf("%w for %s", ErrNoAPIKey, provider)
}

// ValidateAPIKey performs basic format validation on an API key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if prefix := keyPrefix[provider]; prefix != "" && !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("invalid %s API key format: expected %q prefix", provider, prefix)
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	if env := keyEnv[provider]; env != "" && os.Getenv(env) != "" {
		return KeySourceEnv
	}

	if key := os.ExpandEnv(configuredKey(cfg, provider)); key != "" && !strings.HasPrefix(key, "${") {
		return KeySourceConfig
	}

	return KeySourceNone
}
