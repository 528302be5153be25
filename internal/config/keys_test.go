package config

import (
	"errors"
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, err := GetAPIKey(&Config{}, ProviderAnthropic)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		cfg := &Config{OpenAI: OpenAIConfig{APIKey: "sk-config-key"}}
		key, err := GetAPIKey(cfg, ProviderOpenAI)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-config-key" {
			t.Errorf("expected 'sk-config-key', got %q", key)
		}
	})

	t.Run("expanded reference", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("MY_GEMINI", "gemini-secret")

		cfg := &Config{Google: GoogleConfig{APIKey: "${MY_GEMINI}"}}
		key, err := GetAPIKey(cfg, ProviderGoogle)
		if err != nil || key != "gemini-secret" {
			t.Errorf("GetAPIKey = %q, %v", key, err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := GetAPIKey(&Config{}, ProviderAnthropic)
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		key      string
		wantErr  bool
	}{
		{"valid anthropic", ProviderAnthropic, "sk-ant-REDACTED", false},
		{"anthropic wrong prefix", ProviderAnthropic, "sk-proj-abcdefghijklmnopqrs", true},
		{"valid openai", ProviderOpenAI, "sk-proj-abcdefghijklmnopqrs", false},
		{"google any prefix", ProviderGoogle, "AIzaSyabcdefghijklmnopq", false},
		{"empty", ProviderOpenAI, "", true},
		{"too short", ProviderAnthropic, "sk-ant-short", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}

	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if got := GetAPIKeySource(&Config{}, ProviderOpenAI); got != KeySourceNone {
		t.Errorf("source = %q, want none", got)
	}

	cfg := &Config{OpenAI: OpenAIConfig{APIKey: "sk-config"}}
	if got := GetAPIKeySource(cfg, ProviderOpenAI); got != KeySourceConfig {
		t.Errorf("source = %q, want config_file", got)
	}

	t.Setenv("OPENAI_API_KEY", "sk-env")
	if got := GetAPIKeySource(cfg, ProviderOpenAI); got != KeySourceEnv {
		t.Errorf("source = %q, want environment", got)
	}
}
