package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/mosaic/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	c := config.Default()
	c.OpenAI.APIKey = "sk-abcdefghijklmnopqrstuvwxyz"

	tests := []struct {
		key  string
		want string
	}{
		{"planner.provider", "anthropic"},
		{"Generate.Concurrency", "1"},
		{"generate.refine", "true"},
		{"generate.timeout", "10m0s"},
		{"text.temperature", "0.5"},
		{"openai.api_key", "sk-abcd...wxyz"},
		{"anthropic.api_key", "(not set)"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := getConfigValue(c, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if _, err := getConfigValue(c, "nope.key"); err == nil {
		t.Error("getConfigValue() should fail for an unknown key")
	}
}

func TestSetConfigValue(t *testing.T) {
	c := config.Default()

	if err := setConfigValue(c, "generate.concurrency", "4"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}
	if err := setConfigValue(c, "generate.timeout", "90s"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}
	if err := setConfigValue(c, "generate.render_diagrams", "true"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}
	if err := setConfigValue(c, "image.provider", "google"); err != nil {
		t.Fatalf("setConfigValue() error = %v", err)
	}

	if c.Generate.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", c.Generate.Concurrency)
	}
	if c.Generate.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", c.Generate.Timeout)
	}
	if !c.Generate.RenderDiagrams {
		t.Error("RenderDiagrams should be true")
	}
	if c.Image.Provider != "google" {
		t.Errorf("Image.Provider = %q", c.Image.Provider)
	}
	if c.Planner.Model != config.Default().Planner.Model {
		t.Errorf("unrelated keys should be kept, Planner.Model = %q", c.Planner.Model)
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"generate.concurrency", "many"},
		{"generate.refine", "maybe"},
		{"generate.timeout", "soon"},
		{"text.temperature", "warm"},
		{"unknown.key", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := config.Default()
			if err := setConfigValue(c, tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) should fail", tt.key, tt.value)
			}
		})
	}
}

func TestSetConfigKey_WritesUserConfigOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("OPENAI_API_KEY", "sk-from-the-environment-0000")

	if err := setConfigKey("text.model", "claude-test"); err != nil {
		t.Fatalf("setConfigKey() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "mosaic", "config.yaml"))
	if err != nil {
		t.Fatalf("read user config: %v", err)
	}
	if !strings.Contains(string(data), "claude-test") {
		t.Errorf("user config should contain the new value:\n%s", data)
	}
	if strings.Contains(string(data), "sk-from-the-environment") {
		t.Error("environment API keys must not be written to the user config")
	}
}

func TestFormatAllConfig(t *testing.T) {
	c := config.Default()
	c.Anthropic.APIKey = "sk-ant-REDACTED"

	out := formatAllConfig(c)
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Error("API keys should be masked")
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(config.Values(c)) {
		t.Errorf("got %d lines, want one per key (%d)", len(lines), len(config.Values(c)))
	}
	for i := 1; i < len(lines); i++ {
		prev, _, _ := strings.Cut(lines[i-1], ":")
		cur, _, _ := strings.Cut(lines[i], ":")
		if prev > cur {
			t.Errorf("keys not sorted: %q before %q", prev, cur)
		}
	}
}
