// Package config handles configuration loading and management for mosaic.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for mosaic.
type Config struct {
	Planner   PlannerConfig   `mapstructure:"planner"`
	Text      TextConfig      `mapstructure:"text"`
	Image     ImageConfig     `mapstructure:"image"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Google    GoogleConfig    `mapstructure:"google"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Render    RenderConfig    `mapstructure:"render"`
	Log       LogConfig       `mapstructure:"log"`
	State     StateConfig     `mapstructure:"state"`
}

// PlannerConfig selects the backend that plans responses.
type PlannerConfig struct {
	Provider         string  `mapstructure:"provider"`
	Model            string  `mapstructure:"model"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature"`
	ExtendedThinking bool    `mapstructure:"extended_thinking"`
}

// TextConfig selects the backend for text, diagram and refinement calls.
type TextConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ImageConfig selects the backend for image subtasks.
type ImageConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Size     string `mapstructure:"size"`
	Quality  string `mapstructure:"quality"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GoogleConfig holds Gemini API settings.
type GoogleConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// GenerateConfig holds response generation settings.
type GenerateConfig struct {
	Refine         bool          `mapstructure:"refine"`
	Concurrency    int           `mapstructure:"concurrency"`
	RenderDiagrams bool          `mapstructure:"render_diagrams"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// RenderConfig holds diagram rasterization settings.
type RenderConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	PDFLatex  string `mapstructure:"pdflatex"`
	Convert   string `mapstructure:"convert"`
	Density   int    `mapstructure:"density"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	// Path is the SQLite file. Empty disables history.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (provider API keys, MOSAIC_<SECTION>_<KEY>)
// 2. Project config (.mosaic.yaml in current directory or parent)
// 3. User config (~/.config/mosaic/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("google.api_key", "GEMINI_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Google.APIKey = expandEnv(cfg.Google.APIKey)
	cfg.State.Path = expandEnv(cfg.State.Path)
	cfg.Log.File = expandEnv(cfg.Log.File)
	cfg.Render.OutputDir = expandEnv(cfg.Render.OutputDir)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveToPath writes the configuration to path.
func SaveToPath(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	for key, value := range Values(cfg) {
		v.Set(key, value)
	}
	return v.WriteConfig()
}

// Values flattens cfg into dotted keys.
func Values(cfg *Config) map[string]any {
	return map[string]any{
		"planner.provider":          cfg.Planner.Provider,
		"planner.model":             cfg.Planner.Model,
		"planner.max_tokens":        cfg.Planner.MaxTokens,
		"planner.temperature":       cfg.Planner.Temperature,
		"planner.extended_thinking": cfg.Planner.ExtendedThinking,
		"text.provider":             cfg.Text.Provider,
		"text.model":                cfg.Text.Model,
		"text.max_tokens":           cfg.Text.MaxTokens,
		"text.temperature":          cfg.Text.Temperature,
		"image.provider":            cfg.Image.Provider,
		"image.model":               cfg.Image.Model,
		"image.size":                cfg.Image.Size,
		"image.quality":             cfg.Image.Quality,
		"anthropic.api_key":         cfg.Anthropic.APIKey,
		"anthropic.bedrock":         cfg.Anthropic.Bedrock,
		"anthropic.aws_region":      cfg.Anthropic.AWSRegion,
		"anthropic.aws_profile":     cfg.Anthropic.AWSProfile,
		"openai.api_key":            cfg.OpenAI.APIKey,
		"openai.base_url":           cfg.OpenAI.BaseURL,
		"google.api_key":            cfg.Google.APIKey,
		"generate.refine":           cfg.Generate.Refine,
		"generate.concurrency":      cfg.Generate.Concurrency,
		"generate.render_diagrams":  cfg.Generate.RenderDiagrams,
		"generate.timeout":          cfg.Generate.Timeout.String(),
		"render.output_dir":         cfg.Render.OutputDir,
		"render.pdflatex":           cfg.Render.PDFLatex,
		"render.convert":            cfg.Render.Convert,
		"render.density":            cfg.Render.Density,
		"log.mode":                  cfg.Log.Mode,
		"log.level":                 cfg.Log.Level,
		"log.file":                  cfg.Log.File,
		"state.path":                cfg.State.Path,
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values from Default.
func setDefaults(v *viper.Viper) {
	for key, value := range Values(Default()) {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for mosaic.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mosaic")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "mosaic")
	}
	return filepath.Join(home, ".config", "mosaic")
}

// DefaultStatePath returns the XDG data path of the history database.
func DefaultStatePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", ".local", "share", "mosaic", "history.db")
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "mosaic", "history.db")
}

// findProjectConfig searches for .mosaic.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".mosaic.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			Provider:         "anthropic",
			Model:            "claude-3-7-sonnet-20250219",
			MaxTokens:        4000,
			Temperature:      0.5,
			ExtendedThinking: true,
		},
		Text: TextConfig{
			Provider:    "anthropic",
			Model:       "claude-3-7-sonnet-20250219",
			MaxTokens:   2000,
			Temperature: 0.5,
		},
		Image: ImageConfig{
			Provider: "openai",
			Model:    "dall-e-3",
			Size:     "1024x1024",
			Quality:  "standard",
		},
		Anthropic: AnthropicConfig{
			AWSRegion: "us-east-1",
		},
		Generate: GenerateConfig{
			Refine:      true,
			Concurrency: 1,
			Timeout:     10 * time.Minute,
		},
		Render: RenderConfig{
			OutputDir: "tikz_images",
			PDFLatex:  "",
			Convert:   "convert",
			Density:   300,
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
		State: StateConfig{
			Path: DefaultStatePath(),
		},
	}
}
