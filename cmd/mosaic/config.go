package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/mosaic/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify mosaic configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config.

Configuration is stored at ~/.config/mosaic/config.yaml
Project-specific overrides can be placed in .mosaic.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			fmt.Print(formatAllConfig(cfg))
			printKeySources(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// formatAllConfig renders every key in sorted order with API keys masked.
func formatAllConfig(cfg *config.Config) string {
	values := config.Values(cfg)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, _ := getConfigValue(cfg, k)
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

func printKeySources(cfg *config.Config) {
	fmt.Println()
	for _, p := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGoogle} {
		src := config.GetAPIKeySource(cfg, p)
		mark := color.GreenString("✓")
		if src == config.KeySourceNone {
			mark = color.YellowString("⚠")
		}
		fmt.Printf("%s %s key: %s\n", mark, p, src)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	key = strings.ToLower(key)
	value, ok := config.Values(cfg)[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	if strings.HasSuffix(key, ".api_key") {
		return config.MaskAPIKey(fmt.Sprint(value)), nil
	}
	return fmt.Sprint(value), nil
}

// setConfigValue parses value according to key's type and stores it in cfg.
func setConfigValue(cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	values := config.Values(cfg)
	current, ok := values[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed any
	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		parsed = b
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		parsed = n
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %w", key, err)
		}
		parsed = f
	default:
		if key == "generate.timeout" {
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid duration for %s: %w", key, err)
			}
		}
		parsed = value
	}
	values[key] = parsed

	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	var updated config.Config
	if err := v.Unmarshal(&updated); err != nil {
		return fmt.Errorf("apply %s: %w", key, err)
	}
	*cfg = updated
	return nil
}

// setConfigKey sets a value in the user config file only, so project
// overrides and environment keys are not copied into it.
func setConfigKey(key, value string) error {
	path := config.GetUserConfigPath()
	user := config.Default()
	if _, err := os.Stat(path); err == nil {
		if user, err = config.LoadFromPath(path); err != nil {
			return err
		}
	}

	if err := setConfigValue(user, key, value); err != nil {
		return err
	}
	if provider, ok := strings.CutSuffix(strings.ToLower(key), ".api_key"); ok {
		if err := config.ValidateAPIKey(provider, value); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.YellowString("⚠"), err)
		}
	}

	if err := config.Save(user); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	shown, _ := getConfigValue(user, key)
	fmt.Printf("Set %s = %s\n", key, shown)
	return nil
}
