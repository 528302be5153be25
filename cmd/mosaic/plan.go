package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/mosaic/internal/api"
	"github.com/ShayCichocki/mosaic/internal/planner"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan <request>",
	Short: "Show how a request would be split",
	Long: `Ask the planner for a plan and print it without generating anything.

The plan is printed as YAML, or as JSON with --json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func runPlan(cmd *cobra.Command, args []string) error {
	request := strings.TrimSpace(strings.Join(args, " "))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bc, err := backendConfig(cfg, cfg.Planner.Provider, cfg.Planner.Model, cfg.Planner.ExtendedThinking)
	if err != nil {
		return fmt.Errorf("planner backend: %w", err)
	}
	backend, err := api.NewBackend(ctx, bc)
	if err != nil {
		return fmt.Errorf("planner backend: %w", err)
	}

	pl := planner.New(backend, planner.Config{
		MaxTokens:   cfg.Planner.MaxTokens,
		Temperature: cfg.Planner.Temperature,
	}, logger)
	plan, err := pl.Plan(ctx, request)
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return &planner.PlanningError{Reason: "invalid plan", Err: err}
	}

	out, err := encodePlan(plan, planJSON)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func encodePlan(plan *models.Plan, asJSON bool) (string, error) {
	if asJSON {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode plan: %w", err)
		}
		return string(data) + "\n", nil
	}
	data, err := yaml.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	return string(data), nil
}
