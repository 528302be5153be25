package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/mosaic/internal/api"
	"github.com/ShayCichocki/mosaic/internal/config"
	"github.com/ShayCichocki/mosaic/internal/logging"
	"github.com/ShayCichocki/mosaic/internal/orchestrator"
	"github.com/ShayCichocki/mosaic/internal/state"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

// useMockConfig points every role at the offline backend for one test.
func useMockConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Planner.Provider = "mock"
	c.Text.Provider = "mock"
	c.Image.Provider = "mock"
	c.State.Path = ""

	oldCfg, oldLogger, oldQuiet := cfg, logger, genQuiet
	cfg, logger, genQuiet = c, logging.Nop(), true
	t.Cleanup(func() {
		cfg, logger, genQuiet = oldCfg, oldLogger, oldQuiet
	})
	return c
}

func testResult(states []models.SubtaskState, failures map[int]error) *orchestrator.Result {
	plan := &models.Plan{}
	res := &orchestrator.Result{Plan: plan, Document: &models.Document{}, States: states}
	for i := range states {
		plan.Subtasks = append(plan.Subtasks, &models.Subtask{
			Index:  i,
			Type:   models.SubtaskTypeText,
			Prompt: fmt.Sprintf("prompt %d", i),
		})
		res.Prompts = append(res.Prompts, fmt.Sprintf("refined %d", i))
		if err, ok := failures[i]; ok {
			res.Failures = append(res.Failures, orchestrator.SubtaskFailure{Index: i, Type: models.SubtaskTypeText, Err: err})
		}
	}
	return res
}

func TestRunStatus(t *testing.T) {
	done := models.SubtaskStateCompleted
	failed := models.SubtaskStateFailed

	tests := []struct {
		name string
		res  *orchestrator.Result
		err  error
		want state.RunStatus
	}{
		{"all completed", testResult([]models.SubtaskState{done, done}, nil), nil, state.RunCompleted},
		{"some failed", testResult([]models.SubtaskState{done, failed}, nil), nil, state.RunPartial},
		{"all failed", testResult([]models.SubtaskState{failed, failed}, nil), nil, state.RunFailed},
		{"planning error", nil, errors.New("bad plan"), state.RunFailed},
		{"canceled", nil, context.Canceled, state.RunCanceled},
		{"timed out", nil, fmt.Errorf("wrapped: %w", context.DeadlineExceeded), state.RunCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runStatus(tt.res, tt.err); got != tt.want {
				t.Errorf("runStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFillRun(t *testing.T) {
	res := testResult(
		[]models.SubtaskState{models.SubtaskStateCompleted, models.SubtaskStateFailed},
		map[int]error{1: errors.New("backend down")},
	)

	run := &state.Run{ID: "r1"}
	fillRun(run, res, nil)

	if run.Status != state.RunPartial {
		t.Errorf("Status = %q, want partial", run.Status)
	}
	if run.Total != 2 || run.Completed != 1 {
		t.Errorf("Total/Completed = %d/%d, want 2/1", run.Total, run.Completed)
	}
	if len(run.Outcomes) != 2 {
		t.Fatalf("len(Outcomes) = %d, want 2", len(run.Outcomes))
	}
	if o := run.Outcomes[0]; o.State != "completed" || o.Prompt != "refined 0" || o.Error != "" {
		t.Errorf("Outcomes[0] = %+v", o)
	}
	if o := run.Outcomes[1]; o.State != "failed" || o.Error != "backend down" {
		t.Errorf("Outcomes[1] = %+v", o)
	}
}

func TestFillRun_Error(t *testing.T) {
	run := &state.Run{ID: "r1"}
	fillRun(run, nil, context.Canceled)

	if run.Status != state.RunCanceled {
		t.Errorf("Status = %q, want canceled", run.Status)
	}
	if run.Error != context.Canceled.Error() {
		t.Errorf("Error = %q", run.Error)
	}
	if run.Outcomes != nil {
		t.Errorf("Outcomes = %v, want nil", run.Outcomes)
	}
}

func TestBackendConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test-openai-key-123456")

	c := config.Default()
	c.Anthropic.APIKey = ""

	t.Run("mock needs no key", func(t *testing.T) {
		bc, err := backendConfig(c, "Mock", "", false)
		if err != nil {
			t.Fatalf("backendConfig() error = %v", err)
		}
		if bc.Provider != api.ProviderMock || bc.APIKey != "" {
			t.Errorf("backendConfig() = %+v", bc)
		}
	})

	t.Run("openai key from env", func(t *testing.T) {
		c.OpenAI.BaseURL = "http://localhost:9999/v1"
		bc, err := backendConfig(c, "openai", "dall-e-3", true)
		if err != nil {
			t.Fatalf("backendConfig() error = %v", err)
		}
		if bc.APIKey != "sk-test-openai-key-123456" {
			t.Errorf("APIKey = %q", bc.APIKey)
		}
		if bc.BaseURL != "http://localhost:9999/v1" {
			t.Errorf("BaseURL = %q", bc.BaseURL)
		}
		if bc.ExtendedThinking {
			t.Error("ExtendedThinking should only apply to anthropic")
		}
	})

	t.Run("missing anthropic key", func(t *testing.T) {
		_, err := backendConfig(c, "anthropic", "claude", true)
		if !errors.Is(err, config.ErrNoAPIKey) {
			t.Errorf("backendConfig() error = %v, want ErrNoAPIKey", err)
		}
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		b := *c
		b.Anthropic.Bedrock = true
		bc, err := backendConfig(&b, "anthropic", "claude", true)
		if err != nil {
			t.Fatalf("backendConfig() error = %v", err)
		}
		if !bc.UseAWSBedrock || bc.AWSRegion != "us-east-1" || !bc.ExtendedThinking {
			t.Errorf("backendConfig() = %+v", bc)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := backendConfig(c, "cohere", "", false); err == nil {
			t.Error("backendConfig() should fail for an unknown provider")
		}
	})
}

func TestNewBackends_SharesIdenticalRoles(t *testing.T) {
	c := useMockConfig(t)

	set, err := newBackends(context.Background(), c)
	if err != nil {
		t.Fatalf("newBackends() error = %v", err)
	}
	if set.planner != set.text || set.text != set.image {
		t.Error("roles with identical settings should share a backend")
	}
}

func TestGeneratePipeline_Mock(t *testing.T) {
	c := useMockConfig(t)
	ctx := context.Background()

	set, err := newBackends(ctx, c)
	if err != nil {
		t.Fatalf("newBackends() error = %v", err)
	}
	mgr, err := newManager(set, c)
	if err != nil {
		t.Fatalf("newManager() error = %v", err)
	}

	res, err := mgr.GenerateResponse(ctx, "Explain how a request becomes a response", true)
	if err != nil {
		t.Fatalf("GenerateResponse() error = %v", err)
	}
	if res.Total() != 4 || res.Completed() != 4 {
		t.Fatalf("Summary() = %q, want all 4 generated", res.Summary())
	}
	if set.tokensUsed() == 0 {
		t.Error("tokensUsed() = 0, want usage from the mock tracker")
	}

	out := filepath.Join(t.TempDir(), "answer.md")
	path, err := writeDocument(ctx, res.Document, out, "Answer", true)
	if err != nil {
		t.Fatalf("writeDocument() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	md := string(data)
	if !strings.HasPrefix(md, "# Answer\n") {
		t.Errorf("output should start with the title, got %q", md[:min(len(md), 40)])
	}
	if !strings.Contains(md, "](images/") {
		t.Errorf("mock image should be written under images/, got:\n%s", md)
	}
	if !strings.Contains(md, `\begin{tikzpicture}`) {
		t.Errorf("unrendered diagram should be kept as markup, got:\n%s", md)
	}

	db, err := state.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("state.Open() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	run := &state.Run{ID: "run-1", Request: "Explain", Refine: true, StartedAt: time.Now(), OutputPath: path}
	fillRun(run, res, nil)
	if err := db.RecordRun(run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	got, err := db.GetRun("run-1")
	if err != nil || got == nil {
		t.Fatalf("GetRun() = %v, %v", got, err)
	}
	if got.Status != state.RunCompleted || len(got.Outcomes) != 4 {
		t.Errorf("stored run = %+v", got)
	}
	for _, o := range got.Outcomes {
		if !strings.HasPrefix(o.Prompt, "Generated text for:") {
			t.Errorf("outcome %d prompt = %q, want the refined prompt", o.Index, o.Prompt)
		}
	}
}

func TestFirstErr(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	if got := firstErr(nil, a, b); got != a {
		t.Errorf("firstErr() = %v, want a", got)
	}
	if got := firstErr(nil, nil); got != nil {
		t.Errorf("firstErr() = %v, want nil", got)
	}
}
