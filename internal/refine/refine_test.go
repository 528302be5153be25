package refine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/mosaic/internal/capability"
	"github.com/ShayCichocki/mosaic/pkg/models"
)

type fakeBackend struct {
	capability.Unsupported
	reply string
	err   error

	prompts []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) GenerateText(_ context.Context, prompt string, _ capability.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestBuildPrompt_PerType(t *testing.T) {
	tests := []struct {
		typ    models.SubtaskType
		marker string
	}{
		{models.SubtaskTypeText, "Current text prompt to refine: draft"},
		{models.SubtaskTypeImage, "Current image prompt to refine: draft"},
		{models.SubtaskTypeDiagram, "Current diagram prompt to refine: draft"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			prompt, err := BuildPrompt(tt.typ, "the request", "draft", models.SubtaskContext{})
			if err != nil {
				t.Fatalf("BuildPrompt failed: %v", err)
			}
			if !strings.Contains(prompt, "Original user query: the request") {
				t.Error("prompt missing user query")
			}
			if !strings.Contains(prompt, tt.marker) {
				t.Errorf("prompt missing %q", tt.marker)
			}
			if strings.Contains(prompt, "Context:") {
				t.Error("empty context should not render a context block")
			}
			if strings.Contains(prompt, "%!") {
				t.Error("prompt has formatting errors")
			}
		})
	}
}

func TestBuildPrompt_Context(t *testing.T) {
	prompt, err := BuildPrompt(models.SubtaskTypeImage, "q", "d", models.SubtaskContext{Before: "the intro", After: "the summary"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "- This image follows an element about: the intro\n") {
		t.Error("missing before context")
	}
	if !strings.Contains(prompt, "- This image precedes an element about: the summary\n") {
		t.Error("missing after context")
	}
}

func TestBuildPrompt_UnknownType(t *testing.T) {
	if _, err := BuildPrompt("video", "q", "d", models.SubtaskContext{}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestRefine_TrimsVerbatim(t *testing.T) {
	backend := &fakeBackend{reply: "\n  A detailed prompt.\n\n"}
	r := New(backend, DefaultConfig(), nil)

	got, err := r.Refine(context.Background(), models.SubtaskTypeText, "q", "intro", models.SubtaskContext{})
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if got != "A detailed prompt." {
		t.Errorf("Refine = %q", got)
	}
	if len(backend.prompts) != 1 {
		t.Errorf("GenerateText called %d times, want 1", len(backend.prompts))
	}
}

func TestRefine_Errors(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		typ     models.SubtaskType
	}{
		{"backend error", &fakeBackend{err: errors.New("timeout")}, models.SubtaskTypeText},
		{"unsupported", &fakeBackend{err: &capability.UnsupportedCapabilityError{Operation: capability.OpGenerateText, Backend: "fake"}}, models.SubtaskTypeImage},
		{"empty output", &fakeBackend{reply: "   "}, models.SubtaskTypeDiagram},
		{"unknown type", &fakeBackend{reply: "x"}, models.SubtaskType("audio")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.backend, DefaultConfig(), nil).Refine(context.Background(), tt.typ, "q", "d", models.SubtaskContext{})
			var re *RefinementError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want *RefinementError", err)
			}
			if re.Type != tt.typ {
				t.Errorf("Type = %q, want %q", re.Type, tt.typ)
			}
		})
	}
}
