package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/mosaic/internal/capability"
)

func TestNewAnthropic_WithAPIKey(t *testing.T) {
	a, err := NewAnthropic(AnthropicConfig{APIKey: "test-key-123"})
	if err != nil {
		t.Fatalf("NewAnthropic failed: %v", err)
	}
	if a.Model() != anthropic.ModelClaude3_7Sonnet20250219 {
		t.Errorf("Model = %q, want default", a.Model())
	}
	if a.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewAnthropic_NoAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := NewAnthropic(AnthropicConfig{})
	if err == nil {
		t.Fatal("NewAnthropic should fail without API key")
	}
	expected := "ANTHROPIC_API_KEY environment variable is not set"
	if err.Error() != expected {
		t.Errorf("Error = %q, want %q", err.Error(), expected)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	got := translateModelForBedrock(anthropic.ModelClaude3_7Sonnet20250219)
	if got != "us.anthropic.claude-3-7-sonnet-20250219-v1:0" {
		t.Errorf("translate = %q", got)
	}
	custom := anthropic.Model("my-custom-profile")
	if translateModelForBedrock(custom) != custom {
		t.Error("unknown models should pass through")
	}
}

func TestAnthropic_GenerateImageUnsupported(t *testing.T) {
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.GenerateImage(context.Background(), "a cat", capability.Options{})
	var uce *capability.UnsupportedCapabilityError
	if !errors.As(err, &uce) {
		t.Fatalf("GenerateImage error = %v, want *UnsupportedCapabilityError", err)
	}
	if uce.Backend != "anthropic" || uce.Operation != capability.OpGenerateImage {
		t.Errorf("got backend=%q op=%q", uce.Backend, uce.Operation)
	}
}

func anthropicServer(t *testing.T, reply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		if gotBody != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-3-7-sonnet-20250219",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]any{"input_tokens": 12, "output_tokens": 7},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropic_GenerateText(t *testing.T) {
	var body map[string]any
	srv := anthropicServer(t, "  Hello world.  ", &body)

	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.GenerateText(context.Background(), "say hi", capability.Options{MaxTokens: 100, Temperature: capability.Temperature(0.5)})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if got != "Hello world." {
		t.Errorf("GenerateText = %q, want trimmed text", got)
	}
	if body["max_tokens"] != float64(100) {
		t.Errorf("max_tokens = %v, want 100", body["max_tokens"])
	}
	if body["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", body["temperature"])
	}

	in, out := a.Tracker().Total()
	if in != 12 || out != 7 || a.Tracker().Calls() != 1 {
		t.Errorf("tracker = %d/%d/%d", in, out, a.Tracker().Calls())
	}
}

func TestAnthropic_GenerateDiagramMarkup(t *testing.T) {
	srv := anthropicServer(t, `blah \begin{tikzpicture} A -- B; \end{tikzpicture} blah`, nil)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.GenerateDiagramMarkup(context.Background(), "draw", capability.Options{})
	if err != nil {
		t.Fatalf("GenerateDiagramMarkup failed: %v", err)
	}
	want := "\\begin{tikzpicture}\nA -- B;\n\\end{tikzpicture}"
	if got != want {
		t.Errorf("markup = %q, want %q", got, want)
	}
}

func TestAnthropic_GeneratePlan_Thinking(t *testing.T) {
	var body map[string]any
	srv := anthropicServer(t, `{"subtasks": [{"type": "text", "prompt": "intro"}]}`, &body)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, ExtendedThinking: true})
	if err != nil {
		t.Fatal(err)
	}
	plan, err := a.GeneratePlan(context.Background(), "plan", capability.Options{MaxTokens: 4000, Temperature: capability.Temperature(0.5)})
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, ok := plan["subtasks"]; !ok {
		t.Errorf("plan = %v", plan)
	}
	if _, ok := body["thinking"]; !ok {
		t.Error("expected thinking config in request")
	}
	if _, ok := body["temperature"]; ok {
		t.Error("temperature must be omitted when thinking is enabled")
	}
}

func TestAnthropic_GeneratePlan_Malformed(t *testing.T) {
	srv := anthropicServer(t, "I would rather not.", nil)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.GeneratePlan(context.Background(), "plan", capability.Options{})
	var mpe *capability.MalformedPlanError
	if !errors.As(err, &mpe) {
		t.Fatalf("error = %v, want *MalformedPlanError", err)
	}
}

func openAIServer(t *testing.T, chatReply string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(body, gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion",
				"created": 1,
				"model":   "gpt-4o",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": chatReply},
				}},
				"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7},
			})
		case strings.HasSuffix(r.URL.Path, "/images/generations"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"created": 1,
				"data":    []map[string]any{{"url": "https://images.example.com/cat.png"}},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "unexpected path", "type": "invalid_request_error"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAI_NoAPIKey(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)
	os.Unsetenv("OPENAI_API_KEY")

	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("NewOpenAI should fail without API key")
	}
}

func TestOpenAI_GenerateText(t *testing.T) {
	srv := openAIServer(t, "Hello world.\n", nil)
	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := o.GenerateText(context.Background(), "say hi", capability.Options{})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if got != "Hello world." {
		t.Errorf("GenerateText = %q", got)
	}
	if in, out := o.Tracker().Total(); in != 3 || out != 4 {
		t.Errorf("tracker = %d/%d", in, out)
	}
}

func TestOpenAI_GeneratePlan_RequestsJSON(t *testing.T) {
	var body map[string]any
	srv := openAIServer(t, `{"subtasks": []}`, &body)
	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.GeneratePlan(context.Background(), "plan as json", capability.Options{}); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", body["response_format"])
	}
}

func TestOpenAI_GenerateImage(t *testing.T) {
	var body map[string]any
	srv := openAIServer(t, "", &body)
	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "dall-e-3"})
	if err != nil {
		t.Fatal(err)
	}
	ref, err := o.GenerateImage(context.Background(), "a cat", capability.Options{})
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if ref.URL != "https://images.example.com/cat.png" {
		t.Errorf("URL = %q", ref.URL)
	}
	if body["size"] != "1024x1024" || body["quality"] != "standard" || body["model"] != "dall-e-3" {
		t.Errorf("unexpected image request: %v", body)
	}
}

func TestOpenAI_GenerationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad prompt", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.GenerateText(context.Background(), "x", capability.Options{})
	var ge *capability.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("error = %v, want *GenerationError", err)
	}
	if ge.Backend != "openai" || ge.Operation != capability.OpGenerateText {
		t.Errorf("got backend=%q op=%q", ge.Backend, ge.Operation)
	}
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, BackendConfig{Provider: "MOCK"})
	if err != nil {
		t.Fatalf("NewBackend(mock) failed: %v", err)
	}
	if b.Name() != "mock" {
		t.Errorf("Name = %q", b.Name())
	}

	b, err = NewBackend(ctx, BackendConfig{Provider: ProviderAnthropic, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewBackend(anthropic) failed: %v", err)
	}
	if b.Name() != "anthropic" {
		t.Errorf("Name = %q", b.Name())
	}

	if _, err := NewBackend(ctx, BackendConfig{Provider: "cohere"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestProvider_Valid(t *testing.T) {
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderMock} {
		if !p.Valid() {
			t.Errorf("%q should be valid", p)
		}
	}
	if Provider("azure").Valid() {
		t.Error("azure should be invalid")
	}
}
