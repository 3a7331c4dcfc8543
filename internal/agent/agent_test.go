package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	aoption "github.com/anthropics/anthropic-sdk-go/option"
	ooption "github.com/openai/openai-go/option"

	"github.com/pdiddy/deep-research/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// --- ParseFindings ---

func TestParseFindingsFenced(t *testing.T) {
	text := "I searched three sources.\n\n```json\n" +
		`{"findings": [
		  {"content": "RAG reduces hallucination.", "source_url": "https://arxiv.org/abs/1", "source_title": "RAG", "confidence": 0.9, "source_type": "arxiv", "recency": 0.8, "relevance": 1.0, "verified_by": ["https://a", "https://b"]},
		  {"content": "Chunking matters.", "source_url": "https://blog", "source_title": "Blog", "confidence": 0.6}
		]}` + "\n```\n<promise>RESEARCH_COMPLETE</promise>"

	findings, rejected := ParseFindings(text)
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %v", rejected)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}

	f := findings[0]
	if f.Quality == nil {
		t.Fatal("first finding should carry quality")
	}
	if f.Quality.SourceType != types.SourceArxiv {
		t.Errorf("SourceType = %v, want arxiv", f.Quality.SourceType)
	}
	if f.Quality.AuthorityScore != types.SourceArxiv.Authority() {
		t.Errorf("AuthorityScore = %v, want default arxiv authority", f.Quality.AuthorityScore)
	}
	if f.Quality.VerificationCount != 2 {
		t.Errorf("VerificationCount = %d, want 2", f.Quality.VerificationCount)
	}
	if f.Quality.RecencyScore != 0.8 || f.Quality.RelevanceScore != 1.0 {
		t.Errorf("recency/relevance = %v/%v, want 0.8/1.0", f.Quality.RecencyScore, f.Quality.RelevanceScore)
	}

	if findings[1].Quality != nil {
		t.Error("finding without source_type should have no quality")
	}
}

func TestParseFindingsBareObject(t *testing.T) {
	findings, rejected := ParseFindings(`  {"findings": [{"content": "x", "confidence": 0.5, "source_type": "github"}]}  `)
	if len(rejected) != 0 || len(findings) != 1 {
		t.Fatalf("got %d findings, %v rejected", len(findings), rejected)
	}
	if findings[0].Quality.RecencyScore != 0.5 {
		t.Errorf("missing recency should default to 0.5, got %v", findings[0].Quality.RecencyScore)
	}
}

func TestParseFindingsNoBlock(t *testing.T) {
	findings, rejected := ParseFindings("Still researching, nothing to report.")
	if findings != nil || rejected != nil {
		t.Errorf("expected nothing, got %v / %v", findings, rejected)
	}
}

func TestParseFindingsInvalid(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantCount  int
		wantReject string
	}{
		{
			name:       "malformed JSON",
			text:       "```json\n{\"findings\": [\n```",
			wantReject: "invalid JSON",
		},
		{
			name:       "unknown source type",
			text:       `{"findings": [{"content": "a", "confidence": 0.5, "source_type": "blog"}, {"content": "b", "confidence": 0.5}]}`,
			wantCount:  1,
			wantReject: "finding 0",
		},
		{
			name:       "empty content",
			text:       `{"findings": [{"content": "  ", "confidence": 0.5}]}`,
			wantReject: "empty content",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, rejected := ParseFindings(tt.text)
			if len(findings) != tt.wantCount {
				t.Errorf("got %d findings, want %d", len(findings), tt.wantCount)
			}
			if len(rejected) != 1 || !strings.Contains(rejected[0], tt.wantReject) {
				t.Errorf("rejected = %v, want one containing %q", rejected, tt.wantReject)
			}
		})
	}
}

func TestParseFindingsClampsConfidence(t *testing.T) {
	findings, _ := ParseFindings(`{"findings": [{"content": "a", "confidence": 1.7}, {"content": "b", "confidence": -0.2, "source_type": "web", "relevance": 3}]}`)
	if len(findings) != 2 {
		t.Fatalf("got %d findings", len(findings))
	}
	if findings[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", findings[0].Confidence)
	}
	if findings[1].Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", findings[1].Confidence)
	}
	if findings[1].Quality.RelevanceScore != 1.0 {
		t.Errorf("relevance = %v, want 1.0", findings[1].Quality.RelevanceScore)
	}
}

// --- RunWithRetry ---

type failNTimesAgent struct {
	failures  int
	callCount int
}

func (f *failNTimesAgent) Name() string { return "fake" }

func (f *failNTimesAgent) Run(_ context.Context, _ string) (Response, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return Response{}, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return Response{Text: "ok"}, nil
}

func TestRunWithRetry(t *testing.T) {
	a := &failNTimesAgent{failures: 2}
	resp, err := RunWithRetry(context.Background(), a, "p", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" || a.callCount != 3 {
		t.Errorf("text=%q calls=%d, want ok/3", resp.Text, a.callCount)
	}

	a = &failNTimesAgent{failures: 10}
	if _, err := RunWithRetry(context.Background(), a, "p", 2); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if a.callCount != 3 {
		t.Errorf("calls = %d, want 3", a.callCount)
	}
}

func TestRunWithRetryNegativeRetries(t *testing.T) {
	a := &failNTimesAgent{failures: 1}
	_, err := RunWithRetry(context.Background(), a, "p", -3)
	if err == nil {
		t.Fatal("expected the single attempt's error")
	}
	if a.callCount != 1 {
		t.Errorf("calls = %d, want 1", a.callCount)
	}
	if !strings.Contains(err.Error(), "transient error (call 1)") {
		t.Errorf("err = %v, want the agent error wrapped", err)
	}

	a = &failNTimesAgent{}
	resp, err := RunWithRetry(context.Background(), a, "p", -1)
	if err != nil || resp.Text != "ok" {
		t.Errorf("resp=%q err=%v, want ok/nil", resp.Text, err)
	}
}

func TestRunWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunWithRetry(ctx, &failNTimesAgent{failures: 10}, "p", 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// --- providers ---

func TestNewProviderSwitch(t *testing.T) {
	tests := []struct {
		name     string
		cfg      types.AIConfig
		wantName string
		wantErr  bool
	}{
		{"default anthropic", types.AIConfig{APIKey: "k", Model: "m"}, "anthropic/m", false},
		{"openai", types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k", Model: "gpt"}, "openai/gpt", false},
		{"case insensitive", types.AIConfig{Provider: "Anthropic", APIKey: "k", Model: "m"}, "anthropic/m", false},
		{"missing key", types.AIConfig{Model: "m"}, "", true},
		{"unknown provider", types.AIConfig{Provider: "cohere", APIKey: "k"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", a.Name(), tt.wantName)
			}
		})
	}
	if _, err := New(types.AIConfig{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

const agentReply = "Found one.\n```json\n{\"findings\": [{\"content\": \"c\", \"confidence\": 0.7, \"source_type\": \"docs\"}]}\n```\n<promise>RESEARCH_COMPLETE</promise>"

func TestClaudeAgentRun(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": agentReply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer srv.Close()

	a := NewClaudeAgent(types.AIConfig{APIKey: "test-key", Model: "claude-test", BaseURL: srv.URL, MaxTokens: 512},
		aoption.WithMaxRetries(0))
	resp, err := a.Run(context.Background(), "research prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Text != agentReply {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Findings) != 1 || resp.Findings[0].Quality.SourceType != types.SourceDocs {
		t.Errorf("Findings = %+v", resp.Findings)
	}
	if gotBody["model"] != "claude-test" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if mt, ok := gotBody["max_tokens"].(float64); !ok || mt != 512 {
		t.Errorf("max_tokens = %v", gotBody["max_tokens"])
	}
}

func TestClaudeAgentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	a := NewClaudeAgent(types.AIConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}, aoption.WithMaxRetries(0))
	if _, err := a.Run(context.Background(), "p"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestOpenAIAgentRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": agentReply},
			}},
		})
	}))
	defer srv.Close()

	a := NewOpenAIAgent(types.AIConfig{APIKey: "test-key", Model: "gpt-test", BaseURL: srv.URL + "/v1/"},
		ooption.WithMaxRetries(0))
	resp, err := a.Run(context.Background(), "research prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Text != agentReply {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Findings) != 1 {
		t.Errorf("got %d findings, want 1", len(resp.Findings))
	}
}

func TestMissingModel(t *testing.T) {
	cfg := types.AIConfig{APIKey: "k"}
	if _, err := NewClaudeAgent(cfg).Run(context.Background(), "p"); err == nil {
		t.Error("ClaudeAgent: expected missing model error")
	}
	if _, err := NewOpenAIAgent(cfg).Run(context.Background(), "p"); err == nil {
		t.Error("OpenAIAgent: expected missing model error")
	}
}

func TestWithReportingInstructions(t *testing.T) {
	got, err := WithReportingInstructions("## Research Iteration 1/5\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "## Research Iteration 1/5\n") {
		t.Error("prompt should come first")
	}
	for _, want := range []string{"```json", `"findings"`, "source_type: one of web, arxiv, github, docs, local"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q", want)
		}
	}
}
