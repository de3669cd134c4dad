package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testKey = "sk-test-0123456789"

// MockTextModel is a mock implementation for testing
type MockTextModel struct {
	ShouldError bool
	Label       string
	Words       []WordEntry
	Reply       string
}

func (m *MockTextModel) Chat(ctx context.Context, message string) (string, error) {
	if m.ShouldError {
		return "", &AIError{Kind: KindGeneric, Message: "mock error", StatusCode: 500}
	}
	return m.Reply, nil
}

func (m *MockTextModel) WordBatch(ctx context.Context, category string, exclude []string) ([]WordEntry, error) {
	if m.ShouldError {
		return nil, &AIError{Kind: KindGeneric, Message: "mock error", StatusCode: 500}
	}
	return m.Words, nil
}

func (m *MockTextModel) WordsFromText(ctx context.Context, category, text string, exclude []string) ([]WordEntry, error) {
	return m.WordBatch(ctx, category, exclude)
}

func (m *MockTextModel) LabelSketch(ctx context.Context, png []byte) (string, error) {
	if m.ShouldError {
		return "", &AIError{Kind: KindGeneric, Message: "mock error", StatusCode: 500}
	}
	return m.Label, nil
}

// MockImageGenerator records prompts
type MockImageGenerator struct {
	Prompts []string
}

func (m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	m.Prompts = append(m.Prompts, prompt)
	return []byte("png"), nil
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = orig })
}

// TestSketchToCartoon tests that a recognised sketch is redrawn
func TestSketchToCartoon(t *testing.T) {
	images := &MockImageGenerator{}
	svc := NewService(&MockTextModel{Label: "cat"}, images)

	res, err := svc.SketchToCartoon(context.Background(), []byte("sketch"))
	if err != nil {
		t.Fatalf("SketchToCartoon failed: %v", err)
	}
	if res == nil || res.Word != "cat" {
		t.Fatalf("Expected cat, got %+v", res)
	}
	if len(images.Prompts) != 1 || !strings.Contains(images.Prompts[0], "cat") {
		t.Errorf("Unexpected prompts: %v", images.Prompts)
	}
}

// TestSketchToCartoonUnrecognised tests the empty result
func TestSketchToCartoonUnrecognised(t *testing.T) {
	images := &MockImageGenerator{}
	svc := NewService(&MockTextModel{Label: ""}, images)

	res, err := svc.SketchToCartoon(context.Background(), []byte("scribble"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("Expected nil result, got %+v", res)
	}
	if len(images.Prompts) != 0 {
		t.Error("Image generator should not be called for unrecognised sketches")
	}
}

// TestPromptConstruction tests that prompts are well-formed
func TestPromptConstruction(t *testing.T) {
	prompt := buildWordBatchPrompt("animals", []string{"lion", "cat"})

	for _, want := range []string{"10", "animals", "lion, cat", "JSON", "translation", "emoji"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt should contain %q", want)
		}
	}

	ws := buildWorksheetPrompt("fruits", "Apple Banana", nil)
	if !strings.Contains(ws, "Apple Banana") || !strings.Contains(ws, "fruits") {
		t.Error("Worksheet prompt should contain the text and category")
	}
}

// TestParseWordResponse tests parsing JSON responses
func TestParseWordResponse(t *testing.T) {
	tests := []struct {
		name        string
		jsonResp    string
		expected    int
		expectError bool
	}{
		{
			name:     "Valid array",
			jsonResp: `[{"word":"Tiger","translation":"ببر","emoji":"🐯"},{"word":"Bear","translation":"خرس","emoji":"🐻"}]`,
			expected: 2,
		},
		{
			name:     "Markdown wrapped",
			jsonResp: "```json\n[{\"word\":\"Tiger\"}]\n```",
			expected: 1,
		},
		{
			name:     "Empty words dropped",
			jsonResp: `[{"word":"  "},{"word":"Fox"}]`,
			expected: 1,
		},
		{
			name:     "Empty array",
			jsonResp: `[]`,
			expected: 0,
		},
		{
			name:        "Invalid JSON",
			jsonResp:    `not json`,
			expectError: true,
		},
		{
			name:        "Not an array",
			jsonResp:    `{"key": "value"}`,
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := parseWordResponse(tc.jsonResp)

			if tc.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(entries) != tc.expected {
				t.Errorf("Expected %d entries, got %d", tc.expected, len(entries))
			}
		})
	}
}

// TestParseSketchLabel tests label normalisation
func TestParseSketchLabel(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"Cat", "cat"},
		{" cat. ", "cat"},
		{"UNKNOWN", ""},
		{"unknown", ""},
		{"", ""},
		{"I think this could be a house", ""},
		{"fire truck", "fire truck"},
	}

	for _, tc := range tests {
		if got := parseSketchLabel(tc.reply); got != tc.want {
			t.Errorf("parseSketchLabel(%q) = %q, want %q", tc.reply, got, tc.want)
		}
	}
}

// TestHasCredential tests the credential check
func TestHasCredential(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"undefined", false},
		{"short", false},
		{"   ", false},
		{testKey, true},
	}

	for _, tc := range tests {
		if got := HasCredential(tc.key); got != tc.want {
			t.Errorf("HasCredential(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

// TestClassify tests status code classification
func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   Kind
	}{
		{401, "", KindMissingCredential},
		{403, "", KindMissingCredential},
		{429, "rate limited", KindQuotaExceeded},
		{400, `{"error":{"code":"content_policy_violation"}}`, KindContentRejected},
		{400, `{"error":{"code":"moderation_blocked"}}`, KindContentRejected},
		{400, `{"error":"bad size"}`, KindGeneric},
		{500, "", KindGeneric},
	}

	for _, tc := range tests {
		if got := classify(tc.status, tc.body); got != tc.want {
			t.Errorf("classify(%d, %q) = %s, want %s", tc.status, tc.body, got, tc.want)
		}
	}
}

// TestRetryStopsOnContentRejection tests that only transient failures repeat
func TestRetryStopsOnContentRejection(t *testing.T) {
	noSleep(t)

	tests := []struct {
		name      string
		err       *AIError
		wantCalls int
	}{
		{"quota", &AIError{Kind: KindQuotaExceeded, StatusCode: 429}, 4},
		{"server", &AIError{Kind: KindGeneric, StatusCode: 503}, 4},
		{"network", &AIError{Kind: KindGeneric}, 4},
		{"content", &AIError{Kind: KindContentRejected, StatusCode: 400}, 1},
		{"credential", &AIError{Kind: KindMissingCredential, StatusCode: 401}, 1},
		{"bad request", &AIError{Kind: KindGeneric, StatusCode: 400}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			_, err := withRetry(context.Background(), nopLog(), DefaultRetryPolicy, "test", func(context.Context) (int, error) {
				calls++
				return 0, tc.err
			})
			if err == nil {
				t.Fatal("Expected error")
			}
			if calls != tc.wantCalls {
				t.Errorf("Expected %d calls, got %d", tc.wantCalls, calls)
			}
		})
	}
}

// TestRetryHonoursRetryAfter tests the sleep duration
func TestRetryHonoursRetryAfter(t *testing.T) {
	var slept []time.Duration
	orig := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })

	calls := 0
	_, err := withRetry(context.Background(), nopLog(), DefaultRetryPolicy, "test", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &AIError{Kind: KindQuotaExceeded, StatusCode: 429, RetryAfter: 30 * time.Second}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("Expected one sleep, got %d", len(slept))
	}
	// Capped at ten seconds plus jitter
	if slept[0] > 12*time.Second || slept[0] < 8*time.Second {
		t.Errorf("Unexpected sleep %s", slept[0])
	}
}

// TestClaudeChat tests a round trip against a fake messages endpoint
func TestClaudeChat(t *testing.T) {
	var system string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if s, ok := body["system"].([]any); ok && len(s) > 0 {
			system, _ = s[0].(map[string]any)["text"].(string)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929",
			"content":[{"type":"text","text":"Hi friend!"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":5,"output_tokens":3}}`))
	}))
	defer server.Close()

	client := NewClaudeClient(testKey, nil, WithClaudeBaseURL(server.URL))
	reply, err := client.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "Hi friend!" {
		t.Errorf("Expected 'Hi friend!', got %q", reply)
	}
	if !strings.Contains(system, "Bubbles") {
		t.Errorf("Persona missing from system prompt: %q", system)
	}
}

// TestClaudeQuota tests that a 429 surfaces as a quota error
func TestClaudeQuota(t *testing.T) {
	noSleep(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewClaudeClient(testKey, nil,
		WithClaudeBaseURL(server.URL),
		WithClaudeRetry(RetryPolicy{MaxRetries: 2, Initial: time.Millisecond, Max: time.Millisecond}))

	_, err := client.WordBatch(context.Background(), "animals", nil)
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("Expected quota error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

// TestClaudeMissingKey tests that calls fail without contacting the API
func TestClaudeMissingKey(t *testing.T) {
	client := NewClaudeClient("undefined", nil)

	_, err := client.Chat(context.Background(), "hello")
	if !IsAIError(err) {
		t.Fatalf("Expected AIError, got %v", err)
	}
	if KindOf(err) != KindMissingCredential {
		t.Errorf("Expected missing credential, got %s", KindOf(err))
	}
}
