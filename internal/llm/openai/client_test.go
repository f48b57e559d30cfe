package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/llm"
)

type recorded struct {
	mu       sync.Mutex
	messages [][]map[string]any
}

func fakeOpenAI(t *testing.T, status int, content string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if rec != nil {
			rec.mu.Lock()
			rec.messages = append(rec.messages, body.Messages)
			rec.mu.Unlock()
		}
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: baseURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestExplainOK(t *testing.T) {
	rec := &recorded{}
	srv := fakeOpenAI(t, http.StatusOK, `{"explanation":"Cells are\nsmall.","examples":["bacteria"]}`, rec)
	c := newTestClient(t, srv.URL)

	got, err := c.Explain(context.Background(), llm.ExplainRequest{UnitIndex: 0, Text: "Cells"})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "Cells are small. Examples: bacteria" {
		t.Fatalf("Explain = %q", got)
	}
}

func TestExplainRequestsAreStateless(t *testing.T) {
	rec := &recorded{}
	srv := fakeOpenAI(t, http.StatusOK, `{"explanation":"ok"}`, rec)
	c := newTestClient(t, srv.URL)

	for i, text := range []string{"first slide", "second slide"} {
		if _, err := c.Explain(context.Background(), llm.ExplainRequest{UnitIndex: i, Text: text}); err != nil {
			t.Fatalf("Explain: %v", err)
		}
	}
	if len(rec.messages) != 2 {
		t.Fatalf("requests = %d", len(rec.messages))
	}
	if len(rec.messages[0]) != len(rec.messages[1]) {
		t.Fatalf("message history grew between requests: %d vs %d", len(rec.messages[0]), len(rec.messages[1]))
	}
	last := rec.messages[1][len(rec.messages[1])-1]["content"].(string)
	if strings.Contains(last, "first slide") || !strings.Contains(last, "second slide") {
		t.Fatalf("second request leaked earlier content: %q", last)
	}
}

func TestExplainSchemaMismatchIsTransformError(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusOK, `{"summary":"wrong shape"}`, nil)
	c := newTestClient(t, srv.URL)

	_, err := c.Explain(context.Background(), llm.ExplainRequest{Text: "x"})
	if !errors.Is(err, common.ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
}

func TestExplainHTTPErrorIsTransformError(t *testing.T) {
	srv := fakeOpenAI(t, http.StatusTooManyRequests, `{}`, nil)
	c := newTestClient(t, srv.URL)

	_, err := c.Explain(context.Background(), llm.ExplainRequest{Text: "x"})
	if !errors.Is(err, common.ErrTransform) {
		t.Fatalf("expected ErrTransform, got %v", err)
	}
	var se *llm.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestUserPromptTruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes; 6000 is a multiple of 3, so offset by one ASCII byte.
	text := "x" + strings.Repeat("→", maxUnitChars)
	prompt := buildUserPrompt(llm.ExplainRequest{UnitIndex: 0, Text: text})
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt is not valid UTF-8")
	}
	body := strings.TrimPrefix(prompt, "Slide 1:\n")
	if len(body) > maxUnitChars || len(body) < maxUnitChars-2 {
		t.Fatalf("truncated body is %d bytes", len(body))
	}
	if got := truncate("short", maxUnitChars); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
}
