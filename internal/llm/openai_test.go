package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChatNormalizesResponse(t *testing.T) {
	var gotReq openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hey there"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("test", srv.URL, "test-key", nil)
	resp, err := c.Chat(context.Background(), "gpt-4o-mini",
		[]Message{{Role: "user", Content: "hi"}},
		Options{MaxTokens: 200, JSONOnly: true},
	)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if resp.Text != "hey there" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("tokens = %d/%d, want 12/3", resp.InputTokens, resp.OutputTokens)
	}
	if gotReq.MaxTokens != 200 {
		t.Errorf("request max_tokens = %d", gotReq.MaxTokens)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("request response_format = %+v, want json_object", gotReq.ResponseFormat)
	}
}

func TestOpenAIChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient("test", srv.URL, "", nil)
	if _, err := c.Chat(context.Background(), "m", nil, Options{}); err == nil {
		t.Error("expected error on 503")
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("test", srv.URL, "", nil)
	if _, err := c.Chat(context.Background(), "m", nil, Options{}); err == nil {
		t.Error("expected error on empty choices")
	}
}

func TestSplitSystem(t *testing.T) {
	msgs, system := splitSystem([]Message{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "style notes"},
		{Role: "assistant", Content: "hi"},
	})

	if system != "persona\n\nstyle notes" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
}
