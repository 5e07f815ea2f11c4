package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScriptedProviderPopsInOrder(t *testing.T) {
	p := NewScriptedProvider("first", "second")

	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "first" {
		t.Fatalf("expected first response, got %q", resp.Content)
	}

	resp, _ = p.Chat(context.Background(), ChatRequest{})
	if resp.Content != "second" {
		t.Fatalf("expected second response, got %q", resp.Content)
	}

	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected error when responses are exhausted")
	}
	if p.CallCount != 3 {
		t.Fatalf("expected 3 calls, got %d", p.CallCount)
	}
}

func TestOllamaChatMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("stream should be disabled")
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message: Message{
				Role:    RoleAssistant,
				Content: "hello",
				ToolCalls: []ToolCall{{
					Type:     ToolTypeFunction,
					Function: FunctionCall{Name: "search", Arguments: `{"query":"go"}`},
				}},
			},
			Done:            true,
			EvalCount:       5,
			PromptEvalCount: 7,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "search" {
		t.Fatalf("tool calls not mapped: %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Fatalf("usage not mapped, got %+v", resp.Usage)
	}
}

func TestOllamaChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewOllama(srv.URL).Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatalf("expected error on non-200 status")
	}
}
