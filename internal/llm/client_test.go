package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Answer(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %s, want Bearer test-key", auth)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		gotPrompt = req.Messages[0].Content

		_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []chatChoice{
			{Message: ChatMessage{Role: "assistant", Content: "  An IP address identifies a host.\n"}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	answer, err := client.Answer(context.Background(), "IP addressing assigns addresses.", "what is an IP address")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "An IP address identifies a host." {
		t.Errorf("Answer() = %q, want trimmed model output", answer)
	}

	// The prompt must carry both the retrieved context and the question.
	if !strings.Contains(gotPrompt, "IP addressing assigns addresses.") {
		t.Error("prompt missing context text")
	}
	if !strings.Contains(gotPrompt, "what is an IP address") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(gotPrompt, `"I don't know"`) {
		t.Error("prompt missing the abstention instruction")
	}
}

func TestClient_Answer_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	if _, err := client.Answer(context.Background(), "ctx", "q"); err == nil {
		t.Error("Answer() expected error when no choices returned")
	}
}

func TestClient_Answer_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	if _, err := client.Answer(context.Background(), "ctx", "q"); err == nil {
		t.Error("Answer() expected error for non-200 status")
	}
}
