package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClient_Invoke(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	out, err := client.Invoke(context.Background(), Request{
		SystemPrompt: "You are an assistant.",
		Model:        "gpt-4o-mini",
		Temperature:  0.7,
		UserText:     "hi",
		MaxTokens:    1024,
	})
	if err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("Expected output 'hello', got %q", out)
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Errorf("Unexpected messages: %+v", got.Messages)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("Expected max_tokens 1024, got %d", got.MaxTokens)
	}
}

func TestOpenAIClient_Invoke_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Config{BaseURL: srv.URL})
	_, err := client.Invoke(context.Background(), Request{Model: "gpt-4o-mini", UserText: "hi"})
	if err == nil {
		t.Fatal("Expected error for non-200 response")
	}
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected error to wrap ErrUpstream, got %v", err)
	}
}

func TestOpenAIClient_Invoke_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(Config{BaseURL: srv.URL})
	_, err := client.Invoke(context.Background(), Request{Model: "gpt-4o-mini", UserText: "hi"})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream for empty choices, got %v", err)
	}
}

func TestOpenAIClient_Invoke_TransportError(t *testing.T) {
	// Point at a closed server to force a transport failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewOpenAIClient(Config{BaseURL: srv.URL})
	_, err := client.Invoke(context.Background(), Request{Model: "gpt-4o-mini", UserText: "hi"})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream for transport error, got %v", err)
	}
}
