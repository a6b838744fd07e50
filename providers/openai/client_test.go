package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quibblebot/quibble/llm"
)

func TestChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path mismatch: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header mismatch: got %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("model mismatch: got %v", req["model"])
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hi there"}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 5*time.Second)
	res, err := c.Chat(context.Background(), llm.Request{
		Model:    "gpt-4o-mini",
		Messages: []llm.Message{llm.Text(llm.RoleUser, "hello")},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "hi there" {
		t.Fatalf("text mismatch: got %q want %q", res.Text, "hi there")
	}
	if res.Usage.TotalTokens != 5 {
		t.Fatalf("usage mismatch: got %d want 5", res.Usage.TotalTokens)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "nope", 5*time.Second)
	_, err := c.Chat(context.Background(), llm.Request{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("error mismatch: got %v", err)
	}
}

func TestChatStreamConcatenatesDeltas(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["stream"] != true {
			t.Errorf("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var deltas []string
	c := New(srv.URL, "k", 5*time.Second)
	res, err := c.ChatStream(context.Background(), llm.Request{Model: "m"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if res.Text != "Hello world" {
		t.Fatalf("full text mismatch: got %q want %q", res.Text, "Hello world")
	}
	if len(deltas) != 3 {
		t.Fatalf("delta count mismatch: got %d want 3 (%v)", len(deltas), deltas)
	}
}

func TestChatStreamHandlerErrorAborts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "k", 5*time.Second)
	wantErr := fmt.Errorf("edit failed")
	_, err := c.ChatStream(context.Background(), llm.Request{Model: "m"}, func(d string) error {
		return wantErr
	})
	if err == nil || !strings.Contains(err.Error(), "edit failed") {
		t.Fatalf("error mismatch: got %v", err)
	}
}

func TestChatStreamTruncatedStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No [DONE] terminator.
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL, "k", 5*time.Second)
	_, err := c.ChatStream(context.Background(), llm.Request{Model: "m"}, nil)
	if err == nil || !strings.Contains(err.Error(), "[DONE]") {
		t.Fatalf("error mismatch: got %v", err)
	}
}

func TestChatStreamHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", 5*time.Second)
	_, err := c.ChatStream(context.Background(), llm.Request{Model: "m"}, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error mismatch: got %v", err)
	}
}
