package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.25, -0.5}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "all-minilm")
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.25 || vec[1] != -0.5 {
		t.Errorf("vec = %v", vec)
	}
	if gotReq.Model != "all-minilm" || gotReq.Prompt != "hello" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestEmbed_EmptyString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float64, 384)})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "all-minilm")
	vec, err := c.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("empty string must not error: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("dims = %d", len(vec))
	}
}

func TestEmbed_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "all-minilm")
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestComplete(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{"response": " Customer cannot log in. "})
	}))
	defer srv.Close()

	c := NewGenerateClient(srv.URL, GenerationParams{Model: "llama3.1:8b", Temperature: 0.3, MaxTokens: 128})
	out, err := c.Complete(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The client returns the raw completion; stripping is the caller's job.
	if out != " Customer cannot log in. " {
		t.Errorf("out = %q", out)
	}
	if gotReq.Prompt != "the prompt" || gotReq.Stream {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Options.NumPredict != 128 {
		t.Errorf("num_predict = %d", gotReq.Options.NumPredict)
	}
}

func TestComplete_MissingCompletionField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Well-formed JSON, wrong shape.
		json.NewEncoder(w).Encode(map[string]any{"model": "llama3.1:8b", "done": true})
	}))
	defer srv.Close()

	c := NewGenerateClient(srv.URL, DefaultGenerationParams())
	_, err := c.Complete(context.Background(), "p")
	if !errors.Is(err, ErrNoCompletion) {
		t.Errorf("expected ErrNoCompletion, got %v", err)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewGenerateClient(srv.URL, DefaultGenerationParams())
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error")
	}
}

func TestComplete_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGenerateClient(srv.URL, DefaultGenerationParams())
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error")
	}
}
