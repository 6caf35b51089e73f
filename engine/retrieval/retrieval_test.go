package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ticketlens/ticketlens/engine/semantic"
	"github.com/ticketlens/ticketlens/engine/ticket"
)

// --- mocks ---

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	return m.vec, m.err
}

type mockSearcher struct {
	results  []semantic.SearchResult
	err      error
	lastVec  []float32
	lastTopK int
}

func (m *mockSearcher) Search(_ context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error) {
	m.lastVec = embedding
	m.lastTopK = topK
	if topK < len(m.results) {
		return m.results[:topK], m.err
	}
	return m.results, m.err
}

func newService(embed Embedder, search Searcher) *Service {
	return New(embed, search, DefaultOptions(), nil)
}

// --- tests ---

func TestRetrieve_RankOrder(t *testing.T) {
	searcher := &mockSearcher{
		results: []semantic.SearchResult{
			{ID: "p1", Score: 0.9, Text: "cannot reset password", TicketID: "1"},
			{ID: "p2", Score: 0.7, Text: "login loop", TicketID: "2"},
			{ID: "p3", Score: 0.5, Text: "billing question", TicketID: "3"},
		},
	}
	svc := newService(&mockEmbedder{vec: []float32{0.1, 0.2}}, searcher)

	texts, err := svc.RetrieveTopK(context.Background(), "I can't reset my password", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"cannot reset password", "login loop", "billing question"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("texts = %v, want %v", texts, want)
	}
	if searcher.lastTopK != 3 {
		t.Errorf("topK = %d, want 3", searcher.lastTopK)
	}
}

func TestRetrieve_TopKBound(t *testing.T) {
	searcher := &mockSearcher{
		results: []semantic.SearchResult{
			{Text: "only one indexed"},
		},
	}
	svc := newService(&mockEmbedder{vec: []float32{0.1}}, searcher)

	// Fewer indexed tickets than topK: all are returned, no padding, no error.
	texts, err := svc.RetrieveTopK(context.Background(), "billing issue", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 1 {
		t.Errorf("expected 1 text, got %d", len(texts))
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	svc := newService(&mockEmbedder{vec: []float32{0.1}}, &mockSearcher{})

	texts, err := svc.RetrieveTopK(context.Background(), "billing issue", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("expected empty result, got %v", texts)
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	searcher := &mockSearcher{
		results: []semantic.SearchResult{
			{Text: "a"}, {Text: "b"},
		},
	}
	svc := newService(&mockEmbedder{vec: []float32{0.3}}, searcher)

	first, err := svc.RetrieveTopK(context.Background(), "same message", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.RetrieveTopK(context.Background(), "same message", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical calls diverged: %v vs %v", first, second)
	}
}

func TestRetrieve_InvalidTopK(t *testing.T) {
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := newService(embed, &mockSearcher{})

	for _, k := range []int{0, -1} {
		if _, err := svc.RetrieveTopK(context.Background(), "x", k); !errors.Is(err, ticket.ErrInvalidTopK) {
			t.Errorf("topK=%d: expected ErrInvalidTopK, got %v", k, err)
		}
	}
	if embed.calls != 0 {
		t.Error("invalid topK must be rejected before embedding")
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	svc := newService(&mockEmbedder{err: errors.New("model offline")}, &mockSearcher{})
	if _, err := svc.Retrieve(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetrieve_SearchErrorPropagates(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("index unreachable")}
	svc := newService(&mockEmbedder{vec: []float32{0.1}}, searcher)

	// No silent empty-context fallback.
	texts, err := svc.Retrieve(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if texts != nil {
		t.Errorf("expected nil texts on error, got %v", texts)
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	searcher := &mockSearcher{
		results: []semantic.SearchResult{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
	}
	svc := newService(&mockEmbedder{vec: []float32{0.1}}, searcher)

	texts, err := svc.Retrieve(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != DefaultOptions().TopK {
		t.Errorf("expected default topK results, got %d", len(texts))
	}
}

func TestVerifyDimensions(t *testing.T) {
	if err := VerifyDimensions(context.Background(), &mockEmbedder{vec: make([]float32, 384)}, 384); err != nil {
		t.Errorf("matching dims rejected: %v", err)
	}
	err := VerifyDimensions(context.Background(), &mockEmbedder{vec: make([]float32, 768)}, 384)
	if !errors.Is(err, ticket.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := VerifyDimensions(context.Background(), &mockEmbedder{err: errors.New("down")}, 384); err == nil {
		t.Error("expected probe error")
	}
}
