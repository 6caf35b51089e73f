// Package retrieval embeds an incoming message and returns the texts of the
// nearest prior tickets, ranked nearest-first.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ticketlens/ticketlens/engine/semantic"
	"github.com/ticketlens/ticketlens/engine/ticket"
)

// Embedder maps text to a fixed-dimension dense vector. Implementations must
// be deterministic for a fixed underlying model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts k-NN search over the vector store.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Options configures the retrieval pipeline.
type Options struct {
	// TopK is the default number of tickets returned by Retrieve.
	TopK int
	// SearchTimeout bounds the vector store query.
	SearchTimeout time.Duration
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		TopK:          3,
		SearchTimeout: 5 * time.Second,
	}
}

// Service is the retrieval pipeline. Construct one per process and share it;
// it holds no per-request state.
type Service struct {
	embed  Embedder
	search Searcher
	opts   Options
	logger *slog.Logger
}

// New creates a retrieval Service.
func New(embed Embedder, search Searcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embed: embed, search: search, opts: opts, logger: logger}
}

// Retrieve returns the texts of the configured default number of nearest
// tickets for the message.
func (s *Service) Retrieve(ctx context.Context, message string) ([]string, error) {
	return s.RetrieveTopK(ctx, message, s.opts.TopK)
}

// RetrieveTopK returns up to topK ticket texts nearest to the message,
// nearest-first, without deduplication. topK must be positive; zero or
// negative values are rejected rather than delegated to the store. Fewer
// than topK indexed tickets yield a shorter slice, never an error.
func (s *Service) RetrieveTopK(ctx context.Context, message string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("retrieval: %w (got %d)", ticket.ErrInvalidTopK, topK)
	}

	embedding, err := s.embed.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	results, err := s.search.Search(searchCtx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}
	s.logger.Debug("retrieval done", "top_k", topK, "results", len(results))

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts, nil
}

// VerifyDimensions embeds a probe string and checks the output dimension
// against the collection schema. Called once at startup; a mismatch is a
// fatal configuration error, never a per-request one.
func VerifyDimensions(ctx context.Context, embed Embedder, dims int) error {
	vec, err := embed.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("retrieval: dimension probe: %w", err)
	}
	if len(vec) != dims {
		return fmt.Errorf("retrieval: embedder produced %d dims, collection expects %d: %w",
			len(vec), dims, ticket.ErrDimensionMismatch)
	}
	return nil
}
