package ticket

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds surfaced to the boundary layer.
var (
	// ErrDimensionMismatch means the embedder's output dimension does not
	// match the collection schema. Detected once at startup, fatal.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrCollectionMissing means a query was issued against a collection
	// that does not exist. Never treated as an empty result.
	ErrCollectionMissing = errors.New("collection does not exist")
	// ErrInvalidTopK means a retrieval was requested with top_k <= 0.
	ErrInvalidTopK = errors.New("top_k must be a positive integer")
)

// IngestError wraps a per-ticket ingestion failure with the ticket id.
type IngestError struct {
	TicketID string
	Wrapped  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest: ticket %s: %s", e.TicketID, e.Wrapped)
}

func (e *IngestError) Unwrap() error { return e.Wrapped }
