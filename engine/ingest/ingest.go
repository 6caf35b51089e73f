// Package ingest loads tickets from the ticket-history source into the
// vector store: validate, embed, upsert.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ticketlens/ticketlens/engine/retrieval"
	"github.com/ticketlens/ticketlens/engine/semantic"
	"github.com/ticketlens/ticketlens/engine/ticket"
	"github.com/ticketlens/ticketlens/pkg/fn"
)

const (
	// IngestSubject is the NATS subject for streamed tickets.
	IngestSubject = "tickets.ingest"
	// DLQSubject receives tickets that exhausted their retry budget.
	DLQSubject = "tickets.ingest.dlq"
	// MaxRetries before a ticket is dead-lettered.
	MaxRetries = 3
	// EmbedWorkers bounds concurrent embedding calls during bulk loads.
	EmbedWorkers = 8
	// UpsertBatchSize is the number of points per Qdrant write.
	UpsertBatchSize = 256
)

// Upserter is the slice of the vector store the pipeline writes through.
type Upserter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder retrieval.Embedder
	Store    Upserter
	Logger   *slog.Logger
	// Retry bounds transient embedding failures during bulk loads. The zero
	// value means fn.DefaultRetry. Streamed tickets are not retried here;
	// the consumer re-publishes them instead.
	Retry fn.RetryOpts
}

// EmbeddedTicket is a validated ticket with its embedding.
type EmbeddedTicket struct {
	ticket.Ticket
	Embedding []float32
}

// PointID derives a deterministic UUID from a ticket id, so re-ingesting the
// same ticket overwrites its point instead of duplicating it.
func PointID(ticketID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ticketlens/ticket/"+ticketID)).String()
}

// Validate rejects tickets with empty ids or text.
var Validate fn.Stage[ticket.Ticket, ticket.Ticket] = func(_ context.Context, t ticket.Ticket) fn.Result[ticket.Ticket] {
	if err := ticket.Validate(t); err != nil {
		return fn.Err[ticket.Ticket](err)
	}
	return fn.Ok(t)
}

// NewEmbed creates the embedding stage.
func NewEmbed(embed retrieval.Embedder) fn.Stage[ticket.Ticket, EmbeddedTicket] {
	return func(ctx context.Context, t ticket.Ticket) fn.Result[EmbeddedTicket] {
		vec, err := embed.Embed(ctx, t.Text)
		if err != nil {
			return fn.Errf[EmbeddedTicket]("embed: %w", err)
		}
		return fn.Ok(EmbeddedTicket{Ticket: t, Embedding: vec})
	}
}

// NewStore creates the upsert stage. The stage result is the ticket id.
func NewStore(store Upserter) fn.Stage[EmbeddedTicket, string] {
	return func(ctx context.Context, et EmbeddedTicket) fn.Result[string] {
		rec := semantic.VectorRecord{
			ID:        PointID(et.ID),
			TicketID:  et.ID,
			Text:      et.Text,
			Embedding: et.Embedding,
		}
		if err := store.Upsert(ctx, []semantic.VectorRecord{rec}); err != nil {
			return fn.Errf[string]("upsert: %w", err)
		}
		return fn.Ok(et.ID)
	}
}

// NewPipeline wires validate, embed, and store into the per-ticket pipeline
// used by the streaming consumer.
func NewPipeline(deps Deps) fn.Stage[ticket.Ticket, string] {
	validated := fn.TracedStage("ingest.validate", Validate)
	embedded := fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder))
	stored := fn.TracedStage("ingest.store", NewStore(deps.Store))
	return fn.Then(fn.Then(validated, embedded), stored)
}

// BulkLoad ingests a ticket-history batch: invalid records are skipped with a
// warning, the rest are embedded with bounded concurrency and upserted in
// batches. Returns the number of tickets indexed. An embedding or store
// failure aborts the load.
func BulkLoad(ctx context.Context, deps Deps, tickets []ticket.Ticket) (int, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	valid := tickets[:0:0]
	for _, t := range tickets {
		if err := ticket.Validate(t); err != nil {
			log.Warn("skipping invalid ticket", "ticket_id", t.ID, "error", err)
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	retry := deps.Retry
	if retry.MaxAttempts == 0 {
		retry = fn.DefaultRetry
	}
	embedStage := fn.RetryStage(retry, NewEmbed(deps.Embedder))
	results := fn.ParMapResult(valid, EmbedWorkers, func(t ticket.Ticket) fn.Result[EmbeddedTicket] {
		return embedStage(ctx, t)
	})
	embedded, err := fn.Collect(results).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("ingest: bulk embed: %w", err)
	}

	records := fn.Map(embedded, func(et EmbeddedTicket) semantic.VectorRecord {
		return semantic.VectorRecord{
			ID:        PointID(et.ID),
			TicketID:  et.ID,
			Text:      et.Text,
			Embedding: et.Embedding,
		}
	})
	for _, batch := range fn.Chunk(records, UpsertBatchSize) {
		if err := deps.Store.Upsert(ctx, batch); err != nil {
			return 0, fmt.Errorf("ingest: bulk upsert: %w", err)
		}
	}

	log.Info("bulk load done", "indexed", len(records), "skipped", len(tickets)-len(valid))
	return len(records), nil
}
