package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/ticketlens/ticketlens/engine/ticket"
	"github.com/ticketlens/ticketlens/pkg/natsutil"
)

const retryHeader = "X-Retry-Count"

// DLQMessage is published to the dead letter queue when a ticket exhausts
// its retry budget.
type DLQMessage struct {
	Ticket  ticket.Ticket `json:"ticket"`
	Error   string        `json:"error"`
	Retries int           `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs each ticket
// through the pipeline. Failed tickets are re-published with an incremented
// retry header and dead-lettered after MaxRetries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	return nc.Subscribe(IngestSubject, newHandler(nc, deps))
}

// newHandler builds the per-message consumer callback.
func newHandler(pub natsutil.Publisher, deps Deps) nats.MsgHandler {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return func(msg *nats.Msg) {
		var t ticket.Ticket
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		result := pipeline(ctx, t)
		if result.IsErr() {
			_, cause := result.Unwrap()
			pipeErr := &ticket.IngestError{TicketID: t.ID, Wrapped: cause}
			retries++
			log.Error("ingest: pipeline failed",
				"ticket_id", t.ID,
				"error", pipeErr,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := DLQMessage{Ticket: t, Error: pipeErr.Error(), Retries: retries}
				if err := natsutil.Publish(ctx, pub, DLQSubject, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}

			retryMsg := nats.NewMsg(IngestSubject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set(retryHeader, strconv.Itoa(retries))
			if err := pub.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		id, _ := result.Unwrap()
		log.Info("ingest: indexed", "ticket_id", id)
	}
}
