// Command ingest bulk-loads a ticket-history file into Qdrant and can stay
// running as a NATS consumer for streamed tickets.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ticketlens/ticketlens/engine/ingest"
	"github.com/ticketlens/ticketlens/engine/retrieval"
	"github.com/ticketlens/ticketlens/engine/semantic"
	"github.com/ticketlens/ticketlens/engine/ticket"
	"github.com/ticketlens/ticketlens/pkg/config"
	"github.com/ticketlens/ticketlens/pkg/metrics"
	"github.com/ticketlens/ticketlens/pkg/natsutil"
	"github.com/ticketlens/ticketlens/pkg/ollama"
)

var met = metrics.New()

var (
	mBulkIndexed  = met.Counter(metrics.WithLabels("ticketlens_ingest_tickets_total", "source", "bulk"), "Tickets indexed")
	mIngestErrors = met.Counter("ticketlens_ingest_errors_total", "Ingestion errors")
	mDeadLetters  = met.Counter("ticketlens_ingest_dead_letters_total", "Tickets sent to the DLQ")
	mConsumerUp   = met.Gauge("ticketlens_ingest_consumer_up", "1 while the NATS consumer is running")
	mBulkDuration = met.Histogram("ticketlens_ingest_bulk_duration_seconds", "Bulk load time", nil)
)

func main() {
	var (
		historyFile = flag.String("file", "ticket_history.json", "ticket history JSON file")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "ticket-history", "Qdrant collection name")
		modelFile   = flag.String("config", "config.yaml", "model configuration file")
		natsURL     = flag.String("nats", "", "NATS URL; when set, keep consuming streamed tickets")
		rebuild     = flag.Bool("rebuild", false, "drop and recreate the collection before loading")
		metricsPort = flag.Int("metrics-port", 9091, "metrics HTTP port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met.ServeAsync(*metricsPort)

	modelCfg, err := config.Load(*modelFile)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// Connect Qdrant and make sure the collection exists. Re-running against
	// an existing collection is safe.
	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if *rebuild {
		if err := store.DeleteCollection(ctx); err != nil {
			log.Warn("collection drop failed, continuing", "error", err)
		} else {
			log.Info("collection dropped for rebuild", "collection", *collection)
		}
	}
	if err := store.EnsureCollection(ctx, modelCfg.Embedding.Dimensions); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("collection ready", "collection", *collection, "dims", modelCfg.Embedding.Dimensions)

	embedder := ollama.NewEmbedClient(*ollamaURL, modelCfg.Embedding.Model)
	if err := retrieval.VerifyDimensions(ctx, embedder, modelCfg.Embedding.Dimensions); err != nil {
		log.Error("embedder dimension check failed", "error", err)
		os.Exit(1)
	}

	deps := ingest.Deps{
		Embedder: embedder,
		Store:    store,
		Logger:   log,
	}

	// Bulk load the history file if present.
	if data, err := os.ReadFile(*historyFile); err == nil {
		tickets, err := ticket.ReadHistory(data)
		if err != nil {
			log.Error("history parse failed", "file", *historyFile, "error", err)
			os.Exit(1)
		}
		start := time.Now()
		count, err := ingest.BulkLoad(ctx, deps, tickets)
		if err != nil {
			mIngestErrors.Inc()
			log.Error("bulk load failed", "error", err)
			os.Exit(1)
		}
		mBulkDuration.Since(start)
		mBulkIndexed.Add(int64(count))
		log.Info("history loaded", "file", *historyFile, "indexed", count)
	} else if !os.IsNotExist(err) {
		log.Error("history read failed", "file", *historyFile, "error", err)
		os.Exit(1)
	}

	if *natsURL == "" {
		return
	}

	// Consumer mode: stay up and index streamed tickets.
	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		log.Error("consumer start failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	// Watch the DLQ so dead-lettered tickets show up in metrics.
	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, m ingest.DLQMessage) {
		mDeadLetters.Inc()
		log.Warn("ticket dead-lettered", "ticket_id", m.Ticket.ID, "error", m.Error, "retries", m.Retries)
	})
	if err != nil {
		log.Error("dlq subscribe failed", "error", err)
		os.Exit(1)
	}
	defer dlqSub.Unsubscribe()

	mConsumerUp.Set(1)
	log.Info("consuming tickets", "subject", ingest.IngestSubject)

	<-ctx.Done()
	mConsumerUp.Set(0)
	log.Info("shutting down")
}
