// Package main implements the ticketlens API server: POST /api/summarize
// produces a one-line summary of a customer message grounded in the
// customer's prior ticket history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ticketlens/ticketlens/engine/retrieval"
	"github.com/ticketlens/ticketlens/engine/semantic"
	"github.com/ticketlens/ticketlens/engine/summarize"
	"github.com/ticketlens/ticketlens/pkg/config"
	"github.com/ticketlens/ticketlens/pkg/metrics"
	"github.com/ticketlens/ticketlens/pkg/mid"
	"github.com/ticketlens/ticketlens/pkg/ollama"
	"github.com/ticketlens/ticketlens/pkg/resilience"
)

var met = metrics.New()

var (
	mRequests = met.Counter("ticketlens_summarize_requests_total", "Summarize requests received")
	mFailures = met.Counter("ticketlens_summarize_failures_total", "Summarize requests failed")
	mDuration = met.Histogram("ticketlens_summarize_duration_seconds", "End-to-end summarize time", nil)
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	OllamaURL  string
	QdrantURL  string
	Collection string
	ModelFile  string
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "ticket-history"),
		ModelFile:  envOr("MODEL_CONFIG", "config.yaml"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modelCfg, err := config.Load(cfg.ModelFile)
	if err != nil {
		return err
	}

	// --- Connect to Qdrant (one pooled connection for the process lifetime) ---
	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Clients ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, modelCfg.Embedding.Model)
	completer := ollama.NewGenerateClient(cfg.OllamaURL, ollama.GenerationParams{
		Model:       modelCfg.Generation.Model,
		Temperature: modelCfg.Generation.Temperature,
		MaxTokens:   modelCfg.Generation.MaxTokens,
		Stop:        modelCfg.Generation.Stop,
	})

	// Dimension mismatch is a startup error, never a per-request one.
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := retrieval.VerifyDimensions(probeCtx, embedder, modelCfg.Embedding.Dimensions); err != nil {
		cancel()
		return err
	}
	cancel()
	logger.Info("embedder verified", "model", modelCfg.Embedding.Model, "dims", modelCfg.Embedding.Dimensions)

	// --- Services ---
	retriever := retrieval.New(embedder, store, retrieval.DefaultOptions(), logger)
	guarded := &breakerCompleter{
		inner:   completer,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
	svc := summarize.New(retriever, guarded, logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /api/summarize", handleSummarize(svc, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("ticketlens-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SummarizeRequest is the JSON body for POST /api/summarize.
type SummarizeRequest struct {
	Message string `json:"message"`
}

// SummarizeResponse is the JSON response for POST /api/summarize.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// summarizer is what the handler needs from the summarize service.
type summarizer interface {
	Summarize(ctx context.Context, message string) (string, error)
}

func handleSummarize(svc summarizer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mRequests.Inc()
		start := time.Now()

		var req SummarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "missing 'message' in request body")
			return
		}

		summary, err := svc.Summarize(r.Context(), req.Message)
		if err != nil {
			mFailures.Inc()
			logger.Error("summarize failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		mDuration.Since(start)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SummarizeResponse{Summary: summary})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- Adapters ---

// breakerCompleter runs completion calls through a circuit breaker so a
// failing model service sheds load instead of queueing it.
type breakerCompleter struct {
	inner   summarize.Completer
	breaker *resilience.Breaker
}

func (b *breakerCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := b.breaker.Do(func() error {
		var err error
		out, err = b.inner.Complete(ctx, prompt)
		return err
	})
	return out, err
}
