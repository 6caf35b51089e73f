// Package summarize orchestrates the request path: retrieve prior-ticket
// context, assemble the prompt, and call the completion service.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ticketlens/ticketlens/engine/prompt"
)

// Retriever returns ranked prior-ticket texts for a message.
type Retriever interface {
	Retrieve(ctx context.Context, message string) ([]string, error)
}

// Completer is the external text-completion service: one prompt in, one
// completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service runs the summarization pipeline. Dependencies are injected; the
// composition root owns their lifecycle.
type Service struct {
	retrieve Retriever
	complete Completer
	logger   *slog.Logger
}

// New creates a summarize Service.
func New(retrieve Retriever, complete Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{retrieve: retrieve, complete: complete, logger: logger}
}

// Summarize produces a one-line summary of the customer's issue, informed by
// their prior ticket history. A retrieval failure is returned as-is rather
// than degraded to an empty-context summary, since that would silently change
// what the summary means. The one-line shape is requested from the model, not
// enforced locally; the completion is only stripped of surrounding whitespace.
func (s *Service) Summarize(ctx context.Context, message string) (string, error) {
	contextTexts, err := s.retrieve.Retrieve(ctx, message)
	if err != nil {
		return "", fmt.Errorf("summarize: retrieve context: %w", err)
	}
	s.logger.Info("context retrieved", "tickets", len(contextTexts), "message_len", len(message))

	p := prompt.Assemble(contextTexts, message)

	out, err := s.complete.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("summarize: completion: %w", err)
	}
	return strings.TrimSpace(out), nil
}
