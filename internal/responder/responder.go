// Package responder turns a user query into reply text, augmenting the
// prompt with knowledge retrieved from the store. The generation strategy is
// injected at construction: provider-backed for assistant deployments,
// rule-based for converter deployments. The choice is fixed for the life of
// the process, never per message.
package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxbot/voxbot/internal/store"
)

// contextLimit bounds how many knowledge entries feed one prompt.
const contextLimit = 3

// systemPrompt is the fixed instruction sent with every provider-backed
// generation.
const systemPrompt = `You are an AI assistant with expertise in artificial intelligence. You have access to a knowledge database about AI topics.

When answering questions:
1. Use the provided knowledge base information when relevant
2. Provide accurate, helpful, and informative responses
3. If the knowledge base doesn't contain relevant information, use your general AI knowledge
4. Keep responses concise but comprehensive
5. Be conversational and friendly

Always cite sources when possible and acknowledge when information comes from the knowledge base.`

// TextGenerator is the text-generation provider contract.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Strategy produces a reply from a query and an optional knowledge digest.
// Implementations must not fail: provider errors degrade to an apology.
type Strategy interface {
	Name() string
	Respond(ctx context.Context, query, knowledge string) string
}

// Responder is the knowledge-retrieval-augmented response generator.
type Responder struct {
	store    store.Store
	strategy Strategy
	logger   *slog.Logger
}

// New creates a Responder with the given strategy.
func New(st store.Store, strategy Strategy, logger *slog.Logger) *Responder {
	return &Responder{store: st, strategy: strategy, logger: logger}
}

// RetrieveContext searches the store for entries relevant to query and
// formats them as a digest. It returns the empty string when nothing
// matches, which callers treat as "no context available".
func (r *Responder) RetrieveContext(ctx context.Context, query string) (string, error) {
	entries, err := r.store.SearchKnowledge(ctx, query, contextLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Relevant AI knowledge:\n\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "Title: %s\n", entry.Title)
		fmt.Fprintf(&b, "Category: %s\n", entry.Category)
		fmt.Fprintf(&b, "Content: %s\n", entry.Content)
		fmt.Fprintf(&b, "Tags: %s\n", formatTags(entry.Tags))
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return b.String(), nil
}

// GenerateResponse produces a reply for query. When userID is non-empty and
// the reply is non-empty, the exchange is persisted before returning. Storage
// failures propagate; provider failures never do.
func (r *Responder) GenerateResponse(ctx context.Context, query, userID string) (string, error) {
	knowledge, err := r.RetrieveContext(ctx, query)
	if err != nil {
		return "", err
	}

	answer := r.strategy.Respond(ctx, query, knowledge)

	if userID != "" && answer != "" {
		if err := r.store.SaveConversation(ctx, userID, query, answer); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "None"
	}
	return strings.Join(tags, ", ")
}

// ProviderStrategy generates replies through an external text-generation
// provider. A failed call yields a short apology instead of an error: a chat
// reply never hard-fails.
type ProviderStrategy struct {
	generator TextGenerator
	logger    *slog.Logger
}

// NewProviderStrategy creates a provider-backed strategy.
func NewProviderStrategy(generator TextGenerator, logger *slog.Logger) *ProviderStrategy {
	return &ProviderStrategy{generator: generator, logger: logger}
}

// Name returns the strategy name.
func (s *ProviderStrategy) Name() string { return "provider" }

// Respond builds the composite prompt and returns the provider's output
// verbatim. No retries: a single failure degrades to the apology reply.
func (s *ProviderStrategy) Respond(ctx context.Context, query, knowledge string) string {
	var userPrompt string
	if knowledge != "" {
		userPrompt = fmt.Sprintf("Context from knowledge base:\n%s\n\nUser question: %s", knowledge, query)
	} else {
		userPrompt = fmt.Sprintf("User question: %s", query)
	}

	answer, err := s.generator.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("text generation failed", "error", err)
		}
		return apologyFor(err)
	}
	return answer
}

// apologyFor maps a provider failure to a short, non-technical user-facing
// reply. The full error goes to the logs only.
func apologyFor(err error) string {
	reason := "the answer service did not respond"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "the answer service took too long"
	}
	return fmt.Sprintf("I apologize, but I encountered a problem while processing your request: %s. Please try again.", reason)
}
