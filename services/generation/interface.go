// Package generation defines the client interface for the remote
// text-completion service.
package generation

import (
	"context"

	"github.com/upb/rag-chat/models"
)

// Client wraps a completion service. Both calls block until the service
// responds; callers wanting bounded latency impose a context deadline.
//
// Failure policy: no retries. Network errors, malformed replies, and non-2xx
// statuses all come back as a GenerationResult with Error populated and the
// fallback response text, so the happy path and the logging path stay
// well-formed.
type Client interface {
	// Invoke sends a flat single-turn prompt.
	Invoke(ctx context.Context, prompt string) *models.GenerationResult

	// InvokeChat sends role-tagged messages for chat-style front-ends.
	InvokeChat(ctx context.Context, messages []models.ChatMessage) *models.GenerationResult
}
