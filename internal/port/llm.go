package port

import (
	"context"

	"carspire/internal/domain"
)

// LLM represents a language model for chat completion.
type LLM interface {
	// Complete generates the assistant reply for the given messages.
	Complete(ctx context.Context, messages []domain.Message) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
