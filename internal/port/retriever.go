package port

import (
	"context"

	"carspire/internal/domain"
)

// Retriever finds the fragments most relevant to a query text.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]domain.ScoredFragment, error)
}
