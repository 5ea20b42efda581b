// Package keyword provides lexical indexing of knowledge chunks. It backs
// chunk retrieval when no embedding model is available.
package keyword

import (
	"context"

	"github.com/carebook/carebook/internal/models"
)

// KeywordResult is one lexical search hit.
type KeywordResult struct {
	ID    string
	Score float64
}

// KeywordIndex indexes chunk content for full-text lookup.
type KeywordIndex interface {
	Index(ctx context.Context, chunk *models.KnowledgeChunk) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
