// Package vector defines the similarity-search collaborator and its
// implementations: an HTTP backend with circuit breaking and rate
// limiting, and an embedding-backed in-memory store for small corpora.
package vector

import (
	"context"

	"github.com/kgrail/kgrail/pkg/types"
)

// Client is the vector similarity-search collaborator. Search returns
// candidates with their base similarity set; implementations must not
// rank beyond similarity order.
type Client interface {
	Search(ctx context.Context, queryText string, topK int, docTypeFilter string) ([]types.ScoredChunk, error)
	Index(ctx context.Context, chunks []types.Chunk) error
	Close() error
}
