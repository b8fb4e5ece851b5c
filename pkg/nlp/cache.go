package nlp

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kgrail/kgrail/pkg/types"
)

// CachingExtractor memoizes extraction results by input text. Queries
// repeat often; the underlying model call does not need to.
type CachingExtractor struct {
	next  Extractor
	cache *gocache.Cache
}

// NewCachingExtractor wraps next with an expiring cache.
func NewCachingExtractor(next Extractor, ttl, cleanup time.Duration) *CachingExtractor {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = 30 * time.Minute
	}
	return &CachingExtractor{next: next, cache: gocache.New(ttl, cleanup)}
}

// Extract implements Extractor. Errors are not cached.
func (c *CachingExtractor) Extract(ctx context.Context, text string) (types.Extraction, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached.(types.Extraction), nil
	}
	extraction, err := c.next.Extract(ctx, text)
	if err != nil {
		return types.Extraction{}, err
	}
	c.cache.Set(text, extraction, gocache.DefaultExpiration)
	return extraction, nil
}
