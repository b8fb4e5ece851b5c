package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kgrail/kgrail/pkg/types"
)

// HTTPClient talks to an external vector search service.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithRateLimit bounds outgoing requests per second.
func WithRateLimit(rps float64, burst int) HTTPClientOption {
	return func(c *HTTPClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewHTTPClient returns a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Query         string `json:"query"`
	TopK          int    `json:"top_k"`
	DocTypeFilter string `json:"doc_type_filter,omitempty"`
}

type searchResponse struct {
	Results []searchRow `json:"results"`
}

type searchRow struct {
	types.Chunk
	Similarity float64 `json:"similarity"`
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, queryText string, topK int, docTypeFilter string) ([]types.ScoredChunk, error) {
	var resp searchResponse
	err := c.post(ctx, "/search", searchRequest{Query: queryText, TopK: topK, DocTypeFilter: docTypeFilter}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]types.ScoredChunk, 0, len(resp.Results))
	for _, row := range resp.Results {
		out = append(out, types.ScoredChunk{Chunk: row.Chunk, Similarity: row.Similarity})
	}
	return out, nil
}

type indexRequest struct {
	Chunks []types.Chunk `json:"chunks"`
}

// Index implements Client.
func (c *HTTPClient) Index(ctx context.Context, chunks []types.Chunk) error {
	return c.post(ctx, "/index", indexRequest{Chunks: chunks}, nil)
}

// Close implements Client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vector backend request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vector backend returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode vector backend response: %w", err)
	}
	return nil
}
