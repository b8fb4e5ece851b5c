// Package crossencoder is the optional query/passage reranking
// collaborator. An unreachable backend degrades to vector-only ranking;
// it never fails the request.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Reranker scores query/passage pairs. Scores are raw model logits.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// HTTPReranker calls an external cross-encoder scoring service.
type HTTPReranker struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewHTTPReranker returns a reranker for the service at baseURL.
func NewHTTPReranker(baseURL, model string, timeout time.Duration) *HTTPReranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReranker{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score implements Reranker. The returned slice is positionally aligned
// with passages.
func (r *HTTPReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: passages})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cross-encoder returned status %d", resp.StatusCode)
	}
	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode cross-encoder response: %w", err)
	}

	scores := make([]float64, len(passages))
	for _, result := range decoded.Results {
		if result.Index >= 0 && result.Index < len(scores) {
			scores[result.Index] = result.Score
		}
	}
	return scores, nil
}
