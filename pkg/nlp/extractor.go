// Package nlp is the optional entity/keyphrase extraction collaborator.
// Absence of a backend never fails a request; callers receive empty
// enrichment instead.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kgrail/kgrail/pkg/types"
)

// Extractor extracts entities and keyphrases from text.
type Extractor interface {
	Extract(ctx context.Context, text string) (types.Extraction, error)
}

// Noop always returns empty enrichment. Used when no NLP backend is
// configured.
type Noop struct{}

// Extract implements Extractor.
func (Noop) Extract(context.Context, string) (types.Extraction, error) {
	return types.Extraction{}, nil
}

// HTTPExtractor calls an external NER service.
type HTTPExtractor struct {
	baseURL       string
	maxKeyphrases int
	http          *http.Client
}

// NewHTTPExtractor returns an extractor for the service at baseURL.
func NewHTTPExtractor(baseURL string, timeout time.Duration, maxKeyphrases int) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxKeyphrases <= 0 {
		maxKeyphrases = 10
	}
	return &HTTPExtractor{
		baseURL:       baseURL,
		maxKeyphrases: maxKeyphrases,
		http:          &http.Client{Timeout: timeout},
	}
}

type extractRequest struct {
	Text          string `json:"text"`
	MaxKeyphrases int    `json:"max_keyphrases"`
}

// Extract implements Extractor.
func (e *HTTPExtractor) Extract(ctx context.Context, text string) (types.Extraction, error) {
	body, err := json.Marshal(extractRequest{Text: text, MaxKeyphrases: e.maxKeyphrases})
	if err != nil {
		return types.Extraction{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return types.Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return types.Extraction{}, fmt.Errorf("nlp backend request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Extraction{}, fmt.Errorf("nlp backend returned status %d", resp.StatusCode)
	}
	var extraction types.Extraction
	if err := json.NewDecoder(resp.Body).Decode(&extraction); err != nil {
		return types.Extraction{}, fmt.Errorf("decode nlp response: %w", err)
	}
	return extraction, nil
}
