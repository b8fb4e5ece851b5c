package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kgrail/kgrail/pkg/types"
)

// EmbeddedStore is an in-memory vector store backed by an OpenAI-compatible
// embedding endpoint. Suitable for small corpora; search is brute-force
// cosine over all indexed chunks.
type EmbeddedStore struct {
	client *openai.Client
	model  openai.EmbeddingModel

	mu      sync.RWMutex
	chunks  []types.Chunk
	vectors [][]float32
}

// EmbeddedStoreConfig configures the embedding backend.
type EmbeddedStoreConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewEmbeddedStore returns a store using the configured embedding model
// (text-embedding-3-small when unset).
func NewEmbeddedStore(cfg EmbeddedStoreConfig) (*EmbeddedStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}
	return &EmbeddedStore{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Index embeds and stores chunks. Re-indexing a chunk id replaces it.
func (s *EmbeddedStore) Index(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = c.Content
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: s.model,
	})
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(resp.Data) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(resp.Data), len(chunks))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]int, len(s.chunks))
	for i, c := range s.chunks {
		existing[c.ChunkID] = i
	}
	for i, c := range chunks {
		if at, ok := existing[c.ChunkID]; ok {
			s.chunks[at] = c
			s.vectors[at] = resp.Data[i].Embedding
			continue
		}
		s.chunks = append(s.chunks, c)
		s.vectors = append(s.vectors, resp.Data[i].Embedding)
	}
	return nil
}

// Search implements Client with brute-force cosine similarity.
func (s *EmbeddedStore) Search(ctx context.Context, queryText string, topK int, docTypeFilter string) ([]types.ScoredChunk, error) {
	if topK <= 0 {
		topK = 10
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{queryText},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding backend returned no vectors")
	}
	queryVec := resp.Data[0].Embedding

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ScoredChunk
	for i, c := range s.chunks {
		if docTypeFilter != "" && c.DocType != docTypeFilter {
			continue
		}
		out = append(out, types.ScoredChunk{
			Chunk:      c,
			Similarity: cosine(queryVec, s.vectors[i]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Close implements Client.
func (s *EmbeddedStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
