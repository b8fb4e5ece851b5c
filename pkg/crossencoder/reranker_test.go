package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRerankerScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Documents, 2)

		// Out-of-order results must land at their passage index.
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "relevance_score": 2.5},
				{"index": 0, "relevance_score": -1.0},
			},
		})
	}))
	defer server.Close()

	r := NewHTTPReranker(server.URL, "reranker-v2", time.Second)
	scores, err := r.Score(context.Background(), "query", []string{"passage a", "passage b"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, -1.0, scores[0], 1e-9)
	assert.InDelta(t, 2.5, scores[1], 1e-9)
}

func TestHTTPRerankerEmptyPassages(t *testing.T) {
	r := NewHTTPReranker("http://unused", "", time.Second)
	scores, err := r.Score(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestHTTPRerankerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPReranker(server.URL, "", time.Second).Score(context.Background(), "q", []string{"p"})
	require.Error(t, err)
}
