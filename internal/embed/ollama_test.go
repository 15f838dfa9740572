package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OllamaEmbedder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	embedder := NewOllamaEmbedder(config.EmbedderConfig{
		BaseURL:     server.URL,
		Model:       "bge-m3",
		TimeoutSecs: 5,
	}, 4)
	return server, embedder
}

func TestOllamaEmbedderReturnsVector(t *testing.T) {
	_, embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)
		assert.Equal(t, []string{"some text"}, req.Input)
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2, 0.3, 0.4}}})
	})

	vec, err := embedder.EmbedQuery(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vec)
}

func TestOllamaEmbedderBackendError(t *testing.T) {
	_, embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`model not loaded`))
	})

	_, err := embedder.EmbedQuery(context.Background(), "some text")
	require.ErrorIs(t, err, core.ErrEmbedding)
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	_, embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1, 0.2}}})
	})

	_, err := embedder.EmbedQuery(context.Background(), "some text")
	require.ErrorIs(t, err, core.ErrEmbedding)
}

func TestOllamaEmbedderEmptyInput(t *testing.T) {
	_, embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called for empty input")
	})

	_, err := embedder.EmbedQuery(context.Background(), "   ")
	require.ErrorIs(t, err, core.ErrEmbedding)
}
