package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
)

const embedEndpoint = "/api/embed"

// OllamaEmbedder calls an Ollama-compatible embedding endpoint. The model is
// fixed for the lifetime of the process: the index dimension is coupled to
// it at collection-creation time and never changes without a full reindex.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

// NewOllamaEmbedder creates an embedding client from config. The dimension is
// the one the collection was created with; vectors of any other length are
// rejected.
func NewOllamaEmbedder(cfg config.EmbedderConfig, dimension int) *OllamaEmbedder {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Dimension returns the expected embedding dimension.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// EmbedQuery embeds a single text.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", core.ErrEmbedding)
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", core.ErrEmbedding, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+embedEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", core.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", core.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: backend status %d: %s", core.ErrEmbedding, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", core.ErrEmbedding, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: backend error: %s", core.ErrEmbedding, out.Error)
	}
	if len(out.Embeddings) != 1 {
		return nil, fmt.Errorf("%w: backend returned %d vectors for 1 input", core.ErrEmbedding, len(out.Embeddings))
	}
	vec := out.Embeddings[0]
	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: backend returned dimension %d, expected %d", core.ErrEmbedding, len(vec), e.dimension)
	}
	return vec, nil
}
