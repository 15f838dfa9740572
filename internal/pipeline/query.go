package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/llm"
	"github.com/netzinformatique/kbassist/internal/logger"
)

// FallbackResponse is returned verbatim when the generation backend fails.
// The pipeline never propagates a generation failure to the caller.
const FallbackResponse = "Sorry, I cannot generate an answer right now. Please try again in a moment."

// Pipeline orchestrates embed -> search -> assemble -> generate for a single
// query. It holds no per-query state; queries run fully in parallel sharing
// only the embedding cache and the index connection.
type Pipeline struct {
	embedder  core.Embedder
	index     core.VectorIndex
	generator core.Generator
	cfg       config.QueryConfig
}

// New wires a query pipeline. All collaborators are injected; substitute
// in-memory implementations make the pipeline testable without backends.
func New(embedder core.Embedder, index core.VectorIndex, generator core.Generator, cfg config.QueryConfig) *Pipeline {
	return &Pipeline{embedder: embedder, index: index, generator: generator, cfg: cfg}
}

// Answer runs the retrieval-augmented pipeline for one question. It always
// returns a well-formed QueryResult; the only error is an empty query, which
// is a contract violation by the caller. Every stage degrades rather than
// failing the query: a lost embedding or index answers without context, a
// lost generator answers with the fixed fallback text.
func (p *Pipeline) Answer(ctx context.Context, query string) (core.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return core.QueryResult{}, core.ErrEmptyQuery
	}

	result := core.QueryResult{
		Query:   query,
		Sources: []core.SearchHit{},
		Model:   p.generator.Model(),
	}

	hits := p.retrieve(ctx, query, &result)
	result.Sources = hits

	contextHits := hits
	if len(contextHits) > p.cfg.ContextLimit {
		contextHits = contextHits[:p.cfg.ContextLimit]
	}
	contextBlock := llm.BuildContext(contextHits)
	userPrompt := llm.BuildUserPrompt(contextBlock, query)

	genCtx, cancel := p.stageContext(ctx)
	response, err := p.generator.Generate(genCtx, llm.SystemInstruction, userPrompt)
	cancel()
	if err != nil {
		logger.Error("Generation failed, returning fallback response: %v", err)
		result.Response = FallbackResponse
		result.Degraded = true
		return result, nil
	}
	result.Response = response
	return result, nil
}

// retrieve embeds the query and searches the index. Both failures degrade to
// empty context; the distinction from "no relevant documents" is kept
// observable through the logs and the Degraded flag.
func (p *Pipeline) retrieve(ctx context.Context, query string, result *core.QueryResult) []core.SearchHit {
	embedCtx, cancel := p.stageContext(ctx)
	vector, err := p.embedder.EmbedQuery(embedCtx, query)
	cancel()
	if err != nil {
		logger.Warn("Query embedding failed, answering without context: %v", err)
		result.Degraded = true
		return []core.SearchHit{}
	}

	searchCtx, cancel := p.stageContext(ctx)
	hits, err := p.index.Search(searchCtx, vector, p.cfg.TopK)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, core.ErrCollectionNotFound):
			logger.Warn("Search degraded, collection missing: %v", err)
		case errors.Is(err, core.ErrIndexUnavailable):
			logger.Warn("Search degraded, index unavailable: %v", err)
		default:
			logger.Warn("Search degraded: %v", err)
		}
		result.Degraded = true
		return []core.SearchHit{}
	}

	kept := make([]core.SearchHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < p.cfg.MinScore {
			continue
		}
		kept = append(kept, hit)
	}
	logger.Debug("Retrieved %d hits (%d above relevance floor) for %q", len(hits), len(kept), preview(query))
	return kept
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func preview(s string) string {
	if len(s) > 60 {
		return fmt.Sprintf("%.60s...", s)
	}
	return s
}
