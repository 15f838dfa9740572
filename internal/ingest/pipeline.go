package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/logger"
)

// Status classifies the outcome of one source unit.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to a single unit. Failure handling is data,
// not control flow: a bad unit never aborts the run.
type Outcome struct {
	Ref     string
	Status  Status
	Reason  string
	PointID string
}

// RunSummary aggregates the outcomes of one ingestion run.
type RunSummary struct {
	RunID     string
	Attempted int
	Indexed   int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
}

// Pipeline converts raw source units into index points: extract, threshold,
// truncate, identify, embed, upsert.
type Pipeline struct {
	embedder core.Embedder
	index    core.VectorIndex
	minChars int
	maxChars int
	workers  int
}

// NewPipeline wires an ingestion pipeline. The embedder is expected to be the
// shared cache-backed one so ingestion warms the same cache queries hit.
func NewPipeline(embedder core.Embedder, index core.VectorIndex, cfg config.IngestConfig) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		minChars: cfg.MinChars,
		maxChars: cfg.MaxChars,
		workers:  workers,
	}
}

// Run processes all units with bounded parallelism and returns the run
// summary. Ingestion runs off the query path; its only shared state is the
// embedding cache and the index connection.
func (p *Pipeline) Run(ctx context.Context, units []Unit) RunSummary {
	summary := RunSummary{
		RunID:     uuid.NewString(),
		Attempted: len(units),
	}
	logger.Info("Ingestion run %s: %d units, %d workers", summary.RunID, len(units), p.workers)

	jobs := make(chan Unit)
	outcomes := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				outcomes <- p.ingestOne(ctx, unit)
			}
		}()
	}
	go func() {
		for _, u := range units {
			jobs <- u
		}
		close(jobs)
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.Status {
		case StatusIndexed:
			summary.Indexed++
		case StatusSkipped:
			summary.Skipped++
			logger.Debug("Skipped %s: %s", outcome.Ref, outcome.Reason)
		case StatusFailed:
			summary.Failed++
			logger.Warn("Failed %s: %s", outcome.Ref, outcome.Reason)
		}
	}

	logger.Info("Ingestion run %s done: attempted=%d indexed=%d skipped=%d failed=%d",
		summary.RunID, summary.Attempted, summary.Indexed, summary.Skipped, summary.Failed)
	return summary
}

// ingestOne converts a single unit into zero or one index point.
func (p *Pipeline) ingestOne(ctx context.Context, unit Unit) Outcome {
	text, err := unit.Extract()
	if err != nil {
		return Outcome{Ref: unit.Ref(), Status: StatusFailed, Reason: fmt.Sprintf("extraction: %v", err)}
	}
	text = strings.TrimSpace(text)

	// Length bounds count characters, not bytes: accented text must not
	// slip under the threshold just because UTF-8 inflates its byte count.
	if chars := utf8.RuneCountInString(text); chars < p.minChars {
		return Outcome{
			Ref:    unit.Ref(),
			Status: StatusSkipped,
			Reason: fmt.Sprintf("extracted text %d chars, below minimum %d", chars, p.minChars),
		}
	}
	text = Truncate(text, p.maxChars)

	id := PointID(unit.Source(), unit.Ref())

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return Outcome{Ref: unit.Ref(), Status: StatusFailed, Reason: fmt.Sprintf("embedding: %v", err)}
	}

	point := core.IndexPoint{
		ID:     id,
		Vector: vector,
		Text:   text,
		Metadata: map[string]any{
			"source":      unit.Source(),
			"type":        unit.Kind(),
			"path":        unit.Ref(),
			"ingested_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := p.index.Upsert(ctx, point); err != nil {
		return Outcome{Ref: unit.Ref(), Status: StatusFailed, Reason: fmt.Sprintf("upsert: %v", err)}
	}
	return Outcome{Ref: unit.Ref(), Status: StatusIndexed, PointID: id}
}

// PointID derives a stable identifier from provenance so repeated runs over
// the same source replace instead of accumulating duplicates.
func PointID(source, ref string) string {
	hash := sha256.Sum256([]byte(source + ":" + ref))
	return fmt.Sprintf("%s:%s", source, hex.EncodeToString(hash[:8]))
}

// Truncate keeps a prefix of at most max characters. The most salient
// content of these source documents is front-loaded.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	count := 0
	for i := range text {
		if count == max {
			return text[:i]
		}
		count++
	}
	return text
}
