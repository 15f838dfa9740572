package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/logger"
)

// Memory is an in-process core.VectorIndex using brute-force cosine
// similarity. It mirrors the Milvus implementation's semantics and serves as
// the substitute backend for tests and single-node setups without a vector
// database.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	created bool
	points  map[string]*memPoint
	nextSeq int64
}

type memPoint struct {
	point core.IndexPoint
	seq   int64 // insertion order, survives replacement upserts
}

// NewMemory returns an in-memory index for vectors of the given dimension.
func NewMemory(dimension int) *Memory {
	return &Memory{dim: dimension, points: make(map[string]*memPoint)}
}

// EnsureCollection marks the collection as created. Idempotent.
func (m *Memory) EnsureCollection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created {
		logger.Debug("In-memory collection already exists, keeping it")
		return nil
	}
	m.created = true
	return nil
}

// Upsert stores points, replacing by id. A replaced point keeps its original
// insertion order so repeated ingestion runs do not shuffle tie-breaks.
func (m *Memory) Upsert(_ context.Context, points ...core.IndexPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return fmt.Errorf("%w: collection was never created", core.ErrCollectionNotFound)
	}
	var bad []error
	for _, p := range points {
		if err := ValidatePoint(p, m.dim); err != nil {
			bad = append(bad, err)
			continue
		}
		if existing, ok := m.points[p.ID]; ok {
			existing.point = p
			continue
		}
		m.nextSeq++
		m.points[p.ID] = &memPoint{point: p, seq: m.nextSeq}
	}
	return errors.Join(bad...)
}

// Search scans all points and returns the top-k by cosine similarity,
// descending, ties broken by insertion order.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.created {
		return nil, fmt.Errorf("%w: collection was never created", core.ErrCollectionNotFound)
	}
	if k <= 0 || len(m.points) == 0 {
		return []core.SearchHit{}, nil
	}

	type scored struct {
		p     *memPoint
		score float32
	}
	candidates := make([]scored, 0, len(m.points))
	for _, p := range m.points {
		candidates = append(candidates, scored{p: p, score: cosine(vector, p.point.Vector)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].p.seq < candidates[j].p.seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]core.SearchHit, 0, k)
	for _, c := range candidates[:k] {
		hits = append(hits, core.SearchHit{
			Text:     c.p.point.Text,
			Metadata: c.p.point.Metadata,
			Score:    c.score,
		})
	}
	return hits, nil
}

// Delete removes points by id; unknown ids are ignored.
func (m *Memory) Delete(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// Reset destroys all points. Safe to call before EnsureCollection.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[string]*memPoint)
	m.created = false
	m.nextSeq = 0
	return nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error { return nil }

// Len reports the number of stored points.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
