package core

import "context"

// Embedder turns text into a fixed-dimension vector. Implementations must be
// deterministic for a given model version.
type Embedder interface {
	// EmbedQuery generates an embedding for a single non-empty text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the length of the vectors this embedder produces.
	Dimension() int
}

// Generator maps a prompt to natural-language text. The backend is opaque.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	// Model identifies the backing model for result attribution.
	Model() string
}

// VectorIndex is the document index: durable (id, vector, text, metadata)
// points with top-k cosine similarity search.
type VectorIndex interface {
	// EnsureCollection creates the collection when missing. Calling it when
	// the collection already exists is a logged no-op.
	EnsureCollection(ctx context.Context) error
	// Upsert writes points, replacing any point sharing an id. Each point
	// succeeds or fails independently: malformed points are reported in the
	// returned error but never block well-formed neighbors.
	Upsert(ctx context.Context, points ...IndexPoint) error
	// Search returns at most k hits ordered by descending similarity, ties
	// broken by insertion order. An empty index yields an empty slice.
	Search(ctx context.Context, vector []float32, k int) ([]SearchHit, error)
	// Delete removes points by id. Unknown ids are not an error.
	Delete(ctx context.Context, ids ...string) error
	// Reset destroys the collection and all its points. Resetting a
	// collection that does not exist succeeds.
	Reset(ctx context.Context) error
	Close() error
}
