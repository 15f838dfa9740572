package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/index"
)

type fakeUnit struct {
	ref  string
	text string
	err  error
}

func (u fakeUnit) Ref() string    { return u.ref }
func (u fakeUnit) Source() string { return "files" }
func (u fakeUnit) Kind() string   { return "text" }
func (u fakeUnit) Extract() (string, error) {
	return u.text, u.err
}

type stubEmbedder struct {
	calls int
	texts []string
}

func (e *stubEmbedder) Dimension() int { return 3 }

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.texts = append(e.texts, text)
	return []float32{1, 0, 0}, nil
}

func testPipeline(t *testing.T, embedder *stubEmbedder) (*Pipeline, *index.Memory) {
	t.Helper()
	idx := index.NewMemory(3)
	require.NoError(t, idx.EnsureCollection(context.Background()))
	p := NewPipeline(embedder, idx, config.IngestConfig{
		MinChars: 50,
		MaxChars: 3000,
		Workers:  2,
	})
	return p, idx
}

func longText(prefix string) string {
	return prefix + strings.Repeat(" lorem ipsum", 10)
}

func TestRunIndexesValidUnits(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)

	summary := p.Run(context.Background(), []Unit{
		fakeUnit{ref: "a.txt", text: longText("first document")},
		fakeUnit{ref: "b.txt", text: longText("second document")},
	})

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Indexed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, idx.Len())
	assert.Len(t, summary.Outcomes, 2)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunSkipsBelowMinimum(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)

	summary := p.Run(context.Background(), []Unit{
		fakeUnit{ref: "short.txt", text: "ten chars."},
	})

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Indexed)
	assert.Zero(t, idx.Len(), "a skip must not add an index point")
	assert.Zero(t, embedder.calls, "a skip must not cost an embedding")
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, StatusSkipped, summary.Outcomes[0].Status)
	assert.Contains(t, summary.Outcomes[0].Reason, "below minimum")
}

func TestRunMinimumCountsCharactersNotBytes(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)

	// 49 characters but 98 bytes of UTF-8: still below the threshold.
	summary := p.Run(context.Background(), []Unit{
		fakeUnit{ref: "accents.txt", text: strings.Repeat("é", 49)},
	})

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, idx.Len())

	summary = p.Run(context.Background(), []Unit{
		fakeUnit{ref: "accents.txt", text: strings.Repeat("é", 50)},
	})
	assert.Equal(t, 1, summary.Indexed)
}

func TestRunTruncatesLongText(t *testing.T) {
	embedder := &stubEmbedder{}
	p, _ := testPipeline(t, embedder)

	summary := p.Run(context.Background(), []Unit{
		fakeUnit{ref: "big.txt", text: strings.Repeat("x", 5000)},
	})

	assert.Equal(t, 1, summary.Indexed)
	require.Len(t, embedder.texts, 1)
	assert.Len(t, embedder.texts[0], 3000)
}

func TestRunExtractionFailureDoesNotAbort(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)

	summary := p.Run(context.Background(), []Unit{
		fakeUnit{ref: "broken.pdf", err: errors.New("damaged file")},
		fakeUnit{ref: "good.txt", text: longText("healthy document")},
	})

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, idx.Len())
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)
	units := []Unit{fakeUnit{ref: "a.txt", text: longText("same document")}}

	first := p.Run(context.Background(), units)
	second := p.Run(context.Background(), units)

	assert.Equal(t, 1, first.Indexed)
	assert.Equal(t, 1, second.Indexed)
	assert.Equal(t, 1, idx.Len(), "re-ingesting the same source must replace, not duplicate")
	assert.Equal(t, first.Outcomes[0].PointID, second.Outcomes[0].PointID)
}

func TestRunStampsProvenanceMetadata(t *testing.T) {
	embedder := &stubEmbedder{}
	p, idx := testPipeline(t, embedder)

	p.Run(context.Background(), []Unit{fakeUnit{ref: "docs/a.txt", text: longText("document")}})

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "files", hits[0].Metadata["source"])
	assert.Equal(t, "text", hits[0].Metadata["type"])
	assert.Equal(t, "docs/a.txt", hits[0].Metadata["path"])
	assert.NotEmpty(t, hits[0].Metadata["ingested_at"])
}

func TestPointIDStableAndSourceScoped(t *testing.T) {
	assert.Equal(t, PointID("files", "a.txt"), PointID("files", "a.txt"))
	assert.NotEqual(t, PointID("files", "a.txt"), PointID("files", "b.txt"))
	assert.NotEqual(t, PointID("files", "a.txt"), PointID("records", "a.txt"))
	assert.True(t, strings.HasPrefix(PointID("files", "a.txt"), "files:"))
}

func TestTruncateCountsCharacters(t *testing.T) {
	text := "préfixe"
	assert.Equal(t, "pré", Truncate(text, 3))
	assert.Equal(t, text, Truncate(text, 7))
	assert.Equal(t, text, Truncate(text, 100))
	assert.Equal(t, text, Truncate(text, 0))
}
