package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	milvusindex "github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/netzinformatique/kbassist/internal/config"
	"github.com/netzinformatique/kbassist/internal/core"
	"github.com/netzinformatique/kbassist/internal/logger"
)

// Field names for the knowledge base collection.
const (
	FieldID        = "id"
	FieldText      = "text"
	FieldMetadata  = "metadata"
	FieldCreatedAt = "created_at"
	FieldVector    = "vector"
)

// VarChar limits. IDs are short provenance hashes; text is bounded upstream
// by the ingestion truncation policy.
const (
	idMaxLength   = "255"
	textMaxLength = "65535"
)

// Milvus implements core.VectorIndex against a Milvus deployment.
type Milvus struct {
	client     *milvusclient.Client
	collection string
	dim        int
	timeout    time.Duration
}

// NewMilvus connects to Milvus and returns an index bound to the configured
// collection. The dimension is fixed here and immutable thereafter; changing
// the embedding model requires a Reset and full reindex.
func NewMilvus(ctx context.Context, cfg config.IndexConfig) (*Milvus, error) {
	logger.Info("Connecting to Milvus at %s (collection %q, dim %d)", cfg.Address, cfg.Collection, cfg.Dimension)

	m := &Milvus{
		collection: cfg.Collection,
		dim:        cfg.Dimension,
		timeout:    cfg.Timeout(),
	}
	connectCtx, cancel := m.opCtx(ctx)
	defer cancel()
	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", core.ErrIndexUnavailable, cfg.Address, err)
	}
	m.client = c
	return m, nil
}

// opCtx bounds one index operation by the configured timeout so an
// unresponsive backend fails the call instead of hanging it.
func (m *Milvus) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// EnsureCollection creates the collection, its HNSW cosine index and loads it
// into memory. When the collection already exists this is a logged no-op.
func (m *Milvus) EnsureCollection(ctx context.Context) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", core.ErrIndexUnavailable, err)
	}
	if exists {
		logger.Info("Collection %q already exists, keeping it", m.collection)
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collection,
		Description:    "Knowledge base passages for retrieval-augmented answering",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": idMaxLength},
			},
			{
				Name:       FieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": textMaxLength},
			},
			{
				Name:     FieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
			{
				Name:     FieldCreatedAt,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dim)},
			},
		},
	}

	createOpt := milvusclient.NewCreateCollectionOption(m.collection, schema)
	if err := m.client.CreateCollection(ctx, createOpt); err != nil {
		return fmt.Errorf("%w: create collection: %v", core.ErrIndexUnavailable, err)
	}

	vecIdx := milvusindex.NewHNSWIndex(entity.COSINE, 16, 200)
	indexOpt := milvusclient.NewCreateIndexOption(m.collection, FieldVector, vecIdx)
	if _, err := m.client.CreateIndex(ctx, indexOpt); err != nil {
		return fmt.Errorf("%w: create vector index: %v", core.ErrIndexUnavailable, err)
	}

	loadOpt := milvusclient.NewLoadCollectionOption(m.collection)
	if _, err := m.client.LoadCollection(ctx, loadOpt); err != nil {
		return fmt.Errorf("%w: load collection: %v", core.ErrIndexUnavailable, err)
	}

	logger.Info("Created and loaded collection %q", m.collection)
	return nil
}

// Upsert writes points, replacing existing points by primary key. Malformed
// points are reported in the returned error and never block well-formed
// neighbors.
func (m *Milvus) Upsert(ctx context.Context, points ...core.IndexPoint) error {
	valid := make([]core.IndexPoint, 0, len(points))
	var bad []error
	for _, p := range points {
		if err := ValidatePoint(p, m.dim); err != nil {
			bad = append(bad, err)
			continue
		}
		valid = append(valid, p)
	}

	if len(valid) > 0 {
		ctx, cancel := m.opCtx(ctx)
		defer cancel()
		ids := make([]string, len(valid))
		texts := make([]string, len(valid))
		metas := make([][]byte, len(valid))
		created := make([]int64, len(valid))
		vectors := make([][]float32, len(valid))
		for i, p := range valid {
			ids[i] = p.ID
			texts[i] = p.Text
			metas[i] = marshalMetadata(p.Metadata)
			created[i] = pointCreatedAt()
			vectors[i] = p.Vector
		}

		upsertOpt := milvusclient.NewColumnBasedInsertOption(m.collection,
			column.NewColumnVarChar(FieldID, ids),
			column.NewColumnVarChar(FieldText, texts),
			column.NewColumnJSONBytes(FieldMetadata, metas),
			column.NewColumnInt64(FieldCreatedAt, created),
			column.NewColumnFloatVector(FieldVector, m.dim, vectors),
		)
		if _, err := m.client.Upsert(ctx, upsertOpt); err != nil {
			return fmt.Errorf("%w: upsert %d points: %v", core.ErrIndexUnavailable, len(valid), err)
		}
	}

	return errors.Join(bad...)
}

// Search returns the top-k hits by cosine similarity, descending.
func (m *Milvus) Search(ctx context.Context, vector []float32, k int) ([]core.SearchHit, error) {
	if k <= 0 {
		return []core.SearchHit{}, nil
	}

	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return nil, fmt.Errorf("%w: check collection: %v", core.ErrIndexUnavailable, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", core.ErrCollectionNotFound, m.collection)
	}

	searchOpt := milvusclient.NewSearchOption(m.collection, k, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(FieldText, FieldMetadata)
	results, err := m.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", core.ErrIndexUnavailable, err)
	}
	if len(results) == 0 {
		return []core.SearchHit{}, nil
	}

	rs := results[0]
	hits := make([]core.SearchHit, 0, rs.ResultCount)
	textCol := rs.GetColumn(FieldText)
	metaCol, _ := rs.GetColumn(FieldMetadata).(*column.ColumnJSONBytes)
	for i := 0; i < rs.ResultCount; i++ {
		text := ""
		if textCol != nil {
			if v, err := textCol.GetAsString(i); err == nil {
				text = v
			}
		}
		metadata := map[string]any{}
		if metaCol != nil && i < len(metaCol.Data()) {
			_ = json.Unmarshal(metaCol.Data()[i], &metadata)
		}
		score := float32(0)
		if i < len(rs.Scores) {
			score = rs.Scores[i]
		}
		hits = append(hits, core.SearchHit{Text: text, Metadata: metadata, Score: score})
	}
	return hits, nil
}

// Delete removes points by id. Unknown ids are ignored by Milvus.
func (m *Milvus) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	deleteOpt := milvusclient.NewDeleteOption(m.collection).WithStringIDs(FieldID, ids)
	if _, err := m.client.Delete(ctx, deleteOpt); err != nil {
		return fmt.Errorf("%w: delete %d points: %v", core.ErrIndexUnavailable, len(ids), err)
	}
	return nil
}

// Reset drops the collection and all its points. Dropping a collection that
// does not exist succeeds: the desired end state is already reached.
func (m *Milvus) Reset(ctx context.Context) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("%w: check collection: %v", core.ErrIndexUnavailable, err)
	}
	if !exists {
		logger.Info("Collection %q does not exist, nothing to reset", m.collection)
		return nil
	}
	if err := m.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(m.collection)); err != nil {
		return fmt.Errorf("%w: drop collection: %v", core.ErrIndexUnavailable, err)
	}
	logger.Info("Dropped collection %q", m.collection)
	return nil
}

// Close releases the Milvus connection.
func (m *Milvus) Close() error {
	ctx, cancel := m.opCtx(context.Background())
	defer cancel()
	return m.client.Close(ctx)
}

func marshalMetadata(metadata map[string]any) []byte {
	if metadata == nil {
		return []byte("{}")
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return []byte("{}")
	}
	return data
}
