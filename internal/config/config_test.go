package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "milvus", cfg.Index.Backend)
	assert.Equal(t, "localhost:19530", cfg.Index.Address)
	assert.Equal(t, "kb_documents", cfg.Index.Collection)
	assert.Equal(t, 1024, cfg.Index.Dimension)
	assert.Equal(t, 50, cfg.Ingest.MinChars)
	assert.Equal(t, 3000, cfg.Ingest.MaxChars)
	assert.Equal(t, 4, cfg.Query.TopK)
	assert.Equal(t, 2, cfg.Query.ContextLimit)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
}

func TestLoadPartialFileKeepsDefaultsForRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  backend: memory
  dimension: 4
query:
  top_k: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, 4, cfg.Index.Dimension)
	assert.Equal(t, 10, cfg.Query.TopK)
	assert.Equal(t, "kb_documents", cfg.Index.Collection)
	assert.Equal(t, "bge-m3", cfg.Embedder.Model)
	assert.Equal(t, 2, cfg.Query.ContextLimit)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  address: file-configured:19530
  collection: from_file
`), 0o644))

	t.Setenv("MILVUS_ADDR", "env-configured:19530")
	t.Setenv("KB_COLLECTION", "from_env")
	t.Setenv("GENERATOR_MODEL", "mistral-large")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-configured:19530", cfg.Index.Address)
	assert.Equal(t, "from_env", cfg.Index.Collection)
	assert.Equal(t, "mistral-large", cfg.Generator.Model)
}

func TestTimeoutHelpers(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Positive(t, cfg.Index.Timeout())
	assert.Positive(t, cfg.Embedder.Timeout())
	assert.Positive(t, cfg.Generator.Timeout())
}
