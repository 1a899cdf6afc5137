package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Splitter.ChunkPages)
	assert.Equal(t, 1, cfg.Splitter.OverlapPages)
	assert.Equal(t, 6, cfg.Splitter.ThresholdPages)
	assert.Equal(t, 1000, cfg.Segmenter.MaxChunkLen)
	assert.Equal(t, 40, cfg.Segmenter.MinChunkLen)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.Equal(t, 100, cfg.Index.UpsertBatchSize)
	assert.Equal(t, 5, cfg.Index.TopK)
	assert.Equal(t, 3, cfg.Pipeline.SliceBatchSize)
	assert.NotEmpty(t, cfg.Pipeline.Instructions)

	names := make([]string, 0, len(cfg.Segmenter.Categories))
	for _, c := range cfg.Segmenter.Categories {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"TERMIN", "KONTAKT", "FORMALIA"}, names)
	assert.NotEmpty(t, cfg.Classifier.ConditionKeywords)
	assert.NotEmpty(t, cfg.Classifier.Interrogatives)

	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 5, cfg.Embedder.MaxRetries)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileGetsDefaultsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\nsplitter:\n  chunk_pages: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Splitter.ChunkPages)
	// untouched fields fall back to defaults
	assert.Equal(t, 6, cfg.Splitter.ThresholdPages)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.NotEmpty(t, cfg.Classifier.Interrogatives)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":7777"
	cfg.Index.Type = "qdrant"
	cfg.Index.Qdrant = &QdrantConfig{URL: "http://qdrant:6333", TimeoutSecs: 30}
	cfg.Classifier.ConditionKeywords = []string{"endet"}

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_QdrantDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  type: qdrant\n  qdrant: {}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Index.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.Index.Qdrant.URL)
	assert.Equal(t, 15, cfg.Index.Qdrant.TimeoutSecs)
}
