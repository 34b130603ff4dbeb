package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 512, cfg.MaxChunkTokens)
	assert.Equal(t, 50, cfg.ChunkOverlapTokens)
	assert.Equal(t, 60, cfg.FusionK)
	assert.Equal(t, 20, cfg.RerankPoolSize)
	assert.Equal(t, 2, cfg.GraphMaxHops)
	assert.Equal(t, ExtractDepthStructural, cfg.ExtractDepth)
	assert.Equal(t, 2, cfg.MinDF)
	assert.Equal(t, 0.6, cfg.MaxDFRatio)
	assert.Equal(t, 8, cfg.TopKPerChunk)
	assert.Equal(t, 0.10, cfg.TopPercentile)
	assert.Equal(t, 1, cfg.FuzzyThreshold)
	assert.Equal(t, 300, cfg.SnippetLength)
	assert.Equal(t, 100, cfg.RerankerMinLength)
	assert.Equal(t, -8.0, cfg.RerankerScoreThresh)
	assert.False(t, cfg.ReadOnly)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
data_dir: ./notes
index_dir: ./notes/.dotmd
max_chunk_tokens: 256
chunk_overlap_tokens: 32
default_top_k: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dotmd.yaml"), []byte(yaml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "./notes", cfg.DataDir)
	assert.Equal(t, "./notes/.dotmd", cfg.IndexDir)
	assert.Equal(t, 256, cfg.MaxChunkTokens)
	assert.Equal(t, 32, cfg.ChunkOverlapTokens)
	assert.Equal(t, 5, cfg.DefaultTopK)
	// Untouched fields retain defaults.
	assert.Equal(t, 60, cfg.FusionK)
}

func TestLoad_NoFilePresent_UsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().MaxChunkTokens, cfg.MaxChunkTokens)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "default_top_k: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dotmd.yaml"), []byte(yaml), 0644))

	t.Setenv("DOTMD_DEFAULT_TOP_K", "15")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.DefaultTopK)
}

func TestValidate_RejectsOverlapGEQMax(t *testing.T) {
	cfg := NewConfig()
	cfg.ChunkOverlapTokens = cfg.MaxChunkTokens
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadExtractDepth(t *testing.T) {
	cfg := NewConfig()
	cfg.ExtractDepth = "semantic"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyDataDir(t *testing.T) {
	cfg := NewConfig()
	cfg.DataDir = "  "
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.DataDir = "./vault"
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, "./vault", loaded.DataDir)
}
