package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractDepth selects which entity-extraction passes run at index time.
// Structural and key-term extraction always run; "ner" opts into an
// additional zero-shot NER pass.
type ExtractDepth string

const (
	ExtractDepthStructural ExtractDepth = "structural"
	ExtractDepthNER        ExtractDepth = "ner"
)

// SubmoduleConfig configures git submodule discovery during directory
// scanning. The retrieval core itself never needs to descend into
// submodules but leaves the knob in place for embedders of
// internal/scanner.
type SubmoduleConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Recursive bool     `yaml:"recursive" json:"recursive"`
	Include   []string `yaml:"include" json:"include"`
	Exclude   []string `yaml:"exclude" json:"exclude"`
}

// Config is the complete configuration surface for the retrieval core: a
// flat struct with yaml/json tags, loaded from a YAML file and overlaid
// with DOTMD_*-prefixed env vars.
type Config struct {
	// DataDir is the directory scanned for markdown source files.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// IndexDir is where persisted index state (BM25, vector, graph,
	// metadata, acronym dictionary) lives.
	IndexDir string `yaml:"index_dir" json:"index_dir"`

	// EmbeddingModel identifies the dense embedding model used by the
	// semantic engine. Interpreted by internal/embed's factory.
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	// EmbeddingDim is the output dimension of EmbeddingModel.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`

	// RerankerModel identifies the cross-encoder model used by the
	// optional reranking stage.
	RerankerModel string `yaml:"reranker_model" json:"reranker_model"`

	// MaxChunkTokens bounds a single chunk's estimated token count.
	MaxChunkTokens int `yaml:"max_chunk_tokens" json:"max_chunk_tokens"`
	// ChunkOverlapTokens is the minimum estimated-token overlap carried
	// into the next window when a section is split.
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`

	// ExtractDepth selects "structural" (default) or "ner".
	ExtractDepth ExtractDepth `yaml:"extract_depth" json:"extract_depth"`
	// NEREntityTypes lists the labels the optional NER pass should emit.
	// Only meaningful when ExtractDepth is "ner".
	NEREntityTypes []string `yaml:"ner_entity_types" json:"ner_entity_types"`

	// DefaultTopK is the number of results search() returns absent an
	// explicit top_k.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	// FusionK is the RRF smoothing constant.
	FusionK int `yaml:"fusion_k" json:"fusion_k"`
	// RerankPoolSize is how many fused results are handed to the
	// reranker when rerank is requested.
	RerankPoolSize int `yaml:"rerank_pool_size" json:"rerank_pool_size"`
	// GraphMaxHops bounds the graph engine's traversal radius.
	GraphMaxHops int `yaml:"graph_max_hops" json:"graph_max_hops"`

	// ReadOnly, when true, opens all stores without write capability;
	// index() refuses to run.
	ReadOnly bool `yaml:"read_only" json:"read_only"`

	// Key-term extraction tuning: document-frequency bounds, per-chunk
	// TF-IDF keep count, and the final coverage-percentile prune.
	MinDF         int     `yaml:"min_df" json:"min_df"`
	MaxDFRatio    float64 `yaml:"max_df_ratio" json:"max_df_ratio"`
	TopKPerChunk  int     `yaml:"top_k_per_chunk" json:"top_k_per_chunk"`
	TopPercentile float64 `yaml:"top_percentile" json:"top_percentile"`

	// Query expansion tuning.
	FuzzyThreshold int `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`

	// Snippet tuning.
	SnippetLength int `yaml:"snippet_length" json:"snippet_length"`

	// Reranker tuning.
	RerankerMinLength    int     `yaml:"reranker_min_length" json:"reranker_min_length"`
	RerankerScoreThresh  float64 `yaml:"reranker_score_threshold" json:"reranker_score_threshold"`
}

// NewConfig returns a Config populated with every default.
func NewConfig() *Config {
	return &Config{
		DataDir:  ".",
		IndexDir: ".dotmd",

		EmbeddingModel: "nomic-embed-text-v1.5",
		EmbeddingDim:   768,
		RerankerModel:  "cross-encoder/ms-marco-MiniLM-L-6-v2",

		MaxChunkTokens:     512,
		ChunkOverlapTokens: 50,

		ExtractDepth:   ExtractDepthStructural,
		NEREntityTypes: nil,

		DefaultTopK:    10,
		FusionK:        60,
		RerankPoolSize: 20,
		GraphMaxHops:   2,

		ReadOnly: false,

		MinDF:         2,
		MaxDFRatio:    0.6,
		TopKPerChunk:  8,
		TopPercentile: 0.10,

		FuzzyThreshold: 1,

		SnippetLength: 300,

		RerankerMinLength:   100,
		RerankerScoreThresh: -8.0,
	}
}

// Load resolves configuration in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. Project config (.dotmd.yaml in dir)
//  3. Environment variables (DOTMD_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile attempts to load configuration from .dotmd.yaml or .dotmd.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".dotmd.yaml", ".dotmd.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file, overwriting
// only fields the file actually sets.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

func (c *Config) mergeWith(other *Config) {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.IndexDir != "" {
		c.IndexDir = other.IndexDir
	}
	if other.EmbeddingModel != "" {
		c.EmbeddingModel = other.EmbeddingModel
	}
	if other.EmbeddingDim != 0 {
		c.EmbeddingDim = other.EmbeddingDim
	}
	if other.RerankerModel != "" {
		c.RerankerModel = other.RerankerModel
	}
	if other.MaxChunkTokens != 0 {
		c.MaxChunkTokens = other.MaxChunkTokens
	}
	if other.ChunkOverlapTokens != 0 {
		c.ChunkOverlapTokens = other.ChunkOverlapTokens
	}
	if other.ExtractDepth != "" {
		c.ExtractDepth = other.ExtractDepth
	}
	if len(other.NEREntityTypes) > 0 {
		c.NEREntityTypes = other.NEREntityTypes
	}
	if other.DefaultTopK != 0 {
		c.DefaultTopK = other.DefaultTopK
	}
	if other.FusionK != 0 {
		c.FusionK = other.FusionK
	}
	if other.RerankPoolSize != 0 {
		c.RerankPoolSize = other.RerankPoolSize
	}
	if other.GraphMaxHops != 0 {
		c.GraphMaxHops = other.GraphMaxHops
	}
	if other.ReadOnly {
		c.ReadOnly = other.ReadOnly
	}
	if other.MinDF != 0 {
		c.MinDF = other.MinDF
	}
	if other.MaxDFRatio != 0 {
		c.MaxDFRatio = other.MaxDFRatio
	}
	if other.TopKPerChunk != 0 {
		c.TopKPerChunk = other.TopKPerChunk
	}
	if other.TopPercentile != 0 {
		c.TopPercentile = other.TopPercentile
	}
	if other.FuzzyThreshold != 0 {
		c.FuzzyThreshold = other.FuzzyThreshold
	}
	if other.SnippetLength != 0 {
		c.SnippetLength = other.SnippetLength
	}
	if other.RerankerMinLength != 0 {
		c.RerankerMinLength = other.RerankerMinLength
	}
	if other.RerankerScoreThresh != 0 {
		c.RerankerScoreThresh = other.RerankerScoreThresh
	}
}

// applyEnvOverrides applies DOTMD_*-prefixed environment variable
// overrides, the highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOTMD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOTMD_INDEX_DIR"); v != "" {
		c.IndexDir = v
	}
	if v := os.Getenv("DOTMD_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv("DOTMD_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EmbeddingDim = n
		}
	}
	if v := os.Getenv("DOTMD_RERANKER_MODEL"); v != "" {
		c.RerankerModel = v
	}
	if v := os.Getenv("DOTMD_MAX_CHUNK_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxChunkTokens = n
		}
	}
	if v := os.Getenv("DOTMD_CHUNK_OVERLAP_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ChunkOverlapTokens = n
		}
	}
	if v := os.Getenv("DOTMD_EXTRACT_DEPTH"); v != "" {
		c.ExtractDepth = ExtractDepth(v)
	}
	if v := os.Getenv("DOTMD_DEFAULT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DefaultTopK = n
		}
	}
	if v := os.Getenv("DOTMD_FUSION_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FusionK = n
		}
	}
	if v := os.Getenv("DOTMD_RERANK_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RerankPoolSize = n
		}
	}
	if v := os.Getenv("DOTMD_GRAPH_MAX_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GraphMaxHops = n
		}
	}
	if v := os.Getenv("DOTMD_READ_ONLY"); v != "" {
		c.ReadOnly = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate returns an error describing the first invalid field found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if strings.TrimSpace(c.IndexDir) == "" {
		return fmt.Errorf("index_dir must not be empty")
	}
	if c.MaxChunkTokens <= 0 {
		return fmt.Errorf("max_chunk_tokens must be positive, got %d", c.MaxChunkTokens)
	}
	if c.ChunkOverlapTokens < 0 {
		return fmt.Errorf("chunk_overlap_tokens must be non-negative, got %d", c.ChunkOverlapTokens)
	}
	if c.ChunkOverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("chunk_overlap_tokens (%d) must be less than max_chunk_tokens (%d)", c.ChunkOverlapTokens, c.MaxChunkTokens)
	}
	if c.ExtractDepth != ExtractDepthStructural && c.ExtractDepth != ExtractDepthNER {
		return fmt.Errorf("extract_depth must be 'structural' or 'ner', got %q", c.ExtractDepth)
	}
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("default_top_k must be positive, got %d", c.DefaultTopK)
	}
	if c.FusionK <= 0 {
		return fmt.Errorf("fusion_k must be positive, got %d", c.FusionK)
	}
	if c.RerankPoolSize <= 0 {
		return fmt.Errorf("rerank_pool_size must be positive, got %d", c.RerankPoolSize)
	}
	if c.GraphMaxHops <= 0 {
		return fmt.Errorf("graph_max_hops must be positive, got %d", c.GraphMaxHops)
	}
	if c.MaxDFRatio <= 0 || c.MaxDFRatio > 1 {
		return fmt.Errorf("max_df_ratio must be in (0, 1], got %f", c.MaxDFRatio)
	}
	if c.TopPercentile <= 0 || c.TopPercentile > 1 {
		return fmt.Errorf("top_percentile must be in (0, 1], got %f", c.TopPercentile)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dotmd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "dotmd", "config.yaml")
	}
	return filepath.Join(home, ".config", "dotmd", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
