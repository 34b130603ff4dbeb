package embed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_OllamaTimeoutEnvVar(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "valid duration seconds", envValue: "120s", want: 120 * time.Second},
		{name: "valid duration minutes", envValue: "5m", want: 5 * time.Minute},
		{name: "invalid duration uses default", envValue: "invalid", want: DefaultTimeout},
		{name: "empty uses default", envValue: "", want: DefaultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := os.Getenv("DOTMD_OLLAMA_TIMEOUT")
			defer os.Setenv("DOTMD_OLLAMA_TIMEOUT", orig)

			if tt.envValue != "" {
				os.Setenv("DOTMD_OLLAMA_TIMEOUT", tt.envValue)
			} else {
				os.Unsetenv("DOTMD_OLLAMA_TIMEOUT")
			}

			cfg := DefaultOllamaConfig()
			if timeoutStr := os.Getenv("DOTMD_OLLAMA_TIMEOUT"); timeoutStr != "" {
				if timeout, err := time.ParseDuration(timeoutStr); err == nil {
					cfg.Timeout = timeout
				}
			}

			assert.Equal(t, tt.want, cfg.Timeout)
		})
	}
}

func TestDefaultTimeout_IsNowSixtySeconds(t *testing.T) {
	assert.Equal(t, 60*time.Second, DefaultTimeout)
}

func TestNewEmbedder_StaticProvider_DoesNotNeedTimeout(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderStatic, "")
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, "static768", embedder.ModelName())
	assert.True(t, embedder.Available(ctx))
}

func TestSetThermalConfig_AppliesConfigFileSettings(t *testing.T) {
	origConfig := globalThermalConfig
	defer func() { globalThermalConfig = origConfig }()

	cfg := ThermalConfig{
		InterBatchDelay:        500 * time.Millisecond,
		TimeoutProgression:     2.0,
		RetryTimeoutMultiplier: 1.5,
	}

	SetThermalConfig(cfg)

	assert.Equal(t, 500*time.Millisecond, globalThermalConfig.InterBatchDelay)
	assert.Equal(t, 2.0, globalThermalConfig.TimeoutProgression)
	assert.Equal(t, 1.5, globalThermalConfig.RetryTimeoutMultiplier)
}

func TestSetThermalConfig_EnvVarsOverrideConfigFile(t *testing.T) {
	origDelay := os.Getenv("DOTMD_INTER_BATCH_DELAY")
	origProg := os.Getenv("DOTMD_TIMEOUT_PROGRESSION")
	origRetry := os.Getenv("DOTMD_RETRY_TIMEOUT_MULTIPLIER")
	defer func() {
		os.Setenv("DOTMD_INTER_BATCH_DELAY", origDelay)
		os.Setenv("DOTMD_TIMEOUT_PROGRESSION", origProg)
		os.Setenv("DOTMD_RETRY_TIMEOUT_MULTIPLIER", origRetry)
	}()

	origConfig := globalThermalConfig
	defer func() { globalThermalConfig = origConfig }()

	SetThermalConfig(ThermalConfig{
		InterBatchDelay:        200 * time.Millisecond,
		TimeoutProgression:     1.5,
		RetryTimeoutMultiplier: 1.2,
	})

	os.Setenv("DOTMD_INTER_BATCH_DELAY", "1s")
	os.Setenv("DOTMD_TIMEOUT_PROGRESSION", "2.5")
	os.Setenv("DOTMD_RETRY_TIMEOUT_MULTIPLIER", "1.8")

	cfg := DefaultOllamaConfig()

	if globalThermalConfig.InterBatchDelay > 0 {
		cfg.InterBatchDelay = globalThermalConfig.InterBatchDelay
	}
	if globalThermalConfig.TimeoutProgression >= 1.0 {
		cfg.TimeoutProgression = globalThermalConfig.TimeoutProgression
	}
	if globalThermalConfig.RetryTimeoutMultiplier >= 1.0 {
		cfg.RetryTimeoutMultiplier = globalThermalConfig.RetryTimeoutMultiplier
	}

	if delayStr := os.Getenv("DOTMD_INTER_BATCH_DELAY"); delayStr != "" {
		if delay, err := time.ParseDuration(delayStr); err == nil {
			cfg.InterBatchDelay = delay
		}
	}
	if progStr := os.Getenv("DOTMD_TIMEOUT_PROGRESSION"); progStr != "" {
		if prog, err := parseFloat64(progStr); err == nil {
			cfg.TimeoutProgression = prog
		}
	}
	if retryStr := os.Getenv("DOTMD_RETRY_TIMEOUT_MULTIPLIER"); retryStr != "" {
		if mult, err := parseFloat64(retryStr); err == nil {
			cfg.RetryTimeoutMultiplier = mult
		}
	}

	assert.Equal(t, 1*time.Second, cfg.InterBatchDelay, "env var should override config file")
	assert.Equal(t, 2.5, cfg.TimeoutProgression, "env var should override config file")
	assert.Equal(t, 1.8, cfg.RetryTimeoutMultiplier, "env var should override config file")
}

func TestDefaultTimeouts_IncreasedForThermalThrottling(t *testing.T) {
	assert.Equal(t, 120*time.Second, DefaultWarmTimeout)
	assert.Equal(t, 180*time.Second, DefaultColdTimeout)
}

func TestNewEmbedder_ExplicitOllama_OllamaUnavailable_ReturnsError(t *testing.T) {
	origEmbedder := os.Getenv("DOTMD_EMBEDDER")
	origHost := os.Getenv("DOTMD_OLLAMA_HOST")
	defer func() {
		os.Setenv("DOTMD_EMBEDDER", origEmbedder)
		os.Setenv("DOTMD_OLLAMA_HOST", origHost)
	}()

	os.Setenv("DOTMD_EMBEDDER", "ollama")
	os.Setenv("DOTMD_OLLAMA_HOST", "http://localhost:59999")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	embedder, err := NewEmbedder(ctx, ProviderOllama, "")

	require.Error(t, err, "explicit embedder should error when unavailable, not fallback")
	assert.Nil(t, embedder)
	assert.Contains(t, err.Error(), "ollama unavailable")
}

func TestNewEmbedder_AutoDetect_OllamaFails_ReturnsError(t *testing.T) {
	origEmbedder := os.Getenv("DOTMD_EMBEDDER")
	origHost := os.Getenv("DOTMD_OLLAMA_HOST")
	defer func() {
		os.Setenv("DOTMD_EMBEDDER", origEmbedder)
		os.Setenv("DOTMD_OLLAMA_HOST", origHost)
	}()

	os.Unsetenv("DOTMD_EMBEDDER")
	os.Setenv("DOTMD_OLLAMA_HOST", "http://localhost:59999")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	embedder, err := NewEmbedder(ctx, ProviderOllama, "")

	require.Error(t, err, "auto-detect should error when embedder unavailable")
	assert.Nil(t, embedder)
	assert.Contains(t, err.Error(), "ollama unavailable")
	assert.Contains(t, err.Error(), "ollama serve")
}

func TestNewEmbedder_ExplicitStatic_AlwaysSucceeds(t *testing.T) {
	origEmbedder := os.Getenv("DOTMD_EMBEDDER")
	defer os.Setenv("DOTMD_EMBEDDER", origEmbedder)

	os.Setenv("DOTMD_EMBEDDER", "static")

	ctx := context.Background()

	embedder, err := NewEmbedder(ctx, ProviderOllama, "")

	require.NoError(t, err)
	require.NotNil(t, embedder)
	defer func() { _ = embedder.Close() }()
	assert.Equal(t, "static768", embedder.ModelName())
}

func TestIsOllamaModelName_WithTag(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "ollama model with tag", model: "nomic-embed-text:latest", want: true},
		{name: "qwen3 with size tag", model: "qwen3-embedding:8b", want: true},
		{name: "model with version tag", model: "bge-small:v1.5", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isOllamaModelName(tt.model)
			assert.Equal(t, tt.want, got, "isOllamaModelName(%q)", tt.model)
		})
	}
}

func TestIsOllamaModelName_GGUFExtension(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gguf file", model: "model.gguf", want: false},
		{name: "gguf with path", model: "/path/to/nomic-embed-text.gguf", want: false},
		{name: "uppercase GGUF", model: "model.GGUF", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isOllamaModelName(tt.model)
			assert.Equal(t, tt.want, got, "isOllamaModelName(%q)", tt.model)
		})
	}
}

func TestIsOllamaModelName_VersionPattern(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "model with version number", model: "nomic-embed-text-v1.5", want: false},
		{name: "bge with version", model: "bge-small-en-v1.5", want: false},
		{name: "v1 suffix", model: "model-v1", want: false},
		{name: "v2 suffix", model: "model-v2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isOllamaModelName(tt.model)
			assert.Equal(t, tt.want, got, "isOllamaModelName(%q)", tt.model)
		})
	}
}

func TestIsOllamaModelName_PlainNames(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "plain name no tag", model: "nomic-embed-text", want: false},
		{name: "single word", model: "embedding", want: false},
		{name: "empty string", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isOllamaModelName(tt.model)
			assert.Equal(t, tt.want, got, "isOllamaModelName(%q)", tt.model)
		})
	}
}
