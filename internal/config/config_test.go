// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies defaults, YAML file loading, environment overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment to test defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLMProvider != "ollama" {
		t.Errorf("LLMProvider = %s, want ollama", cfg.LLMProvider)
	}
	if cfg.LLMModel != "llama3:8b" {
		t.Errorf("LLMModel = %s, want llama3:8b", cfg.LLMModel)
	}
	if cfg.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("EmbeddingModel = %s, want nomic-embed-text", cfg.EmbeddingModel)
	}
	if cfg.EmbeddingDimensions != 768 {
		t.Errorf("EmbeddingDimensions = %d, want 768", cfg.EmbeddingDimensions)
	}
	if cfg.SimilarityThreshold != 0.35 {
		t.Errorf("SimilarityThreshold = %f, want 0.35", cfg.SimilarityThreshold)
	}
	if cfg.MaxContextVerses != 10 {
		t.Errorf("MaxContextVerses = %d, want 10", cfg.MaxContextVerses)
	}
	if cfg.MaxContextPassages != 2 {
		t.Errorf("MaxContextPassages = %d, want 2", cfg.MaxContextPassages)
	}
	if cfg.MaxHistory != 10 {
		t.Errorf("MaxHistory = %d, want 10", cfg.MaxHistory)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Errorf("ProviderTimeout = %v, want 60s", cfg.ProviderTimeout)
	}
	if cfg.ProviderRetries != 0 {
		t.Errorf("ProviderRetries = %d, want 0", cfg.ProviderRetries)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Errorf("StoreBackend = %s, want sqlite", cfg.StoreBackend)
	}
	if cfg.DefaultTranslation != "web" {
		t.Errorf("DefaultTranslation = %s, want web", cfg.DefaultTranslation)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	os.Setenv("LLM_PROVIDER", "OpenAI")
	os.Setenv("LLM_MODEL", "gpt-4o-mini")
	os.Setenv("OPENAI_API_KEY", "test-key")
	os.Setenv("EMBEDDING_PROVIDER", "openai")
	os.Setenv("EMBEDDING_DIMENSIONS", "1536")
	os.Setenv("PROVIDER_TIMEOUT", "15s")
	os.Setenv("SIMILARITY_THRESHOLD", "0.5")
	os.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %s, want openai", cfg.LLMProvider)
	}
	if cfg.OpenAIKey != "test-key" {
		t.Errorf("OpenAIKey = %s, want test-key", cfg.OpenAIKey)
	}
	if cfg.EmbeddingDimensions != 1536 {
		t.Errorf("EmbeddingDimensions = %d, want 1536", cfg.EmbeddingDimensions)
	}
	if cfg.ProviderTimeout != 15*time.Second {
		t.Errorf("ProviderTimeout = %v, want 15s", cfg.ProviderTimeout)
	}
	if cfg.SimilarityThreshold != 0.5 {
		t.Errorf("SimilarityThreshold = %f, want 0.5", cfg.SimilarityThreshold)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.CORSOrigins)
	}
}

func TestLoadFile_YAMLWithEnvOverride(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `llm_provider: gemini
llm_model: gemini-2.0-flash
gemini_api_key: yaml-key
provider_timeout: 20s
max_context_verses: 7
store_backend: postgres
database_url: postgres://localhost/bible
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	os.Setenv("MAX_CONTEXT_VERSES", "4")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %s, want gemini", cfg.LLMProvider)
	}
	if cfg.GeminiKey != "yaml-key" {
		t.Errorf("GeminiKey = %s, want yaml-key", cfg.GeminiKey)
	}
	if cfg.ProviderTimeout != 20*time.Second {
		t.Errorf("ProviderTimeout = %v, want 20s", cfg.ProviderTimeout)
	}
	if cfg.MaxContextVerses != 4 {
		t.Errorf("MaxContextVerses = %d, want 4 (env overrides file)", cfg.MaxContextVerses)
	}
	// Untouched fields keep defaults
	if cfg.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("EmbeddingModel = %s, want nomic-embed-text", cfg.EmbeddingModel)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	os.Clearenv()
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("MAX_CONTEXT_VERSES", "many")
	os.Setenv("PROVIDER_TIMEOUT", "soon")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MaxContextVerses != 10 {
		t.Errorf("MaxContextVerses = %d, want default 10", cfg.MaxContextVerses)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Errorf("ProviderTimeout = %v, want default 60s", cfg.ProviderTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown llm provider", func(c *Config) { c.LLMProvider = "llamafile" }, true},
		{"unknown embedding provider", func(c *Config) { c.EmbeddingProvider = "claude" }, true},
		{"unknown store", func(c *Config) { c.StoreBackend = "mysql" }, true},
		{"postgres without url", func(c *Config) { c.StoreBackend = "postgres" }, true},
		{"postgres with url", func(c *Config) {
			c.StoreBackend = "postgres"
			c.DatabaseURL = "postgres://x"
		}, false},
		{"threshold too high", func(c *Config) { c.SimilarityThreshold = 1.5 }, true},
		{"threshold negative", func(c *Config) { c.SimilarityThreshold = -0.1 }, true},
		{"threshold bounds", func(c *Config) { c.SimilarityThreshold = 1 }, false},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, true},
		{"too many verses", func(c *Config) { c.MaxContextVerses = 21 }, true},
		{"too many passages", func(c *Config) { c.MaxContextPassages = 6 }, true},
		{"no passages", func(c *Config) { c.MaxContextPassages = 0 }, false},
		{"negative history", func(c *Config) { c.MaxHistory = -1 }, true},
		{"zero timeout", func(c *Config) { c.ProviderTimeout = 0 }, true},
		{"temperature too high", func(c *Config) { c.Temperature = 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
