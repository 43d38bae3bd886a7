// ABOUTME: Centralized configuration for the scripture chat service
// ABOUTME: Loads an optional YAML file, then environment overrides, with validation and defaults
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Known backend kinds. Factories in internal/llm switch over the same sets.
var (
	LLMProviders       = []string{"ollama", "openai", "openrouter", "claude", "gemini"}
	EmbeddingProviders = []string{"ollama", "openai", "openrouter", "azure_openai", "gemini"}
	StoreBackends      = []string{"sqlite", "postgres"}
)

// Config holds all configuration for the service. It is built once at
// startup and handed to constructors; nothing mutates it afterwards.
type Config struct {
	// Language model
	LLMProvider string  `yaml:"llm_provider"`
	LLMModel    string  `yaml:"llm_model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Embeddings
	EmbeddingProvider   string `yaml:"embedding_provider"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`

	// Provider endpoints and credentials
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIKey       string `yaml:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	OpenRouterKey   string `yaml:"openrouter_api_key"`
	AnthropicKey    string `yaml:"anthropic_api_key"`
	GeminiKey       string `yaml:"gemini_api_key"`
	AzureKey        string `yaml:"azure_openai_api_key"`
	AzureEndpoint   string `yaml:"azure_openai_endpoint"`
	AzureAPIVersion string `yaml:"azure_openai_api_version"`

	ProviderTimeout    time.Duration `yaml:"provider_timeout"`
	ProviderRetries    int           `yaml:"provider_retries"`
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`

	// Retrieval
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxContextVerses    int     `yaml:"max_context_verses"`
	MaxContextPassages  int     `yaml:"max_context_passages"`
	MaxHistory          int     `yaml:"max_conversation_history"`
	DefaultTranslation  string  `yaml:"default_translation"`

	// Corpus store
	StoreBackend           string `yaml:"store_backend"`
	DatabaseURL            string `yaml:"database_url"`
	SQLitePath             string `yaml:"sqlite_path"`
	QdrantAddr             string `yaml:"qdrant_addr"`
	QdrantCollectionPrefix string `yaml:"qdrant_collection_prefix"`

	// Transport
	ServerAddr  string   `yaml:"server_addr"`
	CORSOrigins []string `yaml:"cors_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the built-in configuration before any file or env overrides
func Defaults() *Config {
	return &Config{
		LLMProvider:            "ollama",
		LLMModel:               "llama3:8b",
		Temperature:            0.7,
		MaxTokens:              1024,
		EmbeddingProvider:      "ollama",
		EmbeddingModel:         "nomic-embed-text",
		EmbeddingDimensions:    768,
		OllamaHost:             "http://localhost:11434",
		AzureAPIVersion:        "2024-02-01",
		ProviderTimeout:        60 * time.Second,
		ProviderRetries:        0,
		HealthCheckTimeout:     5 * time.Second,
		SimilarityThreshold:    0.35,
		MaxContextVerses:       10,
		MaxContextPassages:     2,
		MaxHistory:             10,
		DefaultTranslation:     "web",
		StoreBackend:           "sqlite",
		QdrantCollectionPrefix: "scripture",
		ServerAddr:             ":8000",
		CORSOrigins:            []string{"*"},
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// Load reads configuration from BIBLECHAT_CONFIG (if set) and the environment
func Load() (*Config, error) {
	return LoadFile(os.Getenv("BIBLECHAT_CONFIG"))
}

// LoadFile reads configuration from a YAML file, then applies environment
// overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.Temperature = getEnvFloat("LLM_TEMPERATURE", c.Temperature)
	c.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.MaxTokens)

	c.EmbeddingProvider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider))
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDimensions = getEnvInt("EMBEDDING_DIMENSIONS", c.EmbeddingDimensions)

	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenRouterKey = getEnv("OPENROUTER_API_KEY", c.OpenRouterKey)
	c.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.GeminiKey = getEnv("GEMINI_API_KEY", c.GeminiKey)
	c.AzureKey = getEnv("AZURE_OPENAI_API_KEY", c.AzureKey)
	c.AzureEndpoint = getEnv("AZURE_OPENAI_ENDPOINT", c.AzureEndpoint)
	c.AzureAPIVersion = getEnv("AZURE_OPENAI_API_VERSION", c.AzureAPIVersion)

	c.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.ProviderRetries = getEnvInt("PROVIDER_RETRIES", c.ProviderRetries)
	c.HealthCheckTimeout = getEnvDuration("HEALTH_CHECK_TIMEOUT", c.HealthCheckTimeout)

	c.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.MaxContextVerses = getEnvInt("MAX_CONTEXT_VERSES", c.MaxContextVerses)
	c.MaxContextPassages = getEnvInt("MAX_CONTEXT_PASSAGES", c.MaxContextPassages)
	c.MaxHistory = getEnvInt("MAX_CONVERSATION_HISTORY", c.MaxHistory)
	c.DefaultTranslation = getEnv("DEFAULT_TRANSLATION", c.DefaultTranslation)

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.QdrantAddr = getEnv("QDRANT_ADDR", c.QdrantAddr)
	c.QdrantCollectionPrefix = getEnv("QDRANT_COLLECTION_PREFIX", c.QdrantCollectionPrefix)

	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	if !slices.Contains(LLMProviders, c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be one of %s, got %q", strings.Join(LLMProviders, ", "), c.LLMProvider)
	}
	if !slices.Contains(EmbeddingProviders, c.EmbeddingProvider) {
		return fmt.Errorf("EMBEDDING_PROVIDER must be one of %s, got %q", strings.Join(EmbeddingProviders, ", "), c.EmbeddingProvider)
	}
	if !slices.Contains(StoreBackends, c.StoreBackend) {
		return fmt.Errorf("STORE_BACKEND must be one of %s, got %q", strings.Join(StoreBackends, ", "), c.StoreBackend)
	}
	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be 0-1, got %f", c.SimilarityThreshold)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be 0-2, got %f", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.MaxContextVerses < 1 || c.MaxContextVerses > 20 {
		return fmt.Errorf("MAX_CONTEXT_VERSES must be 1-20, got %d", c.MaxContextVerses)
	}
	if c.MaxContextPassages < 0 || c.MaxContextPassages > 5 {
		return fmt.Errorf("MAX_CONTEXT_PASSAGES must be 0-5, got %d", c.MaxContextPassages)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must not be negative, got %d", c.MaxHistory)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %v", c.ProviderTimeout)
	}
	if c.ProviderRetries < 0 {
		return fmt.Errorf("PROVIDER_RETRIES must not be negative, got %d", c.ProviderRetries)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be positive, got %v", c.HealthCheckTimeout)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
