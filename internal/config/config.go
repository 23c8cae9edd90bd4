// Package config loads the retrieval engine configuration from defaults,
// an optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the merged configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" validate:"oneof=openai cohere local hash"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Dimensions        int           `yaml:"dimensions" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CacheSize         int           `yaml:"cache_size" validate:"gte=1"`
}

// ChunkingConfig sizes chunks in characters.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size" validate:"gt=0"`
	Overlap   int `yaml:"overlap" validate:"gte=0,ltfield=ChunkSize"`
	MinLength int `yaml:"min_length" validate:"gte=0"`
}

// PineconeConfig points at a Pinecone index.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host"`
	IndexName string `yaml:"index_name"`
	Namespace string `yaml:"namespace"`
}

// QdrantConfig points at a Qdrant server.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port" validate:"gte=1,lte=65535"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
}

// StoreConfig selects the vector store.
type StoreConfig struct {
	Kind     string         `yaml:"kind" validate:"oneof=local pinecone qdrant"`
	Timeout  time.Duration  `yaml:"timeout"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

// RetrievalConfig tunes ingestion and queries.
type RetrievalConfig struct {
	TopK        int `yaml:"top_k" validate:"gte=1,lte=100"`
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=16"`
}

// DatabaseConfig locates the SQLite chunk repository.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// GitHubConfig names a documentation tree to sync.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
}

// ServerConfig configures the MCP server binary.
type ServerConfig struct {
	Port       int  `yaml:"port" validate:"gte=1,lte=65535"`
	ServerMode bool `yaml:"server_mode"`
}

// Config is the root configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Database  DatabaseConfig  `yaml:"database"`
	GitHub    GitHubConfig    `yaml:"github"`
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Timeout:   30 * time.Second,
			CacheSize: 10000,
		},
		Chunking: ChunkingConfig{
			ChunkSize: 1000,
			Overlap:   200,
			MinLength: 50,
		},
		Store: StoreConfig{
			Kind:    "local",
			Timeout: 30 * time.Second,
			Pinecone: PineconeConfig{
				Namespace: "default",
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "chunks",
			},
		},
		Retrieval: RetrievalConfig{
			TopK:        5,
			Concurrency: 4,
		},
		Database: DatabaseConfig{
			Path: "data/rag.db",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty or the file does not exist) and environment overrides,
// then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and store-specific requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Store.Kind == "pinecone" && c.Store.Pinecone.Host == "" {
		return fmt.Errorf("%w: store.pinecone.host is required for the pinecone store", ErrInvalid)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Embedding.Provider = getEnv("RAG_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = getEnv("RAG_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = getEnv("RAG_EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Dimensions = getEnvInt("RAG_EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.Timeout = getEnvDuration("RAG_EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)
	cfg.Embedding.CacheSize = getEnvInt("RAG_CACHE_SIZE", cfg.Embedding.CacheSize)

	// Vendor keys only apply to their own provider.
	switch cfg.Embedding.Provider {
	case "openai":
		cfg.Embedding.APIKey = getEnv("OPENAI_API_KEY", cfg.Embedding.APIKey)
	case "cohere":
		cfg.Embedding.APIKey = getEnv("COHERE_API_KEY", cfg.Embedding.APIKey)
	case "local":
		cfg.Embedding.BaseURL = getEnv("LOCAL_MODEL_URL", cfg.Embedding.BaseURL)
	}

	cfg.Chunking.ChunkSize = getEnvInt("RAG_CHUNK_SIZE", cfg.Chunking.ChunkSize)
	cfg.Chunking.Overlap = getEnvInt("RAG_CHUNK_OVERLAP", cfg.Chunking.Overlap)

	cfg.Store.Kind = getEnv("RAG_STORE", cfg.Store.Kind)
	cfg.Store.Pinecone.APIKey = getEnv("PINECONE_API_KEY", cfg.Store.Pinecone.APIKey)
	cfg.Store.Pinecone.Host = getEnv("PINECONE_HOST", cfg.Store.Pinecone.Host)
	cfg.Store.Pinecone.IndexName = getEnv("PINECONE_INDEX", cfg.Store.Pinecone.IndexName)
	cfg.Store.Pinecone.Namespace = getEnv("PINECONE_NAMESPACE", cfg.Store.Pinecone.Namespace)
	cfg.Store.Qdrant.Host = getEnv("QDRANT_HOST", cfg.Store.Qdrant.Host)
	cfg.Store.Qdrant.Port = getEnvInt("QDRANT_PORT", cfg.Store.Qdrant.Port)
	cfg.Store.Qdrant.Collection = getEnv("QDRANT_COLLECTION", cfg.Store.Qdrant.Collection)
	cfg.Store.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Store.Qdrant.APIKey)

	cfg.Retrieval.TopK = getEnvInt("RAG_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.Concurrency = getEnvInt("RAG_CONCURRENCY", cfg.Retrieval.Concurrency)

	cfg.Database.Path = getEnv("RAG_DB_PATH", cfg.Database.Path)

	cfg.GitHub.Token = getEnv("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.GitHub.Owner = getEnv("GITHUB_OWNER", cfg.GitHub.Owner)
	cfg.GitHub.Repo = getEnv("GITHUB_REPO", cfg.GitHub.Repo)
	cfg.GitHub.Path = getEnv("GITHUB_PATH", cfg.GitHub.Path)

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.ServerMode = getEnv("SERVER_MODE", strconv.FormatBool(cfg.Server.ServerMode)) == "true"

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
