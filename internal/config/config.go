// Package config assembles the service's typed configuration from
// environment variables (with optional .env overlay for local development).
// Every field is named explicitly; unknown environment keys are ignored
// rather than collected into a free-form map.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LLMConfig configures the chat-completion backend (C6 adapter).
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// EmbeddingConfig configures the embedding backend (C1 adapter).
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// VectorStoreConfig configures the Qdrant adapter.
type VectorStoreConfig struct {
	Address string
	APIKey  string
	UseTLS  bool
}

// RelationalStoreConfig configures the Postgres files/chunks adapter.
type RelationalStoreConfig struct {
	DSN string
}

// SessionStoreConfig configures the Postgres session-store adapter.
// It shares the relational database by default but can be pointed elsewhere.
type SessionStoreConfig struct {
	DSN string
}

// CacheConfig configures the Redis cache adapter.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
}

// ObjectStoreConfig configures blob storage for uploaded bytes.
type ObjectStoreConfig struct {
	Backend     string // "local" or "s3"
	UploadDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string // set for S3-compatible services (MinIO)
	S3AccessKey string
	S3SecretKey string
}

// ChunkingConfig configures the chunking strategy.
type ChunkingConfig struct {
	Strategy   string // "hierarchical" or "recursive"
	LevelSizes []int  // default [2000, 1000, 500]
	Overlap    int    // default 100
}

// IngestConfig bounds document ingestion.
type IngestConfig struct {
	AllowedExtensions []string
	MaxFileSizeBytes  int64
}

// RetrievalConfig bounds the retrieval engine.
type RetrievalConfig struct {
	DefaultK        int
	ExpansionCount  int
	EnableExpansion bool
}

// PromptConfig bounds the prompt assembler.
type PromptConfig struct {
	HistoryWindow int
	TokenBudget   int
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// Config is the single, fully-typed configuration record for the service.
type Config struct {
	Server      ServerConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Relational  RelationalStoreConfig
	Session     SessionStoreConfig
	Cache       CacheConfig
	Objects     ObjectStoreConfig
	Chunking    ChunkingConfig
	Ingest      IngestConfig
	Retrieval   RetrievalConfig
	Prompt      PromptConfig
	LogLevel    string
	LogFile     string
}

// Load reads configuration from the environment, applying an optional .env
// overlay first, then explicit defaults for anything left unset.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config

	cfg.Server.Addr = getenv("SERVER_ADDR", ":8080")
	cfg.Server.CORSOrigins = splitCSV(getenv("CORS_ORIGINS", "*"))

	cfg.LLM.BaseURL = getenv("LLM_BASE_URL", "https://api.openai.com/v1")
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	cfg.LLM.Model = getenv("LLM_DEFAULT_MODEL", "gpt-4o-mini")

	cfg.Embedding.BaseURL = getenv("EMBEDDING_BASE_URL", cfg.LLM.BaseURL)
	cfg.Embedding.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), cfg.LLM.APIKey)
	cfg.Embedding.Model = getenv("EMBEDDING_MODEL", "text-embedding-3-small")
	dim, err := getenvInt("EMBEDDING_DIMENSION", 1536)
	if err != nil {
		return cfg, err
	}
	cfg.Embedding.Dimension = dim

	cfg.VectorStore.Address = getenv("VECTOR_STORE_ADDR", "localhost:6334")
	cfg.VectorStore.APIKey = os.Getenv("VECTOR_STORE_API_KEY")
	cfg.VectorStore.UseTLS = getenvBool("VECTOR_STORE_TLS", false)

	cfg.Relational.DSN = getenv("RELATIONAL_STORE_DSN", "postgres://localhost:5432/ragserver")
	cfg.Session.DSN = getenv("SESSION_STORE_DSN", cfg.Relational.DSN)

	cfg.Cache.Addr = getenv("CACHE_ADDR", "localhost:6379")
	cfg.Cache.Password = os.Getenv("CACHE_PASSWORD")
	cacheDB, err := getenvInt("CACHE_DB", 0)
	if err != nil {
		return cfg, err
	}
	cfg.Cache.DB = cacheDB

	cfg.Objects.Backend = getenv("OBJECT_STORE_BACKEND", "local")
	cfg.Objects.UploadDir = getenv("UPLOAD_DIR", "./data/uploads")
	cfg.Objects.S3Bucket = os.Getenv("OBJECT_STORE_S3_BUCKET")
	cfg.Objects.S3Region = getenv("OBJECT_STORE_S3_REGION", "us-east-1")
	cfg.Objects.S3Endpoint = os.Getenv("OBJECT_STORE_S3_ENDPOINT")
	cfg.Objects.S3AccessKey = os.Getenv("OBJECT_STORE_S3_ACCESS_KEY")
	cfg.Objects.S3SecretKey = os.Getenv("OBJECT_STORE_S3_SECRET_KEY")

	cfg.Chunking.Strategy = getenv("CHUNKING_STRATEGY", "hierarchical")
	levels, err := splitCSVInts(getenv("CHUNK_LEVEL_SIZES", "2000,1000,500"))
	if err != nil {
		return cfg, fmt.Errorf("parsing CHUNK_LEVEL_SIZES: %w", err)
	}
	cfg.Chunking.LevelSizes = levels
	overlap, err := getenvInt("CHUNK_OVERLAP", 100)
	if err != nil {
		return cfg, err
	}
	cfg.Chunking.Overlap = overlap

	cfg.Ingest.AllowedExtensions = splitCSV(getenv("ALLOWED_EXTENSIONS", "pdf,docx,txt,md"))
	maxBytes, err := getenvInt64("MAX_FILE_SIZE_BYTES", 50*1024*1024)
	if err != nil {
		return cfg, err
	}
	cfg.Ingest.MaxFileSizeBytes = maxBytes

	defaultK, err := getenvInt("RETRIEVAL_DEFAULT_K", 5)
	if err != nil {
		return cfg, err
	}
	cfg.Retrieval.DefaultK = defaultK
	expansionCount, err := getenvInt("RETRIEVAL_EXPANSION_COUNT", 3)
	if err != nil {
		return cfg, err
	}
	cfg.Retrieval.ExpansionCount = expansionCount
	cfg.Retrieval.EnableExpansion = getenvBool("RETRIEVAL_ENABLE_EXPANSION", true)

	historyWindow, err := getenvInt("PROMPT_HISTORY_WINDOW", 10)
	if err != nil {
		return cfg, err
	}
	cfg.Prompt.HistoryWindow = historyWindow
	tokenBudget, err := getenvInt("PROMPT_TOKEN_BUDGET", 6000)
	if err != nil {
		return cfg, err
	}
	cfg.Prompt.TokenBudget = tokenBudget

	cfg.LogLevel = getenv("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getenvInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", key, v, err)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCSVInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
