// Package ports defines the backend contracts the ingest engine and query
// pipeline consume. Concrete adapters live under internal/store,
// internal/cache, internal/embedder, and internal/llmclient; the pipeline and
// ingest engine depend only on these interfaces.
package ports

import (
	"context"
	"time"

	"ragserver/internal/model"
)

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorMatch is one result row from a vector-store search.
type VectorMatch struct {
	VectorID   string
	Content    string
	FileID     string
	LevelIndex int
	Score      float32 // L2 distance; lower is better
}

// VectorPoint is a vector to be inserted into a partition.
type VectorPoint struct {
	VectorID   string
	Vector     []float32
	FileID     string
	LevelIndex int
	Content    string
	InsertedAt time.Time
}

// VectorStore is a partitioned ANN index keyed by file id.
type VectorStore interface {
	EnsurePartition(ctx context.Context, partition string) error
	Upsert(ctx context.Context, partition string, points []VectorPoint) error
	Search(ctx context.Context, partitions []string, query []float32, k int) ([]VectorMatch, error)
	DropPartition(ctx context.Context, partition string) error
}

// RelationalStore holds durable file and chunk metadata plus the
// ownership index.
type RelationalStore interface {
	InsertFile(ctx context.Context, f model.File) error
	UpdateFileState(ctx context.Context, fileID string, state model.IngestState, chunkCount int) error
	GetFile(ctx context.Context, fileID string) (model.File, error)
	ListFiles(ctx context.Context, ownerID string, limit, offset int) ([]model.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	FileIDExists(ctx context.Context, fileID string) (bool, error)
	InsertChunks(ctx context.Context, chunks []model.Chunk) error
	DeleteChunksByFile(ctx context.Context, fileID string) error
}

// SessionStore is an append-only conversation log keyed by session id.
type SessionStore interface {
	CreateIfAbsent(ctx context.Context, sessionID, ownerID string, fileIDs []string) error
	Append(ctx context.Context, sessionID string, role model.Role, content string, metadata map[string]any) error
	Recent(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
	Delete(ctx context.Context, sessionID string) error
}

// Cache is a keyed TTL store. It is advisory: every caller must remain
// correct if Get always reports a miss.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// ChatMessage is one message passed to the LLM port.
type ChatMessage struct {
	Role    model.Role
	Content string
}

// StreamDelta is one incremental fragment of a streaming completion.
type StreamDelta struct {
	Text string
	Done bool
	Err  error
}

// LLM provides chat completion, streaming and non-streaming.
type LLM interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	ChatStream(ctx context.Context, messages []ChatMessage) (<-chan StreamDelta, error)
}
