// Package model defines the data vocabulary shared by every component of the
// RAG service: files, chunks, sessions, and cache entries. No component
// invents a parallel struct for these concepts.
package model

import "time"

// IngestState is the lifecycle state of a File.
type IngestState string

const (
	IngestPending   IngestState = "PENDING"
	IngestCompleted IngestState = "COMPLETED"
	IngestFailed    IngestState = "FAILED"
)

// File is an uploaded document and its ingest lifecycle.
type File struct {
	FileID          string      `json:"file_id"`
	OwnerID         string      `json:"owner_id"`
	Filename        string      `json:"filename"`
	ContentType     string      `json:"content_type"`
	SizeBytes       int64       `json:"size_bytes"`
	UploadedAt      time.Time   `json:"uploaded_at"`
	ChunkCount      int         `json:"chunk_count"`
	IngestState     IngestState `json:"ingest_state"`
	VectorPartition string      `json:"vector_partition"`
}

// ChunkLevel identifies a hierarchical chunking level.
type ChunkLevel int

const (
	LevelParent     ChunkLevel = 0
	LevelChild      ChunkLevel = 1
	LevelGrandchild ChunkLevel = 2
)

// Chunk is a contiguous span of extracted text, the unit of vector indexing.
type Chunk struct {
	ChunkID            string     `json:"chunk_id"`
	FileID             string     `json:"file_id"`
	Level              ChunkLevel `json:"level"`
	LevelIndex         int        `json:"level_index"`
	ParentChunkID      string     `json:"parent_chunk_id,omitempty"`
	Content            string     `json:"content"`
	TokenCountEstimate int        `json:"token_count_estimate"`
	VectorID           string     `json:"vector_id"`
}

// Role identifies the author of a session message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// Message is one append-only entry in a session's conversation log.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Session is a conversation bound to zero or more files.
type Session struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	FileIDs   []string  `json:"file_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}
