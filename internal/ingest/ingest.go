// Package ingest implements the document ingest engine: validate, extract,
// hierarchically chunk, embed, index, and record an uploaded document.
// Validation and extraction failures are returned before any state is
// written, so they leave no file row behind. A failure while storing the
// blob, embedding, or indexing marks the file row FAILED rather than
// leaving it stuck PENDING.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"ragserver/internal/chunker"
	"ragserver/internal/config"
	"ragserver/internal/extract"
	"ragserver/internal/logging"
	"ragserver/internal/model"
	"ragserver/internal/objectstore"
	"ragserver/internal/ports"
	"ragserver/internal/ragerr"
	"ragserver/internal/validation"
)

// maxFileIDRetries bounds the uniqueness-collision retry loop: the random
// component is regenerated on collision, up to this count.
const maxFileIDRetries = 5

// Metrics is the seam the ingest engine reports counts and timings through.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// Engine wires the ingest pipeline's stages to concrete ports.
type Engine struct {
	Embedder   ports.Embedder
	Vectors    ports.VectorStore
	Relational ports.RelationalStore
	Objects    objectstore.Store
	Metrics    Metrics
	Limits     config.IngestConfig
	Chunking   config.ChunkingConfig
}

// New constructs an Engine from its port dependencies and configuration.
func New(embedder ports.Embedder, vectors ports.VectorStore, relational ports.RelationalStore, objects objectstore.Store, m Metrics, ingestCfg config.IngestConfig, chunkingCfg config.ChunkingConfig) *Engine {
	return &Engine{
		Embedder:   embedder,
		Vectors:    vectors,
		Relational: relational,
		Objects:    objects,
		Metrics:    m,
		Limits:     ingestCfg,
		Chunking:   chunkingCfg,
	}
}

// Result is the outcome of a successful ingest.
type Result struct {
	FileID     string
	ChunkCount int
	Strategy   string
}

// Ingest runs the full pipeline: validate, extract, chunk, embed, index,
// record. ownerID must already have been checked against the caller's
// identity upstream; here it is only checked for shape.
func (e *Engine) Ingest(ctx context.Context, ownerID, filename string, data []byte) (Result, error) {
	if err := validation.OwnerID(ownerID); err != nil {
		return Result{}, ragerr.Wrap(ragerr.Validation, "owner_id", err)
	}
	ext, err := validation.Extension(filename, e.Limits.AllowedExtensions)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.Validation, "file extension", err)
	}
	if err := validation.Size(int64(len(data)), e.Limits.MaxFileSizeBytes); err != nil {
		return Result{}, ragerr.Wrap(ragerr.Validation, "file size", err)
	}

	contentType := contentTypeFor(ext)
	text, err := extract.Text(filename, contentType, data)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ragerr.New(ragerr.ExtractionFailed, "extracted corpus is whitespace-only")
	}

	fileID, err := e.reserveFileID(ctx, data)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.Internal, "reserve file id", err)
	}
	partition := "file_" + fileID

	file := model.File{
		FileID:          fileID,
		OwnerID:         ownerID,
		Filename:        filename,
		ContentType:     contentType,
		SizeBytes:       int64(len(data)),
		UploadedAt:      time.Now().UTC(),
		IngestState:     model.IngestPending,
		VectorPartition: partition,
	}
	if err := e.Relational.InsertFile(ctx, file); err != nil {
		return Result{}, ragerr.Wrap(ragerr.PersistenceFailed, "insert file row", err)
	}

	if e.Objects != nil {
		if err := e.Objects.Put(ctx, objectKey(fileID, ext), bytes.NewReader(data), contentType); err != nil {
			e.fail(ctx, fileID)
			return Result{}, ragerr.Wrap(ragerr.PersistenceFailed, "store blob", err)
		}
	}

	levels, strategy := e.splitLevels(text)
	chunks := assignChunkIDs(fileID, levels)

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	vectors, err := e.Embedder.EmbedBatch(ctx, contents)
	if err != nil {
		e.fail(ctx, fileID)
		return Result{}, ragerr.Wrap(ragerr.EmbeddingFailed, "embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		e.fail(ctx, fileID)
		return Result{}, ragerr.New(ragerr.EmbeddingFailed, fmt.Sprintf("embedding count mismatch: got %d want %d", len(vectors), len(chunks)))
	}

	if err := e.Vectors.EnsurePartition(ctx, partition); err != nil {
		e.fail(ctx, fileID)
		return Result{}, ragerr.Wrap(ragerr.IndexFailed, "create partition", err)
	}
	insertedAt := time.Now().UTC()
	points := make([]ports.VectorPoint, len(chunks))
	for i, c := range chunks {
		points[i] = ports.VectorPoint{
			VectorID:   c.ChunkID,
			Vector:     vectors[i],
			FileID:     fileID,
			LevelIndex: c.LevelIndex,
			Content:    c.Content,
			InsertedAt: insertedAt,
		}
	}
	if err := e.Vectors.Upsert(ctx, partition, points); err != nil {
		e.fail(ctx, fileID)
		return Result{}, ragerr.Wrap(ragerr.IndexFailed, "upsert vectors", err)
	}

	if err := e.Relational.InsertChunks(ctx, chunks); err != nil {
		logging.Log.WithError(err).WithField("file_id", fileID).Warn("chunk rows not persisted; vectors already indexed")
	}

	if err := e.Relational.UpdateFileState(ctx, fileID, model.IngestCompleted, len(chunks)); err != nil {
		return Result{}, ragerr.Wrap(ragerr.PersistenceFailed, "mark file completed", err)
	}
	if e.Metrics != nil {
		e.Metrics.IncCounter("ingest_completed_total", map[string]string{"strategy": strategy})
	}
	return Result{FileID: fileID, ChunkCount: len(chunks), Strategy: strategy}, nil
}

// Delete removes a file's vector partition, blob, chunk rows, and row.
func (e *Engine) Delete(ctx context.Context, file model.File) error {
	if err := e.Vectors.DropPartition(ctx, file.VectorPartition); err != nil {
		return ragerr.Wrap(ragerr.IndexFailed, "drop partition", err)
	}
	if e.Objects != nil {
		ext := strings.TrimPrefix(strings.ToLower(extOf(file.Filename)), ".")
		if err := e.Objects.Delete(ctx, objectKey(file.FileID, ext)); err != nil {
			logging.Log.WithError(err).WithField("file_id", file.FileID).Warn("blob delete failed")
		}
	}
	if err := e.Relational.DeleteChunksByFile(ctx, file.FileID); err != nil {
		logging.Log.WithError(err).WithField("file_id", file.FileID).Warn("chunk row cleanup failed")
	}
	if err := e.Relational.DeleteFile(ctx, file.FileID); err != nil {
		return ragerr.Wrap(ragerr.PersistenceFailed, "delete file row", err)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, fileID string) {
	if err := e.Relational.UpdateFileState(ctx, fileID, model.IngestFailed, 0); err != nil {
		logging.Log.WithError(err).WithField("file_id", fileID).Warn("failed to mark file as FAILED")
	}
}

func (e *Engine) reserveFileID(ctx context.Context, content []byte) (string, error) {
	now := time.Now().Unix()
	var lastErr error
	for i := 0; i < maxFileIDRetries; i++ {
		id, err := newFileID(now, content)
		if err != nil {
			return "", err
		}
		exists, err := e.Relational.FileIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		lastErr = fmt.Errorf("file id %s already exists", id)
	}
	return "", fmt.Errorf("exhausted %d file id collision retries: %w", maxFileIDRetries, lastErr)
}

// splitLevels dispatches to the configured chunking strategy.
func (e *Engine) splitLevels(text string) ([][]chunker.Chunk, string) {
	if strings.EqualFold(e.Chunking.Strategy, "recursive") {
		return chunker.Split(text, []int{1000}, 200), "recursive"
	}
	sizes := e.Chunking.LevelSizes
	if len(sizes) == 0 {
		sizes = []int{2000, 1000, 500}
	}
	return chunker.Split(text, sizes, e.Chunking.Overlap), "hierarchical"
}

// assignChunkIDs flattens the per-level splitter output into model.Chunks
// with fresh, file-scoped chunk ids and resolved parent chunk ids.
func assignChunkIDs(fileID string, levels [][]chunker.Chunk) []model.Chunk {
	ids := make([][]string, len(levels))
	var out []model.Chunk
	for lvl, level := range levels {
		ids[lvl] = make([]string, len(level))
		for i, c := range level {
			id := fmt.Sprintf("%s_l%d_%d", fileID, lvl, i)
			ids[lvl][i] = id
			var parentID string
			if lvl > 0 && c.ParentIndex >= 0 && c.ParentIndex < len(ids[lvl-1]) {
				parentID = ids[lvl-1][c.ParentIndex]
			}
			out = append(out, model.Chunk{
				ChunkID:            id,
				FileID:             fileID,
				Level:              c.Level,
				LevelIndex:         c.LevelIndex,
				ParentChunkID:      parentID,
				Content:            c.Content,
				TokenCountEstimate: c.TokenEstimate,
				VectorID:           id,
			})
		}
	}
	return out
}

func contentTypeFor(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

func objectKey(fileID, ext string) string {
	if ext == "" {
		return fileID
	}
	return fileID + "." + ext
}

func extOf(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return filename[i+1:]
}
