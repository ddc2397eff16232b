package ingest

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragserver/internal/config"
	"ragserver/internal/embedder"
	"ragserver/internal/model"
	"ragserver/internal/objectstore"
	"ragserver/internal/ragerr"
	"ragserver/internal/store/relstore"
	"ragserver/internal/store/vectorstore"
)

const testOwner = "f47ac10b-58cc-4372-a567-0e02b2c3d479"

var fileIDPattern = regexp.MustCompile(`^file_\d{10}_[0-9a-f]{8}_[0-9a-f]{8}$`)

func newTestEngine() *Engine {
	return New(
		embedder.NewDeterministic(32, true, 0),
		vectorstore.NewMemory(),
		relstore.NewMemory(),
		objectstore.NewMemory(),
		nil,
		config.IngestConfig{AllowedExtensions: []string{"txt", "md"}, MaxFileSizeBytes: 1 << 20},
		config.ChunkingConfig{Strategy: "hierarchical", LevelSizes: []int{40, 20, 10}, Overlap: 2},
	)
}

func repeatedText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("RAG means Retrieval-Augmented Generation. ")
	}
	return sb.String()
}

func TestIngest_FileIDFormatAndUniqueness(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	ctx := context.Background()

	r1, err := e.Ingest(ctx, testOwner, "doc1.txt", []byte(repeatedText(20)))
	require.NoError(t, err)
	r2, err := e.Ingest(ctx, testOwner, "doc2.txt", []byte(repeatedText(20)))
	require.NoError(t, err)

	assert.Regexp(t, fileIDPattern, r1.FileID)
	assert.Regexp(t, fileIDPattern, r2.FileID)
	assert.NotEqual(t, r1.FileID, r2.FileID)
}

func TestIngest_HierarchicalMarksFileCompleted(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	ctx := context.Background()

	result, err := e.Ingest(ctx, testOwner, "doc.txt", []byte(repeatedText(60)))
	require.NoError(t, err)
	assert.Equal(t, "hierarchical", result.Strategy)

	rel := e.Relational.(*relstore.Memory)
	file, err := rel.GetFile(ctx, result.FileID)
	require.NoError(t, err)
	assert.Equal(t, model.IngestCompleted, file.IngestState)
	assert.Equal(t, result.ChunkCount, file.ChunkCount)
}

func TestAssignChunkIDs_ParentLevelInvariant(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	text := repeatedText(80)
	levels, strategy := e.splitLevels(text)
	require.Equal(t, "hierarchical", strategy)
	require.Len(t, levels, 3)

	chunks := assignChunkIDs("file_test", levels)
	byID := make(map[string]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}
	for _, c := range chunks {
		if c.Level == model.LevelParent {
			assert.Empty(t, c.ParentChunkID)
			continue
		}
		parent, ok := byID[c.ParentChunkID]
		require.True(t, ok, "parent %q must exist for child %q", c.ParentChunkID, c.ChunkID)
		assert.Equal(t, c.Level-1, parent.Level)
	}
}

func TestIngest_RecursiveStrategyHasNoParentLinkage(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	e.Chunking = config.ChunkingConfig{Strategy: "recursive"}
	result, err := e.Ingest(context.Background(), testOwner, "doc.txt", []byte(repeatedText(60)))
	require.NoError(t, err)
	assert.Equal(t, "recursive", result.Strategy)

	levels, _ := e.splitLevels(repeatedText(60))
	require.Len(t, levels, 1)
	for _, c := range assignChunkIDs(result.FileID, levels) {
		assert.Empty(t, c.ParentChunkID)
	}
}

func TestIngest_ValidationRejectsBeforeAnyStateMutated(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	ctx := context.Background()

	_, err := e.Ingest(ctx, "not-a-uuid", "doc.txt", []byte("hello"))
	require.Error(t, err)
	assert.Equal(t, ragerr.Validation, ragerr.KindOf(err))

	_, err = e.Ingest(ctx, testOwner, "archive.zip", []byte("hello"))
	require.Error(t, err)
	assert.Equal(t, ragerr.Validation, ragerr.KindOf(err))

	_, err = e.Ingest(ctx, testOwner, "doc.txt", nil)
	require.Error(t, err)
	assert.Equal(t, ragerr.Validation, ragerr.KindOf(err))

	files, err := e.Relational.ListFiles(ctx, testOwner, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIngest_ExtractionFailureOnWhitespaceOnly(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	_, err := e.Ingest(context.Background(), testOwner, "doc.txt", []byte("   \n\t  "))
	require.Error(t, err)
	assert.Equal(t, ragerr.ExtractionFailed, ragerr.KindOf(err))
}

type failingEmbedder struct{}

func (failingEmbedder) Dimension() int { return 8 }
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend unreachable")
}

func TestIngest_EmbeddingFailureMarksFileFailed(t *testing.T) {
	t.Parallel()
	rel := relstore.NewMemory()
	e := New(
		failingEmbedder{},
		vectorstore.NewMemory(),
		rel,
		objectstore.NewMemory(),
		nil,
		config.IngestConfig{AllowedExtensions: []string{"txt"}, MaxFileSizeBytes: 1 << 20},
		config.ChunkingConfig{Strategy: "hierarchical", LevelSizes: []int{40, 20, 10}, Overlap: 2},
	)
	ctx := context.Background()
	_, err := e.Ingest(ctx, testOwner, "doc.txt", []byte(repeatedText(20)))
	require.Error(t, err)
	assert.Equal(t, ragerr.EmbeddingFailed, ragerr.KindOf(err))

	files, err := rel.ListFiles(ctx, testOwner, 10, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, model.IngestFailed, files[0].IngestState)
}

func TestIngest_MaxSizeBoundary(t *testing.T) {
	t.Parallel()
	e := newTestEngine()
	e.Limits = config.IngestConfig{AllowedExtensions: []string{"txt"}, MaxFileSizeBytes: 100}
	ctx := context.Background()

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = 'a'
	}
	_, err := e.Ingest(ctx, testOwner, "doc.txt", payload)
	require.NoError(t, err)

	_, err = e.Ingest(ctx, testOwner, "doc2.txt", append(payload, 'a'))
	require.Error(t, err)
	assert.Equal(t, ragerr.Validation, ragerr.KindOf(err))
}

