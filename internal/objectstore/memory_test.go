package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	content := []byte("%PDF-1.4 fake document bytes")
	require.NoError(t, store.Put(ctx, "file_0000000001_aaaaaaaa_bbbbbbbb.pdf", bytes.NewReader(content), "application/pdf"))

	reader, info, err := store.Get(ctx, "file_0000000001_aaaaaaaa_bbbbbbbb.pdf")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
}

func TestMemory_GetMissingKey(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	_, _, err := store.Get(context.Background(), "no-such-object")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Put(ctx, "doc.txt", bytes.NewReader([]byte("data")), "text/plain"))
	require.NoError(t, store.Delete(ctx, "doc.txt"))
	_, _, err := store.Get(ctx, "doc.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again is not an error
	require.NoError(t, store.Delete(ctx, "doc.txt"))
}

func TestMemory_Exists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	exists, err := store.Exists(ctx, "doc.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Put(ctx, "doc.txt", bytes.NewReader([]byte("data")), "text/plain"))
	exists, err = store.Exists(ctx, "doc.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemory_ListByPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	keys := []string{
		"file_0000000001_aaaaaaaa_bbbbbbbb.pdf",
		"file_0000000002_cccccccc_dddddddd.txt",
		"unrelated.bin",
	}
	for _, k := range keys {
		require.NoError(t, store.Put(ctx, k, bytes.NewReader([]byte("content")), ""))
	}

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	files, err := store.List(ctx, "file_")
	require.NoError(t, err)
	require.Len(t, files, 2)
	// sorted by key
	assert.Equal(t, keys[0], files[0].Key)
	assert.Equal(t, keys[1], files[1].Key)
}
