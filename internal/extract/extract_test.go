package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragserver/internal/ragerr"
)

func TestText_PlainTextPassthrough(t *testing.T) {
	got, err := Text("notes.txt", "text/plain", []byte("hello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got)
}

func TestText_MarkdownBySuffix(t *testing.T) {
	got, err := Text("readme.md", "application/octet-stream", []byte("# title"))
	require.NoError(t, err)
	assert.Equal(t, "# title", got)
}

func TestText_UnsupportedContentType(t *testing.T) {
	_, err := Text("image.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.Error(t, err)
	assert.True(t, ragerr.Is(err, ragerr.ExtractionFailed))
}

func TestText_EmptyFileFails(t *testing.T) {
	_, err := Text("empty.txt", "text/plain", nil)
	require.Error(t, err)
	assert.True(t, ragerr.Is(err, ragerr.ExtractionFailed))
}

func TestDocxText_NotAZipFails(t *testing.T) {
	_, err := docxText([]byte("not a zip"))
	require.Error(t, err)
	assert.True(t, ragerr.Is(err, ragerr.ExtractionFailed))
}
