package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "CHUNK_LEVEL_SIZES", "CHUNK_OVERLAP", "ALLOWED_EXTENSIONS", "RETRIEVAL_DEFAULT_K")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{2000, 1000, 500}, cfg.Chunking.LevelSizes)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, []string{"pdf", "docx", "txt", "md"}, cfg.Ingest.AllowedExtensions)
	assert.Equal(t, 5, cfg.Retrieval.DefaultK)
	assert.Equal(t, int64(50*1024*1024), cfg.Ingest.MaxFileSizeBytes)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("CHUNK_LEVEL_SIZES", "3000,1500")
	t.Cleanup(func() { os.Unsetenv("CHUNK_LEVEL_SIZES") })
	os.Setenv("RETRIEVAL_ENABLE_EXPANSION", "false")
	t.Cleanup(func() { os.Unsetenv("RETRIEVAL_ENABLE_EXPANSION") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{3000, 1500}, cfg.Chunking.LevelSizes)
	assert.False(t, cfg.Retrieval.EnableExpansion)
}

func TestLoadRejectsInvalidInt(t *testing.T) {
	os.Setenv("CHUNK_OVERLAP", "not-a-number")
	t.Cleanup(func() { os.Unsetenv("CHUNK_OVERLAP") })

	_, err := Load()
	require.Error(t, err)
}
