package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic_SameInputSameVector(t *testing.T) {
	e := NewDeterministic(32, true, 7)
	v1, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	v2, err := e.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1[0], 32)
}

func TestDeterministic_DifferentInputDifferentVector(t *testing.T) {
	e := NewDeterministic(32, false, 0)
	out, err := e.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.NotEqual(t, out[0], out[1])
}

func TestDeterministic_EmptyTextIsZeroVector(t *testing.T) {
	e := NewDeterministic(16, true, 0)
	out, err := e.EmbedBatch(context.Background(), []string{""})
	require.NoError(t, err)
	for _, x := range out[0] {
		assert.Equal(t, float32(0), x)
	}
}
