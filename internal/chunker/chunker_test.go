package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_DefaultsLevelSizesWhenEmpty(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 400)
	levels := Split(text, nil, 0)
	require.Len(t, levels, 3)
	assert.NotEmpty(t, levels[0])
	assert.NotEmpty(t, levels[1])
	assert.NotEmpty(t, levels[2])
}

func TestSplit_SmallerLevelsHaveMoreChunks(t *testing.T) {
	text := strings.Repeat("paragraph one has some words in it.\n\n", 200)
	levels := Split(text, []int{2000, 1000, 500}, 0)
	assert.GreaterOrEqual(t, len(levels[1]), len(levels[0]))
	assert.GreaterOrEqual(t, len(levels[2]), len(levels[1]))
}

func TestSplit_EveryChunkRespectsSizeBound(t *testing.T) {
	text := strings.Repeat("word ", 3000)
	levels := Split(text, []int{100}, 0)
	for _, c := range levels[0] {
		assert.LessOrEqual(t, runeLen(c.Content), 100)
	}
}

func TestSplit_TopLevelParentIndexIsAlwaysNegativeOne(t *testing.T) {
	text := strings.Repeat("sentence. ", 500)
	levels := Split(text, []int{2000, 1000}, 0)
	for _, c := range levels[0] {
		assert.Equal(t, -1, c.ParentIndex)
	}
}

func TestSplit_ChildParentIndicesAreMonotonicAndInRange(t *testing.T) {
	text := strings.Repeat("sentence about foxes and dogs. ", 500)
	levels := Split(text, []int{2000, 1000, 500}, 0)

	last := -1
	for _, c := range levels[1] {
		assert.GreaterOrEqual(t, c.ParentIndex, last)
		assert.Less(t, c.ParentIndex, len(levels[0]))
		last = c.ParentIndex
	}
}

func TestSplit_SingleFragmentWiderThanSizeFallsBackToHardSplit(t *testing.T) {
	text := strings.Repeat("x", 5000) // no whitespace anywhere
	levels := Split(text, []int{100}, 0)
	for _, c := range levels[0] {
		assert.LessOrEqual(t, runeLen(c.Content), 100)
	}
	assert.Greater(t, len(levels[0]), 1)
}

func TestSplit_TextShorterThanSizeProducesSingleChunk(t *testing.T) {
	levels := Split("a short document.", []int{2000, 1000, 500}, 0)
	for _, lvl := range levels {
		require.Len(t, lvl, 1)
	}
}

func TestApplyOverlap_PrependsTrailingRunesOfPreviousPiece(t *testing.T) {
	pieces := []string{"abcdef", "ghijkl"}
	out := applyOverlap(pieces, 3)
	assert.Equal(t, "abcdef", out[0])
	assert.Equal(t, "defghijkl", out[1])
}

func TestApplyOverlap_NoopWhenOverlapIsZero(t *testing.T) {
	pieces := []string{"abc", "def"}
	out := applyOverlap(pieces, 0)
	assert.Equal(t, pieces, out)
}

func TestEstimateTokens_RoughlyFourCharsPerToken(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 3, estimateTokens(strings.Repeat("a", 9)))
}
