// Package chunker implements the hierarchical chunking stage of the ingest
// pipeline (C7 step 3): a recursive character splitter run once per level,
// with each level's chunks mapped to a parent chunk at the level above by
// proportional index rather than character-span containment.
package chunker

import (
	"strings"

	"ragserver/internal/model"
)

// separators is the ordered preference list the recursive splitter tries,
// from the most semantically meaningful boundary down to none at all.
var separators = []string{"\n\n", "\n", " ", ""}

// Chunk is one level's split of a document's text, before chunk ids or
// vector ids have been assigned.
type Chunk struct {
	Level         model.ChunkLevel
	LevelIndex    int
	ParentIndex   int // index into the previous level's chunk slice, -1 at level 0
	Content       string
	TokenEstimate int
}

// Split runs the hierarchical chunker over text, producing one slice of
// Chunks per level, largest first. A nil/empty levelSizes falls back to
// [2000, 1000, 500].
func Split(text string, levelSizes []int, overlap int) [][]Chunk {
	if len(levelSizes) == 0 {
		levelSizes = []int{2000, 1000, 500}
	}

	levels := make([][]Chunk, len(levelSizes))
	parentCount := 0
	for lvl, size := range levelSizes {
		pieces := recursiveSplit(text, size, separators)
		pieces = applyOverlap(pieces, overlap)
		chunks := make([]Chunk, len(pieces))
		for i, p := range pieces {
			chunks[i] = Chunk{
				Level:         model.ChunkLevel(lvl),
				LevelIndex:    i,
				ParentIndex:   parentIndex(lvl, i, len(pieces), parentCount),
				Content:       p,
				TokenEstimate: estimateTokens(p),
			}
		}
		levels[lvl] = chunks
		parentCount = len(pieces)
	}
	return levels
}

// parentIndex maps child index i (out of n children at this level) to the
// parent level's chunk index, proportionally rather than by character span:
// floor(i * parentCount / n), clamped to the last valid parent index.
func parentIndex(level, i, n, parentCount int) int {
	if level == 0 || parentCount == 0 || n == 0 {
		return -1
	}
	idx := (i * parentCount) / n
	if idx >= parentCount {
		idx = parentCount - 1
	}
	return idx
}

// recursiveSplit breaks text into pieces of at most size runes. It tries
// seps[0] first, greedily merging the resulting fragments into chunks no
// larger than size; any single fragment still over size after merging (no
// occurrence of seps[0], or a single line wider than size) is recursively
// split using the remaining separators.
func recursiveSplit(text string, size int, seps []string) []string {
	if size <= 0 {
		size = 1
	}
	if runeLen(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplit(text, size)
	}

	fragments := splitKeepingSeparator(text, seps[0])
	var out []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, frag := range fragments {
		fragLen := runeLen(frag)
		if fragLen > size {
			flush()
			out = append(out, recursiveSplit(frag, size, seps[1:])...)
			continue
		}
		if bufLen+fragLen > size {
			flush()
		}
		buf.WriteString(frag)
		bufLen += fragLen
	}
	flush()

	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// splitKeepingSeparator splits on sep, re-appending sep to every fragment
// except the last so the fragments rejoin to the original text.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		return []string{text}
	}
	raw := strings.Split(text, sep)
	out := make([]string, len(raw))
	for i, p := range raw {
		if i < len(raw)-1 {
			out[i] = p + sep
		} else {
			out[i] = p
		}
	}
	return out
}

// hardSplit is the last-resort fixed-width split used once no separator is
// left to try (the empty-string entry in separators).
func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// applyOverlap prepends the trailing `overlap` runes of each piece to the
// next piece, so consecutive chunks share context across their boundary.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1])
		tailLen := overlap
		if tailLen > len(prev) {
			tailLen = len(prev)
		}
		tail := string(prev[len(prev)-tailLen:])
		out[i] = tail + pieces[i]
	}
	return out
}

func runeLen(s string) int { return len([]rune(s)) }

// estimateTokens approximates token count at roughly 4 characters per
// token, rounded up.
func estimateTokens(s string) int {
	n := runeLen(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
