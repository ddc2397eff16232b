package events

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequencePattern is the grammar every ask stream must match:
// progress+ (token* progress)* (complete | error), exactly one terminal.
var sequencePattern = regexp.MustCompile(`^PP*(T*P)*(C|E)$`)

func sequenceString(evs []Event) string {
	var sb strings.Builder
	for _, e := range evs {
		switch e.Type {
		case TypeProgress:
			sb.WriteByte('P')
		case TypeToken:
			sb.WriteByte('T')
		case TypeComplete:
			sb.WriteByte('C')
		case TypeError:
			sb.WriteByte('E')
		}
	}
	return sb.String()
}

func drain(e *Emitter) []Event {
	var out []Event
	for ev := range e.Events() {
		out = append(out, ev)
	}
	return out
}

func TestEmitter_SuccessfulStreamMatchesOrderingGrammar(t *testing.T) {
	t.Parallel()
	e := New(8)
	go func() {
		e.EmitProgress(1, 0)
		e.EmitProgressExpanded(1, 100, 2)
		e.EmitProgress(2, 0)
		e.EmitProgressChunks(2, 100, 3)
		e.EmitProgress(3, 0)
		e.EmitProgress(3, 100)
		e.EmitProgress(4, 0)
		e.EmitToken("Hello")
		e.EmitToken(" world")
		e.EmitProgress(4, 100)
		e.EmitProgress(5, 0)
		e.EmitComplete(Complete{Answer: "Hello world", ContextCount: 3})
	}()
	evs := drain(e)
	seq := sequenceString(evs)
	assert.Regexp(t, sequencePattern, seq)
	assert.Equal(t, TypeComplete, evs[len(evs)-1].Type)
}

func TestEmitter_ErrorStreamHasExactlyOneTerminal(t *testing.T) {
	t.Parallel()
	e := New(4)
	go func() {
		e.EmitProgress(1, 0)
		e.EmitError("FORBIDDEN", "owner mismatch")
	}()
	evs := drain(e)
	seq := sequenceString(evs)
	assert.Regexp(t, sequencePattern, seq)
	assert.Equal(t, TypeError, evs[len(evs)-1].Type)
	terminals := 0
	for _, e := range evs {
		if e.Type == TypeComplete || e.Type == TypeError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestEmitter_NoTokenAfterTerminal(t *testing.T) {
	t.Parallel()
	e := New(4)
	e.EmitProgress(1, 0)
	e.EmitComplete(Complete{Answer: "done"})
	// further sends on a closed channel would panic; the emitter refuses
	// silently instead once closed.
	assert.NotPanics(t, func() {
		e.EmitToken("late")
	})
	evs := drain(e)
	for _, ev := range evs {
		assert.NotEqual(t, TypeToken, ev.Type)
	}
}

func TestMarshalSSE_TokenUsesMarkdownTokenEventName(t *testing.T) {
	t.Parallel()
	raw, err := MarshalSSE(newToken("chunk"))
	require.NoError(t, err)
	s := string(raw)
	assert.True(t, strings.HasPrefix(s, "event: markdown_token\n"))
	assert.Contains(t, s, `"text":"chunk"`)
	assert.True(t, strings.HasSuffix(s, "\n\n"))
}

func TestMarshalSSE_CompleteAndErrorNames(t *testing.T) {
	t.Parallel()
	raw, err := MarshalSSE(newComplete(Complete{Answer: "a"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "event: complete\n"))

	raw, err = MarshalSSE(newError("INTERNAL", "boom"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "event: error\n"))
}

func TestMarshalSSE_ProgressIncludesPhaseAndPct(t *testing.T) {
	t.Parallel()
	raw, err := MarshalSSE(newProgress(Progress{Phase: 2, Pct: 100, UniqueChunks: 5}))
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"phase":2`)
	assert.Contains(t, s, `"pct":100`)
	assert.Contains(t, s, `"unique_chunks":5`)
}

func TestEmitter_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	e := New(1)
	e.EmitComplete(Complete{Answer: strconv.Itoa(1)})
	assert.NotPanics(t, func() { e.close() })
}

func TestEmitter_AbortClosesWithNoTerminalEvent(t *testing.T) {
	t.Parallel()
	e := New(4)
	e.EmitProgress(1, 0)
	e.Abort()
	evs := drain(e)
	assert.Len(t, evs, 1)
	assert.Equal(t, TypeProgress, evs[0].Type)

	// Further emits after Abort are dropped, same as after Complete/Error.
	assert.NotPanics(t, func() { e.EmitProgress(2, 0) })
}
