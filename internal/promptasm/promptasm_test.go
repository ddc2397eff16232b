package promptasm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragserver/internal/model"
	"ragserver/internal/retrieve"
	"ragserver/internal/util"
)

func TestBuild_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	_, err := Build("   ", nil, nil, "", Config{})
	require.Error(t, err)
}

func TestBuild_SystemMessageFirstAndMentionsLanguage(t *testing.T) {
	t.Parallel()
	messages, err := Build("what is RAG?", nil, nil, "French", Config{})
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, model.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "French")
}

func TestBuild_QueryAlwaysInFinalUserMessage(t *testing.T) {
	t.Parallel()
	contexts := []retrieve.Result{{Content: "RAG means retrieval-augmented generation."}}
	messages, err := Build("What does RAG stand for?", contexts, nil, "", Config{})
	require.NoError(t, err)
	last := messages[len(messages)-1]
	assert.Equal(t, model.RoleUser, last.Role)
	assert.Contains(t, last.Content, "What does RAG stand for?")
	assert.Contains(t, last.Content, "RAG means retrieval-augmented generation.")
}

func TestBuild_ContextsJoinedBySeparator(t *testing.T) {
	t.Parallel()
	contexts := []retrieve.Result{{Content: "first chunk"}, {Content: "second chunk"}}
	messages, err := Build("q", contexts, nil, "", Config{})
	require.NoError(t, err)
	last := messages[len(messages)-1].Content
	assert.Contains(t, last, "first chunk"+contextSeparator+"second chunk")
}

func TestBuild_HistoryWindowKeepsMostRecent(t *testing.T) {
	t.Parallel()
	history := make([]model.Message, 0, 15)
	for i := 0; i < 15; i++ {
		history = append(history, model.Message{
			Role:      model.RoleUser,
			Content:   "message-" + string(rune('a'+i)),
			Timestamp: time.Now(),
		})
	}
	messages, err := Build("final question", nil, history, "", Config{HistoryWindow: 3})
	require.NoError(t, err)

	// system + 3 history + 1 user = 5
	require.Len(t, messages, 5)
	assert.Contains(t, messages[1].Content, "message-"+string(rune('a'+12)))
	assert.Contains(t, messages[3].Content, "message-"+string(rune('a'+14)))
}

func TestBuild_TokenBudgetDropsLowestRankedContextFirst(t *testing.T) {
	t.Parallel()
	longChunk := strings.Repeat("word ", 200)
	contexts := []retrieve.Result{
		{Content: "top ranked short context"},
		{Content: longChunk},
	}
	// room for the system prompt plus the short context's user message, but
	// nowhere near the 200-token chunk
	budget := util.CountTokens(systemPrompt("")) + util.CountTokens(userMessage([]string{"top ranked short context"}, "q"))
	messages, err := Build("q", contexts, nil, "", Config{TokenBudget: budget})
	require.NoError(t, err)
	last := messages[len(messages)-1].Content
	assert.Contains(t, last, "top ranked short context")
	assert.NotContains(t, last, longChunk)
}

func TestBuild_TokenBudgetCoversAssembledMessages(t *testing.T) {
	t.Parallel()
	contexts := []retrieve.Result{
		{Content: strings.Repeat("alpha ", 50)},
		{Content: strings.Repeat("beta ", 50)},
		{Content: strings.Repeat("gamma ", 50)},
	}
	budget := util.CountTokens(systemPrompt("")) + 120
	messages, err := Build("q", contexts, nil, "", Config{TokenBudget: budget})
	require.NoError(t, err)

	total := 0
	for _, m := range messages {
		total += util.CountTokens(m.Content)
	}
	assert.LessOrEqual(t, total, budget)
}

func TestBuild_TokenBudgetNeverDropsQuery(t *testing.T) {
	t.Parallel()
	contexts := []retrieve.Result{{Content: strings.Repeat("word ", 500)}}
	messages, err := Build("the literal query text", contexts, nil, "", Config{TokenBudget: 1})
	require.NoError(t, err)
	last := messages[len(messages)-1].Content
	assert.Contains(t, last, "the literal query text")
}

func TestBuild_HistoryTrimmedOnlyAfterContextFullyIncluded(t *testing.T) {
	t.Parallel()
	history := []model.Message{
		{Role: model.RoleUser, Content: "old message", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "old reply", Timestamp: time.Now()},
	}
	contexts := []retrieve.Result{{Content: "short ctx"}}
	// budget covers the system prompt and the context-bearing user message
	// exactly, leaving no room for history
	budget := util.CountTokens(systemPrompt("")) + util.CountTokens(userMessage([]string{"short ctx"}, "q"))
	messages, err := Build("q", contexts, history, "", Config{TokenBudget: budget})
	require.NoError(t, err)
	last := messages[len(messages)-1].Content
	assert.Contains(t, last, "short ctx")
	for _, m := range messages[1 : len(messages)-1] {
		assert.NotContains(t, m.Content, "old message")
	}
}
