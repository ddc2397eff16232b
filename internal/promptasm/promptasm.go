// Package promptasm assembles prompts: it composes a
// system message, recent session history, and retrieved contexts into the
// message list the LLM port consumes.
package promptasm

import (
	"fmt"
	"strings"

	"ragserver/internal/model"
	"ragserver/internal/ports"
	"ragserver/internal/retrieve"
	"ragserver/internal/util"
)

const contextSeparator = "\n\n---\n\n"

// Config bounds the assembler's history window and token budget.
type Config struct {
	HistoryWindow int // default 10
	TokenBudget   int // 0 disables budgeting
}

// Build composes the message list: one system message, up
// to cfg.HistoryWindow most recent history messages, and one synthesized
// user message carrying the retrieved contexts followed by the literal
// query. Contexts are ranked best-first by the caller; when the assembled
// messages exceed cfg.TokenBudget, history is trimmed from the oldest
// message first, then contexts are dropped from the tail (lowest-ranked
// first). The current query is never touched.
func Build(query string, contexts []retrieve.Result, history []model.Message, language string, cfg Config) ([]ports.ChatMessage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("promptasm: query must not be empty")
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = 10
	}
	trimmedHistory := recent(history, window)

	contents := make([]string, len(contexts))
	for i, c := range contexts {
		contents[i] = c.Content
	}

	system := systemPrompt(language)
	if cfg.TokenBudget > 0 {
		contents, trimmedHistory = fitBudget(system, query, contents, trimmedHistory, cfg.TokenBudget)
	}

	messages := make([]ports.ChatMessage, 0, 2+len(trimmedHistory))
	messages = append(messages, ports.ChatMessage{Role: model.RoleSystem, Content: system})
	for _, m := range trimmedHistory {
		messages = append(messages, ports.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ports.ChatMessage{Role: model.RoleUser, Content: userMessage(contents, query)})

	return messages, nil
}

func systemPrompt(language string) string {
	lang := language
	if lang == "" {
		lang = "the same language as the user's question"
	}
	return "You answer questions using ONLY the context provided in the user message below. " +
		"If the context does not contain enough information to answer, say so explicitly rather than guessing. " +
		"Reply in " + lang + ". Use clear prose, and Markdown formatting (lists, code blocks) where it aids readability."
}

func userMessage(contexts []string, query string) string {
	if len(contexts) == 0 {
		return "Context: (none retrieved)\n\nQuestion: " + query
	}
	return "Context:\n\n" + strings.Join(contexts, contextSeparator) + "\n\nQuestion: " + query
}

func recent(history []model.Message, n int) []model.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// fitBudget trims history from the oldest message, then drops the
// lowest-ranked (last) context entries, until the estimated token count of
// the assembled messages is within budget, so history is only cut while
// every context is still included. The estimate covers everything that
// actually ships: the system prompt, the remaining history bodies, and the
// synthesized user message with its separator scaffolding. The query is
// never dropped.
func fitBudget(system, query string, contexts []string, history []model.Message, budget int) ([]string, []model.Message) {
	systemCost := util.CountTokens(system)
	historyTokens := make([]int, len(history))
	historyTotal := 0
	for i, m := range history {
		historyTokens[i] = util.CountTokens(m.Content)
		historyTotal += historyTokens[i]
	}

	total := func() int {
		return systemCost + historyTotal + util.CountTokens(userMessage(contexts, query))
	}

	for len(history) > 0 && total() > budget {
		historyTotal -= historyTokens[0]
		historyTokens = historyTokens[1:]
		history = history[1:]
	}
	for len(contexts) > 0 && total() > budget {
		contexts = contexts[:len(contexts)-1]
	}

	return contexts, history
}
