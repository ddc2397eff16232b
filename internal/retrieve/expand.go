package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ragserver/internal/logging"
	"ragserver/internal/model"
	"ragserver/internal/ports"
)

const expansionTTL = time.Hour

// expansionResponse is the JSON object the LLM is asked to produce.
type expansionResponse struct {
	Query        string   `json:"query"`
	Intent       string   `json:"intent"`
	SubQuestions []string `json:"sub_questions"`
}

// Expand produces the sub-questions used for fan-out retrieval: the
// original query plus up to expansionCount LLM-generated paraphrases.
// Expansion is best-effort: a missing LLM, an LLM error, or malformed JSON
// all fall back to []string{query} rather than blocking retrieval.
func (e *Engine) Expand(ctx context.Context, query string, expansionCount int) []string {
	key := expansionCacheKey(query)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(ctx, key); ok {
			if subs := decodeExpansion(cached, query, expansionCount); subs != nil {
				return subs
			}
		}
	}

	if e.LLM == nil {
		return []string{query}
	}

	raw, err := e.LLM.Chat(ctx, []ports.ChatMessage{
		{Role: model.RoleSystem, Content: expansionSystemPrompt(expansionCount)},
		{Role: model.RoleUser, Content: query},
	})
	if err != nil {
		logging.Log.WithError(err).Debug("query expansion LLM call failed, falling back to original query")
		return []string{query}
	}

	if e.Cache != nil {
		e.Cache.Set(ctx, key, raw, expansionTTL)
	}
	if subs := decodeExpansion(raw, query, expansionCount); subs != nil {
		return subs
	}
	return []string{query}
}

func expansionSystemPrompt(expansionCount int) string {
	return fmt.Sprintf(
		"You expand a user's question into up to %d alternative phrasings that "+
			"would help retrieve relevant passages from a document corpus. "+
			"Respond with ONLY a JSON object of the shape "+
			`{"query": "...", "intent": "...", "sub_questions": ["...", "..."]} `+
			"with between 1 and %d entries in sub_questions. No prose, no markdown fences.",
		expansionCount, expansionCount)
}

// decodeExpansion parses raw as an expansionResponse and returns
// query + sub-questions, or nil if raw is not well-formed.
func decodeExpansion(raw, query string, expansionCount int) []string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var resp expansionResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return nil
	}
	if len(resp.SubQuestions) == 0 {
		return nil
	}
	out := []string{query}
	seen := map[string]bool{query: true}
	for _, s := range resp.SubQuestions {
		if expansionCount > 0 && len(out) > expansionCount {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
