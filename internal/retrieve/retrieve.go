// Package retrieve implements the retrieval engine: optional query
// expansion, concurrent fan-out ANN search across sub-questions, and a
// deterministic dedup/rank merge.
package retrieve

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"ragserver/internal/logging"
	"ragserver/internal/ports"
	"ragserver/internal/ragerr"
)

const (
	embeddingCacheTTL = 24 * time.Hour
	searchCacheTTL    = 30 * time.Minute
)

// Metrics is the seam the retrieval engine reports counts and timings through.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// Engine wires the retrieval pipeline's stages to concrete ports.
type Engine struct {
	Embedder ports.Embedder
	Vectors  ports.VectorStore
	Cache    ports.Cache
	LLM      ports.LLM
	Metrics  Metrics
}

// New constructs an Engine from its port dependencies.
func New(embedder ports.Embedder, vectors ports.VectorStore, cache ports.Cache, llm ports.LLM, m Metrics) *Engine {
	return &Engine{Embedder: embedder, Vectors: vectors, Cache: cache, LLM: llm, Metrics: m}
}

// Result is one ranked retrieval hit.
type Result struct {
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
	FileID     string  `json:"file_id"`
	LevelIndex int     `json:"level_index"`
}

// Outcome is the full result of a Retrieve call: the ranked, merged hits
// plus the sub-questions that were actually searched (including the
// original query), for the caller to surface as expanded_questions.
type Outcome struct {
	Results           []Result
	ExpandedQuestions []string
}

// Retrieve runs Expand followed by Search, for callers that don't need the
// two stages separated.
func (e *Engine) Retrieve(ctx context.Context, query string, fileIDs []string, k int, enableExpansion bool, expansionCount int) (Outcome, error) {
	subQuestions := []string{query}
	if enableExpansion {
		subQuestions = e.Expand(ctx, query, expansionCount)
	}
	results, err := e.Search(ctx, subQuestions, fileIDs, k)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Results: results, ExpandedQuestions: subQuestions}, nil
}

// Search embeds every sub-question, fans the searches out concurrently
// across the named files' partitions, and merges the union into a ranked,
// deduplicated top-k. An empty result set is a valid outcome.
func (e *Engine) Search(ctx context.Context, subQuestions, fileIDs []string, k int) ([]Result, error) {
	if len(fileIDs) == 0 {
		return nil, ragerr.New(ragerr.Validation, "file_ids must not be empty")
	}
	if len(subQuestions) == 0 {
		return nil, ragerr.New(ragerr.Validation, "at least one sub-question is required")
	}
	if k <= 0 {
		k = 5
	}
	perSub := e.fanOutSearch(ctx, subQuestions, fileIDs, k)
	return mergeAndRank(perSub, k), nil
}

// fanOutSearch runs one search per sub-question concurrently; each is
// independent and failure-isolated, degrading to an empty result list on
// error rather than surfacing it.
func (e *Engine) fanOutSearch(ctx context.Context, subQuestions, fileIDs []string, k int) [][]Result {
	out := make([][]Result, len(subQuestions))
	var wg sync.WaitGroup
	for i, q := range subQuestions {
		i, q := i, q
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = e.searchOne(ctx, q, fileIDs, k)
		}()
	}
	wg.Wait()
	return out
}

func (e *Engine) searchOne(ctx context.Context, question string, fileIDs []string, k int) []Result {
	key := searchCacheKey(question, fileIDs, k)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(ctx, key); ok {
			var results []Result
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				e.count("retrieval_cache_total", map[string]string{"kind": "search", "outcome": "hit"})
				return results
			}
		}
	}
	e.count("retrieval_cache_total", map[string]string{"kind": "search", "outcome": "miss"})

	vec, err := e.embedCached(ctx, question)
	if err != nil {
		logging.Log.WithError(err).WithField("question", question).Warn("sub-question embedding failed, degrading to empty result")
		return nil
	}

	partitions := make([]string, len(fileIDs))
	for i, fid := range fileIDs {
		partitions[i] = "file_" + fid
	}
	start := time.Now()
	matches, err := e.Vectors.Search(ctx, partitions, vec, k)
	if err != nil {
		logging.Log.WithError(err).WithField("question", question).Warn("sub-question search failed, degrading to empty result")
		return nil
	}
	e.observe("vector_search_seconds", time.Since(start).Seconds(), nil)

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{Content: m.Content, Score: m.Score, FileID: m.FileID, LevelIndex: m.LevelIndex}
	}

	if e.Cache != nil {
		if encoded, err := json.Marshal(results); err == nil {
			e.Cache.Set(ctx, key, string(encoded), searchCacheTTL)
		}
	}
	return results
}

func (e *Engine) embedCached(ctx context.Context, text string) ([]float32, error) {
	key := embeddingCacheKey(text)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(ctx, key); ok {
			var vec []float32
			if err := json.Unmarshal([]byte(cached), &vec); err == nil {
				e.count("retrieval_cache_total", map[string]string{"kind": "embedding", "outcome": "hit"})
				return vec, nil
			}
		}
	}
	vecs, err := e.Embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ragerr.New(ragerr.EmbeddingFailed, "embedder returned no vectors")
	}
	if e.Cache != nil {
		if encoded, err := json.Marshal(vecs[0]); err == nil {
			e.Cache.Set(ctx, key, string(encoded), embeddingCacheTTL)
		}
	}
	return vecs[0], nil
}

func (e *Engine) count(name string, labels map[string]string) {
	if e.Metrics != nil {
		e.Metrics.IncCounter(name, labels)
	}
}

func (e *Engine) observe(name string, value float64, labels map[string]string) {
	if e.Metrics != nil {
		e.Metrics.ObserveHistogram(name, value, labels)
	}
}

// mergeAndRank unions all sub-question results, deduplicates by content
// (first occurrence wins), sorts ascending by score with a lexicographic
// (file_id, level_index) tiebreak, and returns the top-k overall.
func mergeAndRank(perSub [][]Result, k int) []Result {
	seen := make(map[string]bool)
	var union []Result
	for _, results := range perSub {
		for _, r := range results {
			if seen[r.Content] {
				continue
			}
			seen[r.Content] = true
			union = append(union, r)
		}
	}
	sort.SliceStable(union, func(i, j int) bool {
		a, b := union[i], union[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		return a.LevelIndex < b.LevelIndex
	})
	if len(union) > k {
		union = union[:k]
	}
	return union
}
