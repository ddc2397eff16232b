package vectorstore

import (
	"context"
	"sort"
	"sync"

	"ragserver/internal/ports"
)

// Memory is an in-process ports.VectorStore for tests and embedded use.
// Search computes squared L2 distance directly rather than relying on an ANN
// index, matching the score semantics (lower is better) real adapters report.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string][]ports.VectorPoint
}

func NewMemory() *Memory {
	return &Memory{partitions: make(map[string][]ports.VectorPoint)}
}

func (m *Memory) EnsurePartition(_ context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partitions[partition]; !ok {
		m.partitions[partition] = nil
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, partition string, points []ports.VectorPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.partitions[partition]
	byID := make(map[string]int, len(existing))
	for i, p := range existing {
		byID[p.VectorID] = i
	}
	for _, p := range points {
		if i, ok := byID[p.VectorID]; ok {
			existing[i] = p
			continue
		}
		existing = append(existing, p)
		byID[p.VectorID] = len(existing) - 1
	}
	m.partitions[partition] = existing
	return nil
}

func (m *Memory) Search(_ context.Context, partitions []string, query []float32, k int) ([]ports.VectorMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	var all []ports.VectorMatch
	for _, partition := range partitions {
		points, ok := m.partitions[partition]
		if !ok {
			continue
		}
		matches := make([]ports.VectorMatch, 0, len(points))
		for _, p := range points {
			matches = append(matches, ports.VectorMatch{
				VectorID:   p.VectorID,
				Content:    p.Content,
				FileID:     p.FileID,
				LevelIndex: p.LevelIndex,
				Score:      l2Distance(query, p.Vector),
			})
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
		if len(matches) > k {
			matches = matches[:k]
		}
		all = append(all, matches...)
	}
	return all, nil
}

func (m *Memory) DropPartition(_ context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, partition)
	return nil
}

func l2Distance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
