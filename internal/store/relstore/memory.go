package relstore

import (
	"context"
	"sync"

	"ragserver/internal/model"
	"ragserver/internal/ragerr"
)

// Memory is an in-process ports.RelationalStore for tests.
type Memory struct {
	mu     sync.RWMutex
	files  map[string]model.File
	chunks map[string][]model.Chunk // keyed by file_id
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]model.File), chunks: make(map[string][]model.Chunk)}
}

func (m *Memory) InsertFile(_ context.Context, f model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[f.FileID]; ok {
		return nil
	}
	m.files[f.FileID] = f
	return nil
}

func (m *Memory) UpdateFileState(_ context.Context, fileID string, state model.IngestState, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return ragerr.New(ragerr.NotFound, "file not found")
	}
	f.IngestState = state
	f.ChunkCount = chunkCount
	m.files[fileID] = f
	return nil
}

func (m *Memory) GetFile(_ context.Context, fileID string) (model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return model.File{}, ragerr.New(ragerr.NotFound, "file not found")
	}
	return f, nil
}

func (m *Memory) ListFiles(_ context.Context, ownerID string, limit, offset int) ([]model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var owned []model.File
	for _, f := range m.files {
		if f.OwnerID == ownerID {
			owned = append(owned, f)
		}
	}
	sortFilesByUploadedAtDesc(owned)
	if offset >= len(owned) {
		return nil, nil
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (m *Memory) DeleteFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
	delete(m.chunks, fileID)
	return nil
}

func (m *Memory) FileIDExists(_ context.Context, fileID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[fileID]
	return ok, nil
}

func (m *Memory) InsertChunks(_ context.Context, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.FileID] = append(m.chunks[c.FileID], c)
	}
	return nil
}

func (m *Memory) DeleteChunksByFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, fileID)
	return nil
}

func sortFilesByUploadedAtDesc(files []model.File) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && files[j].UploadedAt.After(files[j-1].UploadedAt); j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}
