package sessionstore

import (
	"context"
	"sync"
	"time"

	"ragserver/internal/model"
)

// Memory is an in-process ports.SessionStore for tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*model.Session)}
}

func (m *Memory) CreateIfAbsent(_ context.Context, sessionID, ownerID string, fileIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLocked(sessionID, ownerID, fileIDs)
	return nil
}

func (m *Memory) createLocked(sessionID, ownerID string, fileIDs []string) *model.Session {
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	now := time.Now()
	s := &model.Session{
		SessionID: sessionID,
		OwnerID:   ownerID,
		FileIDs:   fileIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[sessionID] = s
	return s
}

func (m *Memory) Append(_ context.Context, sessionID string, role model.Role, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.createLocked(sessionID, "", nil)
	now := time.Now()
	s.Messages = append(s.Messages, model.Message{Role: role, Content: content, Timestamp: now, Metadata: metadata})
	s.UpdatedAt = now
	return nil
}

func (m *Memory) Recent(_ context.Context, sessionID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if limit <= 0 || limit >= len(s.Messages) {
		out := make([]model.Message, len(s.Messages))
		copy(out, s.Messages)
		return out, nil
	}
	start := len(s.Messages) - limit
	out := make([]model.Message, limit)
	copy(out, s.Messages[start:])
	return out, nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
