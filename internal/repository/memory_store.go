package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"shop-assistant/internal/domain"
)

// MemoryStore keeps conversations in process memory. It applies the same
// version check as the DynamoDB Client.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string]domain.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]domain.Conversation)}
}

func (m *MemoryStore) Load(_ context.Context, threadID string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.threads[threadID]
	if !ok {
		return domain.Conversation{ThreadID: threadID}, nil
	}
	return conv.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, conv *domain.Conversation) error {
	if conv == nil || strings.TrimSpace(conv.ThreadID) == "" {
		return errors.New("repository: Save: thread id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored := m.threads[conv.ThreadID]; stored.Version != conv.Version {
		return ErrVersionConflict
	}
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	m.threads[conv.ThreadID] = conv.Clone()
	return nil
}
