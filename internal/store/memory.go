package store

import (
	"context"
	"sync"

	"jobtalk/pkg/interfaces"
)

// MemoryStore keeps selection state in memory only. Used for tests and
// ephemeral runs where nothing should survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string]string // sessionKey|role -> roomID
}

// NewMemoryStore creates an empty in-memory selection store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selections: make(map[string]string)}
}

func memKey(sessionKey, role string) string {
	return sessionKey + "|" + role
}

func (s *MemoryStore) SaveSelection(_ context.Context, sessionKey, role, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[memKey(sessionKey, role)] = roomID
	return nil
}

func (s *MemoryStore) LoadSelection(_ context.Context, sessionKey, role string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, exists := s.selections[memKey(sessionKey, role)]
	if !exists {
		return "", interfaces.ErrNoSelection
	}
	return roomID, nil
}

func (s *MemoryStore) ClearSelection(_ context.Context, sessionKey, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, memKey(sessionKey, role))
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
