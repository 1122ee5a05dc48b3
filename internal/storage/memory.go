package storage

import (
	"context"
	"sync"
)

// memStore keeps settings in memory; reports are counted but dropped.
// Used when storage is not configured.
type memStore struct {
	mu       sync.RWMutex
	settings map[int64]UserSettings
}

func newMemStore() *memStore {
	return &memStore{settings: map[int64]UserSettings{}}
}

func (s *memStore) GetUserSettings(_ context.Context, userID int64) (UserSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[userID]
	return v, ok, nil
}

func (s *memStore) SetUserSettings(_ context.Context, userID int64, v UserSettings) error {
	s.mu.Lock()
	s.settings[userID] = v
	s.mu.Unlock()
	return nil
}

func (s *memStore) AppendReport(context.Context, Report) error { return nil }

func (s *memStore) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.settings), nil
}

func (s *memStore) Close() error { return nil }
