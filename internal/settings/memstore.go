package settings

import (
	"context"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-session use and testing.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		profiles: make(map[string]Profile),
	}
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	clone := cloneProfile(p)
	return &clone, nil
}

// Put implements [Store.Put].
func (s *MemStore) Put(ctx context.Context, userID string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profiles == nil {
		s.profiles = make(map[string]Profile)
	}
	s.profiles[userID] = cloneProfile(p)
	return nil
}

// cloneProfile copies p including its pointer fields so callers and the
// store never alias the same integers.
func cloneProfile(p Profile) Profile {
	c := Profile{Name: p.Name}
	c.Voice = cloneInt(p.Voice)
	c.Skin = cloneInt(p.Skin)
	c.Font = cloneInt(p.Font)
	c.Sound = cloneInt(p.Sound)
	return c
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
