// Package store provides the persistence collaborator implementations: a
// Postgres store for production and an in-memory store for tests and
// database-less deployments.
package store

import (
	"context"
	"errors"
	"sync"

	"aegis/pkg/securityevent"
)

var ErrNotFound = errors.New("record not found")

// MemoryStore keeps events and master-access records in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*securityevent.Event
	master map[string]*securityevent.MasterAccess
	cap    int
}

// NewMemoryStore returns an empty store retaining at most 10000 events.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		master: make(map[string]*securityevent.MasterAccess),
		cap:    10000,
	}
}

func (s *MemoryStore) SaveSecurityEvent(_ context.Context, evt *securityevent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *evt
	s.events = append(s.events, &cp)
	if len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
	return nil
}

func (s *MemoryStore) ListRecentEvents(_ context.Context, limit int) ([]*securityevent.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]*securityevent.Event, 0, limit)
	for i := len(s.events) - 1; i >= len(s.events)-limit; i-- {
		cp := *s.events[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) ListMasterAccessByBiometricType(_ context.Context, biometricType string) ([]*securityevent.MasterAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*securityevent.MasterAccess
	for _, rec := range s.master {
		if rec.BiometricType == biometricType || rec.BiometricType == "multi" {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateMasterAccess(_ context.Context, rec *securityevent.MasterAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.master[rec.ID]; exists {
		return errors.New("master access record already exists")
	}
	cp := *rec
	s.master[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateMasterAccess(_ context.Context, id string, rec *securityevent.MasterAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.master[id]; !exists {
		return ErrNotFound
	}
	cp := *rec
	cp.ID = id
	s.master[id] = &cp
	return nil
}

// EventCount reports how many events are retained. Test helper.
func (s *MemoryStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
