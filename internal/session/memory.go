package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps sessions in process memory. It is the default
// backend when no DATABASE_URL is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*Session)}
}

func (r *MemoryRepository) Insert(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return ErrDuplicateID
	}
	r.sessions[s.ID] = s.clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, owner string) ([]Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Metadata{}
	for _, s := range r.sessions {
		if s.OwnerRef == owner {
			out = append(out, s.Metadata())
		}
	}
	SortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.OwnerRef != owner {
		return ErrNotOwner
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

// SortNewestFirst orders by creation time descending, then id descending
// (ULIDs sort by time, so this is stable for equal timestamps).
func SortNewestFirst(list []Metadata) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
