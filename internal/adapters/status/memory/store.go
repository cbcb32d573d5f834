// Package memory keeps dispatch status records in process memory.
//
// Records of finished dispatches expire after a TTL, and the store never holds
// more than a fixed number of entries: when full, the oldest finished records
// are evicted first. Running dispatches are never evicted.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"whatsapp-bulk-worker/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 1000
)

// Store implements ports.DispatchStore with a mutex-guarded map.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Dispatch
	ttl   time.Duration
	max   int
	now   func() time.Time
}

// New creates a Store. Non-positive ttl or max fall back to the defaults.
func New(ttl time.Duration, max int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Store{
		items: make(map[uuid.UUID]domain.Dispatch),
		ttl:   ttl,
		max:   max,
		now:   time.Now,
	}
}

// Save inserts or replaces a record and prunes expired ones.
func (s *Store) Save(_ context.Context, d domain.Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[d.ID] = d
	s.prune(s.now())
	return nil
}

// Get returns a copy of the record or domain.ErrDispatchNotFound.
func (s *Store) Get(_ context.Context, id uuid.UUID) (domain.Dispatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.items[id]
	if !ok || s.expired(d, s.now()) {
		return domain.Dispatch{}, domain.ErrDispatchNotFound
	}
	return d, nil
}

// Len reports the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) expired(d domain.Dispatch, now time.Time) bool {
	if d.FinishedAt != nil {
		return now.Sub(*d.FinishedAt) > s.ttl
	}
	// Accepted but never started within the TTL; the process that owned it is gone.
	return d.Status == domain.StatusAccepted && now.Sub(d.CreatedAt) > s.ttl
}

// prune must be called with mu held.
func (s *Store) prune(now time.Time) {
	for id, d := range s.items {
		if s.expired(d, now) {
			delete(s.items, id)
		}
	}

	over := len(s.items) - s.max
	if over <= 0 {
		return
	}

	type cand struct {
		id uuid.UUID
		t  time.Time
	}
	cands := make([]cand, 0, len(s.items))
	for id, d := range s.items {
		if d.Status == domain.StatusRunning {
			continue
		}
		key := d.CreatedAt
		if d.FinishedAt != nil {
			key = *d.FinishedAt
		}
		cands = append(cands, cand{id: id, t: key})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].t.Before(cands[j].t) })

	for i := 0; i < len(cands) && over > 0; i++ {
		delete(s.items, cands[i].id)
		over--
	}
}
