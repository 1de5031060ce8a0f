package cursor

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/errors"
)

// MemoryStore is an in-process Store with the same CAS semantics as the
// durable backends. Used by tests and single-node local runs.
type MemoryStore struct {
	mu       sync.Mutex
	cursors  map[string]Cursor
	defaults Defaults
}

// NewMemoryStore creates an empty in-memory cursor store.
func NewMemoryStore(defaults Defaults) *MemoryStore {
	return &MemoryStore{
		cursors:  make(map[string]Cursor),
		defaults: defaults,
	}
}

func (s *MemoryStore) Read(_ context.Context, stream string) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.cursors[stream]; ok {
		copied := cur
		return &copied, nil
	}
	return New(stream, s.defaults.WindowStart, s.defaults.WindowEnd, s.defaults.PageSize), nil
}

func (s *MemoryStore) Commit(_ context.Context, cur *Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cursors[cur.Stream]
	if ok && stored.Version != cur.Version {
		return errors.ErrConflict
	}
	if !ok && cur.Version != 0 {
		return errors.ErrConflict
	}

	next := *cur
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	s.cursors[cur.Stream] = next

	cur.Version = next.Version
	cur.UpdatedAt = next.UpdatedAt
	return nil
}
