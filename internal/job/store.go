package job

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no job exists under the requested ID.
var ErrNotFound = errors.New("job not found")

// Store holds jobs by ID. Implementations must be safe for concurrent use:
// handlers read jobs while orchestrators update them.
//
// Live jobs are always served from memory so that polling sees in-flight
// progress; Save exists so persistent backends can checkpoint snapshots.
type Store interface {
	// Create registers a new job. Fails if the ID is already taken.
	Create(ctx context.Context, j *Job) error
	// Get returns the job with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)
	// List returns all known jobs in creation order.
	List(ctx context.Context) ([]*Job, error)
	// Save checkpoints the job's current snapshot.
	Save(ctx context.Context, j *Job) error
}

// MemoryStore is the default in-process store. Jobs live for the lifetime
// of the server; there is no eviction.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return errors.New("job already exists: " + j.ID)
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out, nil
}

// Save is a no-op: the job pointer is the storage.
func (s *MemoryStore) Save(ctx context.Context, j *Job) error { return nil }
