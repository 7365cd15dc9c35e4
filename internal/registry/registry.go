// Package registry holds the process-wide job state records. Entries are
// never evicted; they live for the life of the process.
package registry

import (
	"errors"
	"sync"
)

// ErrJobNotFound is returned for lookups of unknown job ids, so callers
// can distinguish "doesn't exist" from "exists but failed".
var ErrJobNotFound = errors.New("job not found")

type entry[T any] struct {
	mu  sync.Mutex
	job T
}

// Registry is an in-memory job table with per-entry locking. The outer
// lock only guards the map and creation order; record mutation contends
// on the entry lock alone, so workers of different jobs never block each
// other.
type Registry[T interface{ Clone() T }] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	order   []string
}

func New[T interface{ Clone() T }]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]*entry[T])}
}

// Create registers a new job record. The record is visible to Get/List
// as soon as Create returns.
func (r *Registry[T]) Create(id string, job T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return errors.New("job already exists: " + id)
	}
	r.entries[id] = &entry[T]{job: job}
	r.order = append(r.order, id)
	return nil
}

// Get returns a snapshot of the record, or ErrJobNotFound.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// List returns snapshots of all records in creation order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()

	jobs := make([]T, 0, len(ids))
	for _, id := range ids {
		if job, err := r.Get(id); err == nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Mutate applies fn as an atomic read-modify-write on the record.
func (r *Registry[T]) Mutate(id string, fn func(*T)) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return nil
}

// Len returns the number of registered jobs.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
