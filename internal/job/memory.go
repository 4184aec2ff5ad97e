package job

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map guarded by a RWMutex. Jobs are lost
// on restart; SQLiteRepository survives one.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: map[string]*Job{}}
}

// Save stores a snapshot of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	r.jobs[snapshot.ID] = snapshot
	r.mu.Unlock()
	return nil
}

// FindByID implements Repository.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	stored, ok := r.jobs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}
	return stored.Clone(), nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	out := make([]*Job, 0, len(r.jobs))
	for _, stored := range r.jobs {
		out = append(out, stored.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
