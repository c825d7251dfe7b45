package repository

import (
	"context"
	"sync"

	"github.com/anime-shed/plategate-go/pkg/models"
)

// MemoryRunRepository keeps runs in memory, dropping the oldest beyond capacity
type MemoryRunRepository struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	runs     map[string]*models.LookupResponse
}

// NewMemoryRunRepository creates a repository holding at most capacity runs, 0 means unbounded
func NewMemoryRunRepository(capacity int) *MemoryRunRepository {
	return &MemoryRunRepository{
		capacity: capacity,
		runs:     make(map[string]*models.LookupResponse),
	}
}

func (r *MemoryRunRepository) Save(ctx context.Context, run *models.LookupResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run == nil || run.RunID == "" {
		return ErrInvalidRun
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.RunID]; !ok {
		r.order = append(r.order, run.RunID)
	}
	r.runs[run.RunID] = run
	for r.capacity > 0 && len(r.order) > r.capacity {
		delete(r.runs, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *MemoryRunRepository) Get(ctx context.Context, id string) (*models.LookupResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (r *MemoryRunRepository) List(ctx context.Context) ([]*models.LookupResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := make([]*models.LookupResponse, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		runs = append(runs, r.runs[r.order[i]])
	}
	return runs, nil
}
