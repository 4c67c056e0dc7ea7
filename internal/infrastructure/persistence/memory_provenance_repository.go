package persistence

import (
	"context"
	"sync"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
)

const (
	maxProvenanceEntries     = 10_000
	maxFileProvenanceEntries = 10_000
)

// MemoryProvenanceRepository is the in-process provenance store used when
// no relational database is configured. Both maps evict their oldest entry
// (by insertion order) once they exceed their cap, mirroring the original
// store's bounded-growth behaviour.
type MemoryProvenanceRepository struct {
	mu   sync.RWMutex
	data map[string]*entity.TaggedData
	order []string

	fileWriters map[string]string
	fileOrder   []string
}

func NewMemoryProvenanceRepository() repository.ProvenanceRepository {
	return &MemoryProvenanceRepository{
		data:        make(map[string]*entity.TaggedData),
		fileWriters: make(map[string]string),
	}
}

func (r *MemoryProvenanceRepository) Save(ctx context.Context, data *entity.TaggedData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[data.ID()]; !exists {
		r.order = append(r.order, data.ID())
	}
	r.data[data.ID()] = data
	r.evictOldest()
	return nil
}

func (r *MemoryProvenanceRepository) FindByID(ctx context.Context, dataID string) (*entity.TaggedData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data[dataID], nil
}

func (r *MemoryProvenanceRepository) RecordFileWrite(ctx context.Context, path, dataID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fileWriters[path]; !exists {
		r.fileOrder = append(r.fileOrder, path)
	}
	r.fileWriters[path] = dataID
	r.evictOldestFileWriters()
	return nil
}

func (r *MemoryProvenanceRepository) FileWriter(ctx context.Context, path string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dataID, ok := r.fileWriters[path]
	return dataID, ok, nil
}

func (r *MemoryProvenanceRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string]*entity.TaggedData)
	r.order = nil
	r.fileWriters = make(map[string]string)
	r.fileOrder = nil
	return nil
}

// evictOldest must be called with r.mu held.
func (r *MemoryProvenanceRepository) evictOldest() {
	if len(r.data) <= maxProvenanceEntries {
		return
	}
	excess := len(r.data) - maxProvenanceEntries
	for i := 0; i < excess && i < len(r.order); i++ {
		delete(r.data, r.order[i])
	}
	r.order = r.order[excess:]
}

func (r *MemoryProvenanceRepository) evictOldestFileWriters() {
	if len(r.fileWriters) <= maxFileProvenanceEntries {
		return
	}
	excess := len(r.fileWriters) - maxFileProvenanceEntries
	for i := 0; i < excess && i < len(r.fileOrder); i++ {
		delete(r.fileWriters, r.fileOrder[i])
	}
	r.fileOrder = r.fileOrder[excess:]
}
