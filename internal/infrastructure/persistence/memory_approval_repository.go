package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
)

// MemoryApprovalRepository is an in-process approval queue. It does not
// satisfy the "records survive process restarts" durability requirement
// on its own — GormApprovalRepository does — but is the default for
// development/testing.
type MemoryApprovalRepository struct {
	mu      sync.Mutex
	records map[string]*entity.ApprovalRecord
}

func NewMemoryApprovalRepository() repository.ApprovalRepository {
	return &MemoryApprovalRepository{records: make(map[string]*entity.ApprovalRecord)}
}

func (r *MemoryApprovalRepository) Save(ctx context.Context, record *entity.ApprovalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ApprovalID] = record
	return nil
}

func (r *MemoryApprovalRepository) FindByID(ctx context.Context, approvalID string) (*entity.ApprovalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[approvalID], nil
}

func (r *MemoryApprovalRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	for _, record := range r.records {
		if record.Status == entity.ApprovalPending && record.IsExpired(now) {
			record.Status = entity.ApprovalExpired
			count++
		}
	}
	return count, nil
}

func (r *MemoryApprovalRepository) TrySubmit(ctx context.Context, approvalID string, now time.Time, granted bool, reason, decidedBy string) (bool, *entity.ApprovalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[approvalID]
	if !ok {
		return false, nil, nil
	}
	if record.Status == entity.ApprovalPending && record.IsExpired(now) {
		record.Status = entity.ApprovalExpired
	}
	if record.Status != entity.ApprovalPending {
		return false, record, nil
	}

	if granted {
		record.Status = entity.ApprovalApproved
	} else {
		record.Status = entity.ApprovalDenied
	}
	record.DecidedReason = reason
	record.DecidedBy = decidedBy
	return true, record, nil
}
