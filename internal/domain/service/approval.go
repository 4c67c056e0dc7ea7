package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
)

const defaultApprovalTimeout = 5 * time.Minute

// ApprovalManager is the human-in-the-loop approval queue: every entry
// point sweeps expired records first, so a caller never observes a
// pending record past its expiry.
type ApprovalManager struct {
	repo    repository.ApprovalRepository
	timeout time.Duration
}

func NewApprovalManager(repo repository.ApprovalRepository, timeout time.Duration) *ApprovalManager {
	if timeout <= 0 {
		timeout = defaultApprovalTimeout
	}
	return &ApprovalManager{repo: repo, timeout: timeout}
}

// Request creates a pending approval record and returns its id.
func (m *ApprovalManager) Request(ctx context.Context, plan *entity.Plan, sourceKey, userRequest string) (string, error) {
	if _, err := m.repo.ExpirePending(ctx, time.Now().UTC()); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	record := &entity.ApprovalRecord{
		ApprovalID:  uuid.NewString(),
		Plan:        plan,
		SourceKey:   sourceKey,
		UserRequest: userRequest,
		Status:      entity.ApprovalPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.timeout),
	}
	if err := m.repo.Save(ctx, record); err != nil {
		return "", err
	}
	return record.ApprovalID, nil
}

// Check returns the current record for approvalID, or nil if not found.
// A pending record's Plan is populated so callers can render a summary;
// it is still nil if it transitioned to expired by this sweep.
func (m *ApprovalManager) Check(ctx context.Context, approvalID string) (*entity.ApprovalRecord, error) {
	if _, err := m.repo.ExpirePending(ctx, time.Now().UTC()); err != nil {
		return nil, err
	}
	return m.repo.FindByID(ctx, approvalID)
}

// Submit records a decision. Only the first decision on a still-pending,
// not-yet-expired record is accepted; every later call (duplicate,
// not-found, or post-expiry) returns accepted=false.
func (m *ApprovalManager) Submit(ctx context.Context, approvalID string, granted bool, reason, by string) (bool, error) {
	if _, err := m.repo.ExpirePending(ctx, time.Now().UTC()); err != nil {
		return false, err
	}
	accepted, _, err := m.repo.TrySubmit(ctx, approvalID, time.Now().UTC(), granted, reason, by)
	return accepted, err
}

// IsApproved reports the decision on approvalID: true if approved, false
// if denied, nil if pending, expired, or not found.
func (m *ApprovalManager) IsApproved(ctx context.Context, approvalID string) (*bool, error) {
	if _, err := m.repo.ExpirePending(ctx, time.Now().UTC()); err != nil {
		return nil, err
	}
	record, err := m.repo.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	switch record.Status {
	case entity.ApprovalApproved:
		approved := true
		return &approved, nil
	case entity.ApprovalDenied:
		denied := false
		return &denied, nil
	default:
		return nil, nil
	}
}
