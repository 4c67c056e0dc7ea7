package repository

import (
	"context"
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

// ApprovalRepository persists approval queue records. Defined in the
// domain layer, implemented in infrastructure (memory/GORM).
type ApprovalRepository interface {
	Save(ctx context.Context, record *entity.ApprovalRecord) error
	FindByID(ctx context.Context, approvalID string) (*entity.ApprovalRecord, error)

	// ExpirePending transitions every pending record whose ExpiresAt is
	// before now to Expired, and returns the updated count. Implementations
	// must make this atomic with the subsequent status read a caller
	// performs, so an expiring record is never observed as still pending.
	ExpirePending(ctx context.Context, now time.Time) (int, error)

	// TrySubmit atomically decides approvalID: it accepts only the first
	// decision on a record that is still pending and not expired as of
	// now. accepted is false (with no error) for a not-found, already-
	// decided, or expired record — submit_approval's "idempotent
	// first-decision-wins" contract.
	TrySubmit(ctx context.Context, approvalID string, now time.Time, granted bool, reason, decidedBy string) (accepted bool, record *entity.ApprovalRecord, err error)
}
