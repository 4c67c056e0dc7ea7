package service

import (
	"context"
	"testing"
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

type memApprovalRepo struct {
	records map[string]*entity.ApprovalRecord
}

func newMemApprovalRepo() *memApprovalRepo {
	return &memApprovalRepo{records: make(map[string]*entity.ApprovalRecord)}
}

func (r *memApprovalRepo) Save(ctx context.Context, record *entity.ApprovalRecord) error {
	r.records[record.ApprovalID] = record
	return nil
}

func (r *memApprovalRepo) FindByID(ctx context.Context, approvalID string) (*entity.ApprovalRecord, error) {
	return r.records[approvalID], nil
}

func (r *memApprovalRepo) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	var count int
	for _, record := range r.records {
		if record.Status == entity.ApprovalPending && record.IsExpired(now) {
			record.Status = entity.ApprovalExpired
			count++
		}
	}
	return count, nil
}

func (r *memApprovalRepo) TrySubmit(ctx context.Context, approvalID string, now time.Time, granted bool, reason, decidedBy string) (bool, *entity.ApprovalRecord, error) {
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

func TestApprovalManager_RequestThenApprove(t *testing.T) {
	mgr := NewApprovalManager(newMemApprovalRepo(), time.Hour)
	ctx := context.Background()

	id, err := mgr.Request(ctx, &entity.Plan{Summary: "do a thing"}, "api:1.2.3.4", "please do a thing")
	if err != nil {
		t.Fatal(err)
	}

	record, err := mgr.Check(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if record == nil || record.Status != entity.ApprovalPending {
		t.Fatalf("expected pending record, got %+v", record)
	}

	accepted, err := mgr.Submit(ctx, id, true, "looks fine", "reviewer@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !accepted {
		t.Fatal("expected first submit to be accepted")
	}

	approved, err := mgr.IsApproved(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if approved == nil || !*approved {
		t.Fatalf("expected approved=true, got %v", approved)
	}
}

func TestApprovalManager_SecondSubmitRejected(t *testing.T) {
	mgr := NewApprovalManager(newMemApprovalRepo(), time.Hour)
	ctx := context.Background()

	id, _ := mgr.Request(ctx, &entity.Plan{Summary: "do a thing"}, "api:1", "req")
	if ok, _ := mgr.Submit(ctx, id, true, "first", "a"); !ok {
		t.Fatal("expected first submit accepted")
	}
	ok, err := mgr.Submit(ctx, id, false, "second", "b")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected duplicate submit to be rejected")
	}

	approved, _ := mgr.IsApproved(ctx, id)
	if approved == nil || !*approved {
		t.Fatalf("expected decision to remain the first one (approved), got %v", approved)
	}
}

func TestApprovalManager_ExpiredRecordIsNotApproved(t *testing.T) {
	mgr := NewApprovalManager(newMemApprovalRepo(), -time.Second)
	ctx := context.Background()

	id, _ := mgr.Request(ctx, &entity.Plan{Summary: "do a thing"}, "api:1", "req")

	ok, err := mgr.Submit(ctx, id, true, "too late", "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected submit on expired record to be rejected")
	}

	approved, err := mgr.IsApproved(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if approved != nil {
		t.Fatalf("expected nil (pending/expired) status, got %v", *approved)
	}
}

func TestApprovalManager_UnknownIDIsNotApproved(t *testing.T) {
	mgr := NewApprovalManager(newMemApprovalRepo(), time.Hour)
	ctx := context.Background()

	approved, err := mgr.IsApproved(ctx, "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if approved != nil {
		t.Fatalf("expected nil, got %v", *approved)
	}
}
