package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/persistence/models"
	domainErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
	"gorm.io/gorm"
)

// GormApprovalRepository persists the approval queue relationally, giving
// approval decisions the "survive process restarts" durability spec.md
// §4.8 requires — the in-memory repository is development/testing only.
type GormApprovalRepository struct {
	db *gorm.DB
}

func NewGormApprovalRepository(db *gorm.DB) repository.ApprovalRepository {
	return &GormApprovalRepository{db: db}
}

func (r *GormApprovalRepository) Save(ctx context.Context, record *entity.ApprovalRecord) error {
	planJSON, err := encodePlan(record.Plan)
	if err != nil {
		return err
	}
	model := models.ApprovalModel{
		ApprovalID:    record.ApprovalID,
		PlanJSON:      planJSON,
		SourceKey:     record.SourceKey,
		UserRequest:   record.UserRequest,
		Status:        string(record.Status),
		DecidedReason: record.DecidedReason,
		DecidedBy:     record.DecidedBy,
		CreatedAt:     record.CreatedAt,
		ExpiresAt:     record.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save approval record: " + err.Error())
	}
	return nil
}

func (r *GormApprovalRepository) FindByID(ctx context.Context, approvalID string) (*entity.ApprovalRecord, error) {
	var model models.ApprovalModel
	if err := r.db.WithContext(ctx).First(&model, "approval_id = ?", approvalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domainErrors.NewInternalError("failed to find approval record: " + err.Error())
	}
	return r.toEntity(&model)
}

func (r *GormApprovalRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	result := r.db.WithContext(ctx).Model(&models.ApprovalModel{}).
		Where("status = ? AND expires_at < ?", string(entity.ApprovalPending), now).
		Update("status", string(entity.ApprovalExpired))
	if result.Error != nil {
		return 0, domainErrors.NewInternalError("failed to expire approvals: " + result.Error.Error())
	}
	return int(result.RowsAffected), nil
}

// TrySubmit runs the check-then-update inside a transaction so a
// concurrent duplicate submit cannot race past the pending check.
func (r *GormApprovalRepository) TrySubmit(ctx context.Context, approvalID string, now time.Time, granted bool, reason, decidedBy string) (bool, *entity.ApprovalRecord, error) {
	var accepted bool
	var result *entity.ApprovalRecord

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.ApprovalModel
		if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&model, "approval_id = ?", approvalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if model.Status == string(entity.ApprovalPending) && model.ExpiresAt.Before(now) {
			model.Status = string(entity.ApprovalExpired)
		}
		if model.Status != string(entity.ApprovalPending) {
			entityModel, err := r.toEntity(&model)
			if err != nil {
				return err
			}
			result = entityModel
			return tx.Save(&model).Error
		}

		if granted {
			model.Status = string(entity.ApprovalApproved)
		} else {
			model.Status = string(entity.ApprovalDenied)
		}
		model.DecidedReason = reason
		model.DecidedBy = decidedBy
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		entityModel, err := r.toEntity(&model)
		if err != nil {
			return err
		}
		result = entityModel
		accepted = true
		return nil
	})
	if err != nil {
		return false, nil, domainErrors.NewInternalError("failed to submit approval: " + err.Error())
	}
	return accepted, result, nil
}

func (r *GormApprovalRepository) toEntity(model *models.ApprovalModel) (*entity.ApprovalRecord, error) {
	plan, err := decodePlan(model.PlanJSON)
	if err != nil {
		return nil, err
	}
	return &entity.ApprovalRecord{
		ApprovalID:    model.ApprovalID,
		Plan:          plan,
		SourceKey:     model.SourceKey,
		UserRequest:   model.UserRequest,
		Status:        entity.ApprovalStatus(model.Status),
		DecidedReason: model.DecidedReason,
		DecidedBy:     model.DecidedBy,
		CreatedAt:     model.CreatedAt,
		ExpiresAt:     model.ExpiresAt,
	}, nil
}
