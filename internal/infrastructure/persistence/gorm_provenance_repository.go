package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/persistence/models"
	domainErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
	"gorm.io/gorm"
)

// GormProvenanceRepository persists TaggedData and the file-writer registry
// to a relational table via plain GORM models.
type GormProvenanceRepository struct {
	db *gorm.DB
}

func NewGormProvenanceRepository(db *gorm.DB) repository.ProvenanceRepository {
	return &GormProvenanceRepository{db: db}
}

func (r *GormProvenanceRepository) Save(ctx context.Context, data *entity.TaggedData) error {
	parentJSON, err := json.Marshal(data.DerivedFrom())
	if err != nil {
		return domainErrors.NewInternalError("failed to encode parent ids: " + err.Error())
	}
	scanJSON, err := json.Marshal(data.ScanResults())
	if err != nil {
		return domainErrors.NewInternalError("failed to encode scan results: " + err.Error())
	}

	model := models.ProvenanceModel{
		DataID:         data.ID(),
		Content:        data.Content(),
		Source:         string(data.Source()),
		TrustLevel:     string(data.TrustLevel()),
		OriginatedFrom: data.OriginatedFrom(),
		ParentIDs:      string(parentJSON),
		ScanResults:    string(scanJSON),
		CreatedAt:      data.Timestamp(),
	}

	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save provenance entry: " + err.Error())
	}
	return nil
}

func (r *GormProvenanceRepository) FindByID(ctx context.Context, dataID string) (*entity.TaggedData, error) {
	var model models.ProvenanceModel
	if err := r.db.WithContext(ctx).First(&model, "data_id = ?", dataID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, domainErrors.NewInternalError("failed to find provenance entry: " + err.Error())
	}
	return r.toEntity(&model)
}

func (r *GormProvenanceRepository) RecordFileWrite(ctx context.Context, path, dataID string) error {
	model := models.FileProvenanceModel{
		FilePath:     path,
		WriterDataID: dataID,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domainErrors.NewInternalError("failed to record file write: " + err.Error())
	}
	return nil
}

func (r *GormProvenanceRepository) FileWriter(ctx context.Context, path string) (string, bool, error) {
	var model models.FileProvenanceModel
	if err := r.db.WithContext(ctx).First(&model, "file_path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, domainErrors.NewInternalError("failed to look up file writer: " + err.Error())
	}
	return model.WriterDataID, true, nil
}

func (r *GormProvenanceRepository) Reset(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM file_provenance").Error; err != nil {
		return domainErrors.NewInternalError("failed to reset file_provenance: " + err.Error())
	}
	if err := r.db.WithContext(ctx).Exec("DELETE FROM provenance").Error; err != nil {
		return domainErrors.NewInternalError("failed to reset provenance: " + err.Error())
	}
	return nil
}

func (r *GormProvenanceRepository) toEntity(model *models.ProvenanceModel) (*entity.TaggedData, error) {
	var parentIDs []string
	if model.ParentIDs != "" {
		if err := json.Unmarshal([]byte(model.ParentIDs), &parentIDs); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode parent ids: " + err.Error())
		}
	}
	scanResults := make(map[string]valueobject.ScanResult)
	if model.ScanResults != "" {
		if err := json.Unmarshal([]byte(model.ScanResults), &scanResults); err != nil {
			return nil, domainErrors.NewInternalError("failed to decode scan results: " + err.Error())
		}
	}

	return entity.ReconstructTaggedData(
		model.DataID,
		model.Content,
		valueobject.TrustLevel(model.TrustLevel),
		valueobject.DataSource(model.Source),
		model.OriginatedFrom,
		model.CreatedAt,
		scanResults,
		parentIDs,
	), nil
}
