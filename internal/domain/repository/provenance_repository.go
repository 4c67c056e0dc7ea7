package repository

import (
	"context"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

// ProvenanceRepository persists TaggedData nodes and the file-writer
// registry. Defined in the domain layer, implemented in infrastructure
// (GORM-backed or in-memory).
type ProvenanceRepository interface {
	Save(ctx context.Context, data *entity.TaggedData) error
	FindByID(ctx context.Context, dataID string) (*entity.TaggedData, error)

	// RecordFileWrite registers dataID as the last writer of path
	// (last-writer-wins; overwrites any prior registration).
	RecordFileWrite(ctx context.Context, path, dataID string) error
	FileWriter(ctx context.Context, path string) (string, bool, error)

	Reset(ctx context.Context) error
}
