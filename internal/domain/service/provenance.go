package service

import (
	"context"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/repository"
	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
	"github.com/google/uuid"
)

const (
	defaultMaxProvenanceChainDepth = 50
)

// ProvenanceTracker creates TaggedData with trust inheritance and walks the
// resulting DAG back to its roots. It delegates storage to a
// repository.ProvenanceRepository so the same logic runs against either the
// GORM-backed or in-memory implementation.
type ProvenanceTracker struct {
	repo repository.ProvenanceRepository
}

func NewProvenanceTracker(repo repository.ProvenanceRepository) *ProvenanceTracker {
	return &ProvenanceTracker{repo: repo}
}

// CreateTaggedData resolves parent IDs, computes the inherited trust level,
// assigns a fresh UUID, and persists the resulting node.
func (t *ProvenanceTracker) CreateTaggedData(
	ctx context.Context,
	content string,
	source valueobject.DataSource,
	trustLevel valueobject.TrustLevel,
	originatedFrom string,
	parentIDs []string,
) (*entity.TaggedData, error) {
	parents := make([]*entity.TaggedData, 0, len(parentIDs))
	for _, pid := range parentIDs {
		parent, err := t.repo.FindByID(ctx, pid)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parents = append(parents, parent)
		}
	}

	tagged, err := entity.NewTaggedData(uuid.NewString(), content, trustLevel, source, originatedFrom, parents)
	if err != nil {
		return nil, err
	}

	if err := t.repo.Save(ctx, tagged); err != nil {
		return nil, err
	}
	return tagged, nil
}

func (t *ProvenanceTracker) GetTaggedData(ctx context.Context, dataID string) (*entity.TaggedData, error) {
	return t.repo.FindByID(ctx, dataID)
}

// GetProvenanceChain walks the DAG back to its roots breadth-first,
// returning nodes in discovery order. Cycle-safe via a visited set — a
// malformed or adversarially-constructed graph cannot cause an infinite
// walk.
func (t *ProvenanceTracker) GetProvenanceChain(ctx context.Context, dataID string, maxDepth int) ([]*entity.TaggedData, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxProvenanceChainDepth
	}

	var chain []*entity.TaggedData
	visited := make(map[string]bool)
	queue := []string{dataID}

	for len(queue) > 0 && len(chain) < maxDepth {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		item, err := t.repo.FindByID(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}

		chain = append(chain, item)
		for _, parentID := range item.DerivedFrom() {
			if !visited[parentID] {
				queue = append(queue, parentID)
			}
		}
	}

	return chain, nil
}

// IsTrustSafeForExecution reports whether dataID and every one of its
// ancestors are Trusted. A single Untrusted node anywhere in the chain
// makes the whole chain unsafe — this is what prevents "trust laundering"
// by routing untrusted content through a trusted-looking intermediate step.
func (t *ProvenanceTracker) IsTrustSafeForExecution(ctx context.Context, dataID string) (bool, error) {
	chain, err := t.GetProvenanceChain(ctx, dataID, 0)
	if err != nil {
		return false, err
	}
	for _, item := range chain {
		if item.TrustLevel() != valueobject.Trusted {
			return false, nil
		}
	}
	return true, nil
}

func (t *ProvenanceTracker) RecordFileWrite(ctx context.Context, path, dataID string) error {
	return t.repo.RecordFileWrite(ctx, path, dataID)
}

func (t *ProvenanceTracker) GetFileWriter(ctx context.Context, path string) (string, bool, error) {
	return t.repo.FileWriter(ctx, path)
}
