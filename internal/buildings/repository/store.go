package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/fsutil"
)

const CollectionFile = "buildings.json"

// CollectionRepository persists one building collection per project.
// A reimport replaces the file wholesale.
type CollectionRepository struct {
	projectsRoot string
}

func NewCollectionRepository(projectsRoot string) *CollectionRepository {
	return &CollectionRepository{projectsRoot: projectsRoot}
}

func (r *CollectionRepository) path(projectID string) string {
	return filepath.Join(r.projectsRoot, projectID, CollectionFile)
}

// Get returns the current collection or ErrNoLayerImported.
func (r *CollectionRepository) Get(projectID string) (*domain.Collection, error) {
	data, err := os.ReadFile(r.path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoLayerImported
		}
		return nil, fmt.Errorf("read collection: %w", err)
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse collection: %w", err)
	}
	return &c, nil
}

// Put rewrites the collection atomically.
func (r *CollectionRepository) Put(projectID string, c *domain.Collection) error {
	if err := fsutil.WriteJSONAtomic(r.path(projectID), c); err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}
