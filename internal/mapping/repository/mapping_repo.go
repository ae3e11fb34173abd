package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/fsutil"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
)

const MappingFile = "planheat_mapping.json"

// MappingRepository persists one attribute mapping file per project
// directory. Writes are atomic; a failed Set leaves the previous file intact.
type MappingRepository struct {
	projectsRoot string
}

func NewMappingRepository(projectsRoot string) *MappingRepository {
	return &MappingRepository{projectsRoot: projectsRoot}
}

func (r *MappingRepository) path(projectID string) string {
	return filepath.Join(r.projectsRoot, projectID, MappingFile)
}

// Get returns the persisted mapping, or an all-unmapped mapping when none has
// been saved yet.
func (r *MappingRepository) Get(projectID string) (domain.Mapping, error) {
	data, err := os.ReadFile(r.path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Empty(), nil
		}
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	var m domain.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}

	// ensure every canonical key is present
	full := domain.Empty()
	for k, v := range m {
		if _, ok := domain.FieldByKey(k); ok {
			full[k] = v
		}
	}
	return full, nil
}

// Set rewrites the mapping file atomically.
func (r *MappingRepository) Set(projectID string, m domain.Mapping) error {
	if err := fsutil.WriteJSONAtomic(r.path(projectID), m); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}
