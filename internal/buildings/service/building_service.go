package service

import (
	"fmt"
	"log"
	"time"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/importer"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/repository"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
)

// ImportResult reports an import: features materialized vs rejected for
// missing geometry.
type ImportResult struct {
	Imported int `json:"imported"`
	Rejected int `json:"rejected"`
}

// BuildingService materializes building collections from layer sources.
type BuildingService struct {
	repo *repository.CollectionRepository
}

func NewBuildingService(repo *repository.CollectionRepository) *BuildingService {
	return &BuildingService{repo: repo}
}

// ImportLayer reads every feature of the source in order, applies the
// attribute mapping and replaces the project's collection wholesale.
// Features without geometry are rejected, not imported.
func (s *BuildingService) ImportLayer(projectID string, src importer.Source, mapping mapdomain.Mapping) (*ImportResult, error) {
	cols, err := src.Columns()
	if err != nil {
		return nil, fmt.Errorf("layer columns: %w", err)
	}
	feats, err := src.Features()
	if err != nil {
		return nil, fmt.Errorf("layer features: %w", err)
	}

	c := &domain.Collection{
		Source:     src.Name(),
		ImportedAt: time.Now().UTC(),
		Columns:    cols,
		Buildings:  make([]domain.Building, 0, len(feats)),
	}

	rejected := 0
	for _, f := range feats {
		if !f.HasGeometry {
			rejected++
			continue
		}

		rec := mapsvc.Apply(mapping, f.Attrs)
		id := rec.String("id")
		if id == "" || mapdomain.IsUnresolved(rec["id"]) {
			id = fmt.Sprintf("feature-%d", f.Index)
		}

		c.Buildings = append(c.Buildings, domain.Building{
			ID:       id,
			Geometry: domain.GeometryRef{Source: src.Name(), FeatureIndex: f.Index},
			Attrs:    rec,
			Status:   domain.StatusPending,
		})
	}

	if err := s.repo.Put(projectID, c); err != nil {
		return nil, err
	}

	log.Printf("[import] project=%s source=%s imported=%d rejected=%d",
		projectID, src.Name(), len(c.Buildings), rejected)
	return &ImportResult{Imported: len(c.Buildings), Rejected: rejected}, nil
}

// Collection returns the current collection or ErrNoLayerImported.
func (s *BuildingService) Collection(projectID string) (*domain.Collection, error) {
	return s.repo.Get(projectID)
}

// Replace rewrites the stored collection. Used by the analysis runner to
// flush building statuses and results after a run finishes.
func (s *BuildingService) Replace(projectID string, c *domain.Collection) error {
	return s.repo.Put(projectID, c)
}
