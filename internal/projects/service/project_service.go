package service

import (
	"time"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/repository"
)

// ProjectService handles project-related business logic
type ProjectService struct {
	registry *repository.Registry
}

func NewProjectService(registry *repository.Registry) *ProjectService {
	return &ProjectService{registry: registry}
}

// Create creates a new project directory and descriptor.
func (s *ProjectService) Create(name, description, country string) (*domain.Project, error) {
	return s.registry.Create(domain.Project{
		Name:        name,
		Description: description,
		Country:     country,
		CreatedAt:   time.Now().UTC(),
		Routine:     "pvgis",
	})
}

// List returns summaries of all valid projects plus discovery warnings.
func (s *ProjectService) List() ([]domain.Summary, []domain.DiscoveryWarning, error) {
	return s.registry.List()
}

// Load returns the full project descriptor.
func (s *ProjectService) Load(id string) (*domain.Project, error) {
	return s.registry.Load(id)
}

// Save rewrites the descriptor.
func (s *ProjectService) Save(p *domain.Project) error {
	return s.registry.Save(p)
}
