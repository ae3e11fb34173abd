package workflow

import (
	"context"
	"sync"

	adomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/routine"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/runner"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/importer"
	bsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/service"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
	pdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/domain"
	psvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/service"
)

// Subsystem names used for last-error reporting.
const (
	SubProjects  = "projects"
	SubMapping   = "mapping"
	SubBuildings = "buildings"
	SubAnalysis  = "analysis"
)

// State is the workflow façade a caller (HTTP handler, CLI, batch script)
// drives. Every operation that can fail returns an error and also records it
// as the owning subsystem's last error, so a status display can show it
// without the caller keeping raw errors around. Structural errors block the
// workflow; per-building analysis failures never appear here, they live in
// the run snapshot.
type State struct {
	mu        sync.Mutex
	projects  *psvc.ProjectService
	mapper    *mapsvc.Mapper
	buildings *bsvc.BuildingService
	runner    *runner.Runner

	current  *pdomain.Project
	lastErrs map[string]string
}

func New(projects *psvc.ProjectService, mapper *mapsvc.Mapper, buildings *bsvc.BuildingService, r *runner.Runner) *State {
	return &State{
		projects:  projects,
		mapper:    mapper,
		buildings: buildings,
		runner:    r,
		lastErrs:  map[string]string{},
	}
}

func (s *State) fail(subsystem string, err error) error {
	s.lastErrs[subsystem] = err.Error()
	return err
}

func (s *State) ok(subsystem string) {
	delete(s.lastErrs, subsystem)
}

// ListProjects lists project summaries and discovery warnings.
func (s *State) ListProjects() ([]pdomain.Summary, []pdomain.DiscoveryWarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums, warns, err := s.projects.List()
	if err != nil {
		return nil, nil, s.fail(SubProjects, err)
	}
	s.ok(SubProjects)
	return sums, warns, nil
}

// CreateProject creates a project and selects it.
func (s *State) CreateProject(name, description, country string) (*pdomain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.projects.Create(name, description, country)
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	s.current = p
	s.ok(SubProjects)
	return p, nil
}

// SelectProject loads a project and makes it the active one.
func (s *State) SelectProject(id string) (*pdomain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(id)
}

func (s *State) selectLocked(id string) (*pdomain.Project, error) {
	p, err := s.projects.Load(id)
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	s.current = p
	s.ok(SubProjects)
	return p, nil
}

// CurrentProject returns the active project, or nil.
func (s *State) CurrentProject() *pdomain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *State) requireProject() (*pdomain.Project, error) {
	if s.current == nil {
		return nil, pdomain.ErrNotFound
	}
	return s.current, nil
}

// Mapping returns the active project's attribute mapping.
func (s *State) Mapping() (mapdomain.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	m, err := s.mapper.Get(p.ID)
	if err != nil {
		return nil, s.fail(SubMapping, err)
	}
	s.ok(SubMapping)
	return m, nil
}

// SetMapping validates the mapping against the imported layer's columns and
// persists it.
func (s *State) SetMapping(m mapdomain.Mapping) (mapdomain.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}

	coll, err := s.buildings.Collection(p.ID)
	if err != nil {
		return nil, s.fail(SubBuildings, err)
	}

	saved, err := s.mapper.Set(p.ID, m, coll.Columns)
	if err != nil {
		return nil, s.fail(SubMapping, err)
	}
	s.ok(SubMapping)
	return saved, nil
}

// ImportLayer imports a buildings layer into the active project, applying
// the current mapping, and records the source on the descriptor.
func (s *State) ImportLayer(src importer.Source) (*bsvc.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}

	m, err := s.mapper.Get(p.ID)
	if err != nil {
		return nil, s.fail(SubMapping, err)
	}

	res, err := s.buildings.ImportLayer(p.ID, src, m)
	if err != nil {
		return nil, s.fail(SubBuildings, err)
	}

	p.BuildingsSource = src.Name()
	if err := s.projects.Save(p); err != nil {
		return nil, s.fail(SubProjects, err)
	}

	s.ok(SubBuildings)
	return res, nil
}

func (s *State) routineConfig(p *pdomain.Project) routine.Config {
	name := p.Routine
	if name == "" {
		name = "pvgis"
	}
	return routine.Config{ProjectID: p.ID, Routine: name, Lat: p.Lat, Lon: p.Lon}
}

// StartAnalysis starts a fresh run over the active project's collection.
func (s *State) StartAnalysis(ctx context.Context) (*adomain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	run, err := s.runner.Start(ctx, p.ID, s.routineConfig(p))
	if err != nil {
		return nil, s.fail(SubAnalysis, err)
	}
	s.ok(SubAnalysis)
	return run, nil
}

// ResumeAnalysis continues a run snapshot left in running state.
func (s *State) ResumeAnalysis(ctx context.Context) (*adomain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	run, err := s.runner.Resume(ctx, p.ID, s.routineConfig(p))
	if err != nil {
		return nil, s.fail(SubAnalysis, err)
	}
	s.ok(SubAnalysis)
	return run, nil
}

// StepAnalysis advances the active run by one building.
func (s *State) StepAnalysis(ctx context.Context) (*adomain.Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, false, s.fail(SubProjects, err)
	}
	run, done, err := s.runner.Step(ctx, p.ID)
	if err != nil {
		return nil, false, s.fail(SubAnalysis, err)
	}
	s.ok(SubAnalysis)
	return run, done, nil
}

// CancelAnalysis aborts the active run at the current checkpoint.
func (s *State) CancelAnalysis(ctx context.Context) (*adomain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	run, err := s.runner.Cancel(ctx, p.ID)
	if err != nil {
		return nil, s.fail(SubAnalysis, err)
	}
	s.ok(SubAnalysis)
	return run, nil
}

// AnalysisStatus returns the active project's run snapshot.
func (s *State) AnalysisStatus() (*adomain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireProject()
	if err != nil {
		return nil, s.fail(SubProjects, err)
	}
	run, err := s.runner.Status(p.ID)
	if err != nil {
		return nil, s.fail(SubAnalysis, err)
	}
	s.ok(SubAnalysis)
	return run, nil
}

// Status aggregates the observable workflow state for display.
type Status struct {
	Project      *pdomain.Project    `json:"project,omitempty"`
	Mapping      mapdomain.Mapping   `json:"mapping,omitempty"`
	MissingAttrs []string            `json:"missing_attrs,omitempty"`
	Buildings    int                 `json:"buildings"`
	Run          *adomain.Run        `json:"run,omitempty"`
	LastErrors   map[string]string   `json:"last_errors,omitempty"`
}

// CurrentStatus never fails; absent pieces are simply omitted.
func (s *State) CurrentStatus() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{LastErrors: map[string]string{}}
	for k, v := range s.lastErrs {
		st.LastErrors[k] = v
	}

	p := s.current
	if p == nil {
		return st
	}
	st.Project = p

	if m, err := s.mapper.Get(p.ID); err == nil {
		st.Mapping = m
		st.MissingAttrs = mapsvc.ValidateForAnalysis(m, mapdomain.RequiredKeys())
	}
	if coll, err := s.buildings.Collection(p.ID); err == nil {
		st.Buildings = coll.Len()
	}
	if run, err := s.runner.Status(p.ID); err == nil {
		st.Run = run
	}
	return st
}
