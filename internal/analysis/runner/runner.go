package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/repository"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/routine"
	bdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
	bsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/service"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
)

// Runner drives the stepwise analysis pipeline. One building is processed
// per Step call; the run snapshot is checkpointed after every building, so a
// crash between steps loses at most the in-flight building's work.
//
// One run may be active per project. All of a project's mutation goes through
// the runner's mutex, which serializes Step/Cancel/Start per process.
type Runner struct {
	mu        sync.Mutex
	repo      *repository.RunRepository
	buildings *bsvc.BuildingService
	mapper    *mapsvc.Mapper
	resolver  routine.Resolver
	active    map[string]*activeRun
}

// activeRun binds a run to the collection view captured at start time.
// Reimporting the layer mid-run does not affect the captured view.
type activeRun struct {
	run  *domain.Run
	view []bdomain.Building
	fn   routine.Func
}

func New(repo *repository.RunRepository, buildings *bsvc.BuildingService, mapper *mapsvc.Mapper, resolver routine.Resolver) *Runner {
	return &Runner{
		repo:      repo,
		buildings: buildings,
		mapper:    mapper,
		resolver:  resolver,
		active:    map[string]*activeRun{},
	}
}

// Start creates a fresh run over the project's current collection and
// transitions it to running. It fails with ErrAlreadyRunning when the project
// already has an active run, and with a mapping IncompleteError when required
// canonical attributes are unmapped.
func (r *Runner) Start(ctx context.Context, projectID string, cfg routine.Config) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ar, ok := r.active[projectID]; ok && ar.run.Status == domain.StatusRunning {
		return nil, domain.ErrAlreadyRunning
	}

	mapping, err := r.mapper.Get(projectID)
	if err != nil {
		return nil, err
	}
	if missing := mapsvc.ValidateForAnalysis(mapping, mapdomain.RequiredKeys()); len(missing) > 0 {
		return nil, &mapdomain.IncompleteError{Missing: missing}
	}

	coll, err := r.buildings.Collection(projectID)
	if err != nil {
		return nil, err
	}

	fn, err := r.resolver.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		RunID:     uuid.New().String(),
		ProjectID: projectID,
		Routine:   cfg.Routine,
		Status:    domain.StatusRunning,
		StartedAt: time.Now().UTC(),
		Total:     coll.Len(),
		Outcomes:  make([]domain.Outcome, coll.Len()),
	}

	view := make([]bdomain.Building, coll.Len())
	copy(view, coll.Buildings)
	for i, b := range view {
		run.Outcomes[i] = domain.Outcome{BuildingID: b.ID, Status: bdomain.StatusPending}
	}

	if err := r.repo.Save(ctx, run); err != nil {
		return nil, err
	}

	r.active[projectID] = &activeRun{run: run, view: view, fn: fn}
	log.Printf("[run] started run=%s project=%s total=%d routine=%s", run.RunID, projectID, run.Total, cfg.Routine)
	return run.Clone(), nil
}

// Resume rebinds a run snapshot left in running state (e.g. after a crash)
// and continues from its cursor. The captured view is rebuilt from the
// persisted collection; outcomes for already-traversed buildings are kept.
func (r *Runner) Resume(ctx context.Context, projectID string, cfg routine.Config) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ar, ok := r.active[projectID]; ok && ar.run.Status == domain.StatusRunning {
		return nil, domain.ErrAlreadyRunning
	}

	run, err := r.repo.Get(projectID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.StatusRunning {
		return nil, domain.ErrRunNotActive
	}

	coll, err := r.buildings.Collection(projectID)
	if err != nil {
		return nil, err
	}
	if coll.Len() != run.Total {
		return nil, fmt.Errorf("collection changed since run started (%d buildings, run has %d)", coll.Len(), run.Total)
	}

	fn, err := r.resolver.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	view := make([]bdomain.Building, coll.Len())
	copy(view, coll.Buildings)

	r.active[projectID] = &activeRun{run: run, view: view, fn: fn}
	log.Printf("[run] resumed run=%s project=%s cursor=%d/%d", run.RunID, projectID, run.Cursor, run.Total)
	return run.Clone(), nil
}

// Step processes exactly the next pending building in cursor order and
// checkpoints the snapshot. It returns done=true once the run has completed.
// A failing building records a failed outcome and never fails the step; only
// structural errors (no active run, persistence failure) are returned.
func (r *Runner) Step(ctx context.Context, projectID string) (*domain.Run, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepLocked(ctx, projectID)
}

func (r *Runner) stepLocked(ctx context.Context, projectID string) (*domain.Run, bool, error) {
	ar, ok := r.active[projectID]
	if !ok {
		return nil, false, domain.ErrNoRunStarted
	}
	run := ar.run
	if run.Status != domain.StatusRunning {
		return nil, false, domain.ErrRunNotActive
	}

	if run.Cursor >= run.Total {
		return r.finishLocked(ctx, projectID, ar, domain.StatusCompleted)
	}

	b := &ar.view[run.Cursor]
	outcome := &run.Outcomes[run.Cursor]
	b.Status = bdomain.StatusRunning
	outcome.Status = bdomain.StatusRunning

	if unresolved := b.Attrs.UnresolvedKeys(); len(unresolved) > 0 {
		r.recordFailure(run, b, outcome, fmt.Sprintf("unresolved required attributes: %v", unresolved))
	} else if result, err := ar.fn(ctx, b.Attrs); err != nil {
		r.recordFailure(run, b, outcome, err.Error())
	} else {
		b.Status = bdomain.StatusSucceeded
		b.Result = result
		outcome.Status = bdomain.StatusSucceeded
		outcome.Result = result
		run.Succeeded++
	}

	run.Cursor++

	if run.Cursor >= run.Total {
		return r.finishLocked(ctx, projectID, ar, domain.StatusCompleted)
	}

	if err := r.repo.Save(ctx, run); err != nil {
		return nil, false, err
	}
	return run.Clone(), false, nil
}

func (r *Runner) recordFailure(run *domain.Run, b *bdomain.Building, outcome *domain.Outcome, detail string) {
	b.Status = bdomain.StatusFailed
	b.Error = detail
	outcome.Status = bdomain.StatusFailed
	outcome.Error = detail
	run.Failed++
	log.Printf("[run] run=%s building=%s failed: %s", run.RunID, b.ID, detail)
}

func (r *Runner) finishLocked(ctx context.Context, projectID string, ar *activeRun, status domain.RunStatus) (*domain.Run, bool, error) {
	run := ar.run
	run.Status = status
	now := time.Now().UTC()
	run.CompletedAt = &now

	if err := r.repo.Save(ctx, run); err != nil {
		return nil, false, err
	}

	// write building statuses and results back into the stored collection
	if err := r.flushCollection(projectID, ar); err != nil {
		log.Printf("[run] run=%s: flush collection: %v", run.RunID, err)
	}

	log.Printf("[run] run=%s %s: total=%d succeeded=%d failed=%d",
		run.RunID, status, run.Total, run.Succeeded, run.Failed)
	return run.Clone(), true, nil
}

func (r *Runner) flushCollection(projectID string, ar *activeRun) error {
	coll, err := r.buildings.Collection(projectID)
	if err != nil {
		return err
	}
	if coll.Len() != len(ar.view) {
		// layer was reimported mid-run; the captured view no longer applies
		return nil
	}
	copy(coll.Buildings, ar.view)
	return r.buildings.Replace(projectID, coll)
}

// RunToCompletion drives Step until the run completes or the context is
// cancelled. onProgress is invoked with a snapshot after every step; it may
// be nil. Per-building failures never surface as errors here.
func (r *Runner) RunToCompletion(ctx context.Context, projectID string, cfg routine.Config, onProgress func(*domain.Run)) (*domain.Run, error) {
	run, err := r.Start(ctx, projectID, cfg)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(run)
	}

	for {
		if err := ctx.Err(); err != nil {
			// cooperative cancellation between buildings
			if _, cerr := r.Cancel(ctx, projectID); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}

		snapshot, done, err := r.Step(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(snapshot)
		}
		if done {
			return snapshot, nil
		}
	}
}

// Cancel transitions a running run to aborted. Because all steps go through
// the runner mutex, cancellation lands on a checkpoint boundary, never in the
// middle of a building.
func (r *Runner) Cancel(ctx context.Context, projectID string) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ar, ok := r.active[projectID]
	if !ok || ar.run.Status != domain.StatusRunning {
		return nil, domain.ErrRunNotActive
	}

	snapshot, _, err := r.finishLocked(ctx, projectID, ar, domain.StatusAborted)
	return snapshot, err
}

// Status returns a snapshot of the active run, falling back to the persisted
// snapshot when no run is live in this process.
func (r *Runner) Status(projectID string) (*domain.Run, error) {
	r.mu.Lock()
	if ar, ok := r.active[projectID]; ok {
		snapshot := ar.run.Clone()
		r.mu.Unlock()
		return snapshot, nil
	}
	r.mu.Unlock()

	return r.repo.Get(projectID)
}
