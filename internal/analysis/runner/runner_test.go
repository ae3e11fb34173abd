package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/repository"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/routine"
	bdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
	brepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/repository"
	bsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/service"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	maprepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/repository"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
)

const testProject = "proj"

type env struct {
	root      string
	routines  *routine.Registry
	mapRepo   *maprepo.MappingRepository
	buildings *bsvc.BuildingService
	runs      *repository.RunRepository
	runner    *Runner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		root:      root,
		routines:  routine.NewRegistry(),
		mapRepo:   maprepo.NewMappingRepository(root),
		buildings: bsvc.NewBuildingService(brepo.NewCollectionRepository(root)),
		runs:      repository.NewRunRepository(root, nil),
	}
	e.runner = New(e.runs, e.buildings, mapsvc.NewMapper(e.mapRepo), e.routines)
	return e
}

// reopen builds a fresh runner over the same directory tree, as a new process
// would after a crash.
func (e *env) reopen() *Runner {
	return New(e.runs, e.buildings, mapsvc.NewMapper(e.mapRepo), e.routines)
}

func (e *env) seedMapping(t *testing.T) {
	t.Helper()
	require.NoError(t, e.mapRepo.Set(testProject, mapdomain.Mapping{
		"id":          "OBJECTID",
		"buildingUse": "USE",
		"gfa":         "AREA",
	}))
}

func (e *env) seedBuildings(t *testing.T, ids ...string) {
	t.Helper()
	bs := make([]bdomain.Building, len(ids))
	for i, id := range ids {
		bs[i] = bdomain.Building{
			ID:     id,
			Attrs:  mapdomain.Record{"id": id, "buildingUse": "Residential", "gfa": 100.0},
			Status: bdomain.StatusPending,
		}
	}
	require.NoError(t, e.buildings.Replace(testProject, &bdomain.Collection{
		Source:     "seed",
		ImportedAt: time.Now().UTC(),
		Buildings:  bs,
	}))
}

// failOn fails the routine for the given building ids and succeeds otherwise.
func failOn(ids ...string) routine.Builder {
	return func(cfg routine.Config) routine.Func {
		return func(ctx context.Context, rec mapdomain.Record) (json.RawMessage, error) {
			for _, id := range ids {
				if rec.String("id") == id {
					return nil, fmt.Errorf("routine rejected %s", id)
				}
			}
			return json.RawMessage(`{"ok":true}`), nil
		}
	}
}

func testCfg() routine.Config {
	return routine.Config{ProjectID: testProject, Routine: "test"}
}

func TestRunner_RunToCompletion(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c")
	e.routines.Register("test", failOn("b"))

	var snapshots int
	run, err := e.runner.RunToCompletion(context.Background(), testProject, testCfg(), func(*domain.Run) {
		snapshots++
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, run.Total, run.Succeeded+run.Failed)
	assert.Equal(t, 0, run.Pending())
	require.NotNil(t, run.CompletedAt)
	assert.Positive(t, snapshots)

	// one building failing never poisons its neighbours
	require.Len(t, run.Outcomes, 3)
	assert.Equal(t, bdomain.StatusSucceeded, run.Outcomes[0].Status)
	assert.Equal(t, bdomain.StatusFailed, run.Outcomes[1].Status)
	assert.Contains(t, run.Outcomes[1].Error, "routine rejected b")
	assert.Equal(t, bdomain.StatusSucceeded, run.Outcomes[2].Status)
	assert.JSONEq(t, `{"ok":true}`, string(run.Outcomes[2].Result))

	// results and statuses are flushed back into the stored collection
	coll, err := e.buildings.Collection(testProject)
	require.NoError(t, err)
	assert.Equal(t, bdomain.StatusSucceeded, coll.Buildings[0].Status)
	assert.Equal(t, bdomain.StatusFailed, coll.Buildings[1].Status)
	assert.NotEmpty(t, coll.Buildings[1].Error)
}

func TestRunner_StartRequiresCompleteMapping(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.mapRepo.Set(testProject, mapdomain.Mapping{"id": "OBJECTID"}))
	e.seedBuildings(t, "a")
	e.routines.Register("test", failOn())

	_, err := e.runner.Start(context.Background(), testProject, testCfg())
	require.ErrorIs(t, err, mapdomain.ErrMappingIncomplete)

	var inc *mapdomain.IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.ElementsMatch(t, []string{"buildingUse", "gfa"}, inc.Missing)
}

func TestRunner_StartRequiresLayer(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.routines.Register("test", failOn())

	_, err := e.runner.Start(context.Background(), testProject, testCfg())
	assert.ErrorIs(t, err, bdomain.ErrNoLayerImported)
}

func TestRunner_StartRejectsUnknownRoutine(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a")

	cfg := testCfg()
	cfg.Routine = "missing"
	_, err := e.runner.Start(context.Background(), testProject, cfg)
	assert.ErrorIs(t, err, domain.ErrRoutineUnavailable)
}

func TestRunner_SecondStartWhileRunning(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b")
	e.routines.Register("test", failOn())

	_, err := e.runner.Start(context.Background(), testProject, testCfg())
	require.NoError(t, err)

	_, err = e.runner.Start(context.Background(), testProject, testCfg())
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestRunner_StepWithoutRun(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.runner.Step(context.Background(), testProject)
	assert.ErrorIs(t, err, domain.ErrNoRunStarted)
}

func TestRunner_StepCheckpointsEveryBuilding(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c")
	e.routines.Register("test", failOn())

	ctx := context.Background()
	_, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)

	snapshot, done, err := e.runner.Step(ctx, testProject)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, snapshot.Cursor)

	// the snapshot on disk tracks the in-memory run step for step
	persisted, err := e.runs.Get(testProject)
	require.NoError(t, err)
	assert.Equal(t, snapshot.RunID, persisted.RunID)
	assert.Equal(t, 1, persisted.Cursor)
	assert.Equal(t, bdomain.StatusSucceeded, persisted.Outcomes[0].Status)
	assert.Equal(t, bdomain.StatusPending, persisted.Outcomes[2].Status)

	_, done, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)
	assert.False(t, done)

	final, done, err := e.runner.Step(ctx, testProject)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, domain.StatusCompleted, final.Status)
}

func TestRunner_EmptyCollectionCompletesImmediately(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t)
	e.routines.Register("test", failOn())

	ctx := context.Background()
	_, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)

	run, done, err := e.runner.Step(ctx, testProject)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, domain.StatusCompleted, run.Status)
	assert.Zero(t, run.Total)
}

func TestRunner_Cancel(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c")
	e.routines.Register("test", failOn())

	ctx := context.Background()
	_, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)
	_, _, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)

	run, err := e.runner.Cancel(ctx, testProject)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, run.Status)
	assert.Equal(t, 1, run.Cursor)
	require.NotNil(t, run.CompletedAt)

	// the aborted run no longer accepts steps or a second cancel
	_, _, err = e.runner.Step(ctx, testProject)
	assert.ErrorIs(t, err, domain.ErrRunNotActive)
	_, err = e.runner.Cancel(ctx, testProject)
	assert.ErrorIs(t, err, domain.ErrRunNotActive)

	// a fresh run may start once the previous one is aborted
	fresh, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)
	assert.NotEqual(t, run.RunID, fresh.RunID)
}

func TestRunner_RunToCompletionHonorsContext(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c", "d")
	e.routines.Register("test", failOn())

	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	_, err := e.runner.RunToCompletion(ctx, testProject, testCfg(), func(r *domain.Run) {
		steps++
		if r.Cursor == 2 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	// cancellation lands on a checkpoint boundary
	persisted, err := e.runs.Get(testProject)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, persisted.Status)
	assert.Equal(t, 2, persisted.Cursor)
}

func TestRunner_ResumeAfterCrash(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c", "d")
	e.routines.Register("test", failOn("a"))

	ctx := context.Background()
	started, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)
	_, _, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)
	_, _, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)

	// crash: the process dies between checkpoints, in-memory state is lost
	revived := e.reopen()

	_, _, err = revived.Step(ctx, testProject)
	assert.ErrorIs(t, err, domain.ErrNoRunStarted)

	resumed, err := revived.Resume(ctx, testProject, testCfg())
	require.NoError(t, err)
	assert.Equal(t, started.RunID, resumed.RunID)
	assert.Equal(t, 2, resumed.Cursor)
	assert.Equal(t, bdomain.StatusFailed, resumed.Outcomes[0].Status)
	assert.Equal(t, bdomain.StatusSucceeded, resumed.Outcomes[1].Status)

	var final *domain.Run
	for {
		snapshot, done, err := revived.Step(ctx, testProject)
		require.NoError(t, err)
		if done {
			final = snapshot
			break
		}
	}
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, 4, final.Total)
	assert.Equal(t, 3, final.Succeeded)
	assert.Equal(t, 1, final.Failed)
}

func TestRunner_ResumeRejectsChangedCollection(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b", "c")
	e.routines.Register("test", failOn())

	ctx := context.Background()
	_, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)
	_, _, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)

	e.seedBuildings(t, "x", "y")

	_, err = e.reopen().Resume(ctx, testProject, testCfg())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection changed")
}

func TestRunner_ResumeWithoutSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a")
	e.routines.Register("test", failOn())

	_, err := e.runner.Resume(context.Background(), testProject, testCfg())
	assert.ErrorIs(t, err, domain.ErrNoRunStarted)
}

func TestRunner_ResumeFinishedRun(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a")
	e.routines.Register("test", failOn())

	_, err := e.runner.RunToCompletion(context.Background(), testProject, testCfg(), nil)
	require.NoError(t, err)

	_, err = e.reopen().Resume(context.Background(), testProject, testCfg())
	assert.ErrorIs(t, err, domain.ErrRunNotActive)
}

func TestRunner_UnresolvedAttributesFailWithoutRoutineCall(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)

	require.NoError(t, e.buildings.Replace(testProject, &bdomain.Collection{
		Source:     "seed",
		ImportedAt: time.Now().UTC(),
		Buildings: []bdomain.Building{
			{ID: "ok", Attrs: mapdomain.Record{"id": "ok", "buildingUse": "Office", "gfa": 50.0}, Status: bdomain.StatusPending},
			{ID: "hole", Attrs: mapdomain.Record{"id": "hole", "buildingUse": mapdomain.Unresolved, "gfa": mapdomain.Unresolved}, Status: bdomain.StatusPending},
		},
	}))

	called := map[string]bool{}
	e.routines.Register("test", func(cfg routine.Config) routine.Func {
		return func(ctx context.Context, rec mapdomain.Record) (json.RawMessage, error) {
			called[rec.String("id")] = true
			return json.RawMessage(`{}`), nil
		}
	})

	run, err := e.runner.RunToCompletion(context.Background(), testProject, testCfg(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Contains(t, run.Outcomes[1].Error, "unresolved required attributes")
	assert.True(t, called["ok"])
	assert.False(t, called["hole"])
}

func TestRunner_StatusFallsBackToDisk(t *testing.T) {
	e := newEnv(t)
	e.seedMapping(t)
	e.seedBuildings(t, "a", "b")
	e.routines.Register("test", failOn())

	ctx := context.Background()
	started, err := e.runner.Start(ctx, testProject, testCfg())
	require.NoError(t, err)
	_, _, err = e.runner.Step(ctx, testProject)
	require.NoError(t, err)

	st, err := e.reopen().Status(testProject)
	require.NoError(t, err)
	assert.Equal(t, started.RunID, st.RunID)
	assert.Equal(t, domain.StatusRunning, st.Status)
	assert.Equal(t, 1, st.Cursor)

	_, err = New(e.runs, e.buildings, mapsvc.NewMapper(e.mapRepo), e.routines).Status("ghost")
	assert.ErrorIs(t, err, domain.ErrNoRunStarted)
}
