package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/fsutil"
)

const SnapshotFile = "analysis_run.json"

const (
	runEventChannelPrefix = "pv:events:" // Pub/Sub channel per run: pv:events:{run_id}
	latestRunKeyPrefix    = "pv:run:"    // Latest snapshot per project: pv:run:{project_id}
	latestRunTTL          = 7 * 24 * time.Hour
)

// RunRepository checkpoints run snapshots to the project directory and, when
// a redis client is configured, mirrors every checkpoint as a progress event.
// The file on disk is the source of truth; redis is a best-effort mirror for
// live progress consumers.
type RunRepository struct {
	projectsRoot string
	rdb          *redis.Client
}

// NewRunRepository creates a run repository. rdb may be nil.
func NewRunRepository(projectsRoot string, rdb *redis.Client) *RunRepository {
	return &RunRepository{projectsRoot: projectsRoot, rdb: rdb}
}

func (r *RunRepository) path(projectID string) string {
	return filepath.Join(r.projectsRoot, projectID, SnapshotFile)
}

// Get loads the persisted snapshot or ErrNoRunStarted.
func (r *RunRepository) Get(projectID string) (*domain.Run, error) {
	data, err := os.ReadFile(r.path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoRunStarted
		}
		return nil, fmt.Errorf("read run snapshot: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse run snapshot: %w", err)
	}
	return &run, nil
}

// Save checkpoints the run atomically and publishes the snapshot.
func (r *RunRepository) Save(ctx context.Context, run *domain.Run) error {
	if err := fsutil.WriteJSONAtomic(r.path(run.ProjectID), run); err != nil {
		return fmt.Errorf("save run snapshot: %w", err)
	}
	r.publish(ctx, run)
	return nil
}

func (r *RunRepository) publish(ctx context.Context, run *domain.Run) {
	if r.rdb == nil {
		return
	}

	data, err := json.Marshal(run)
	if err != nil {
		return
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, latestRunKeyPrefix+run.ProjectID, data, latestRunTTL)
	pipe.Publish(ctx, runEventChannelPrefix+run.RunID, data)
	// progress events are best effort; a redis outage must not fail a step
	_, _ = pipe.Exec(ctx)
}
