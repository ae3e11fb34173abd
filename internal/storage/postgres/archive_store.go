package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	adomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
)

// ArchiveStore keeps finished run summaries in postgres for the KPI surface.
// The workflow itself never reads from here; the file snapshots stay the
// source of truth.
type ArchiveStore struct {
	pool *pgxpool.Pool
}

func NewArchiveStore(pool *pgxpool.Pool) *ArchiveStore {
	return &ArchiveStore{pool: pool}
}

// ArchiveRun upserts one finished run. Calling it twice for the same run id
// is harmless.
func (s *ArchiveStore) ArchiveRun(ctx context.Context, run *adomain.Run) error {
	if run.Status == adomain.StatusRunning {
		return fmt.Errorf("refusing to archive a running run")
	}

	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	const q = `
INSERT INTO analysis_runs (run_id, project_id, routine, status, total, succeeded, failed, started_at, completed_at, outcomes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (run_id) DO UPDATE
SET status = EXCLUDED.status,
    succeeded = EXCLUDED.succeeded,
    failed = EXCLUDED.failed,
    completed_at = EXCLUDED.completed_at,
    outcomes = EXCLUDED.outcomes;
`
	_, err = s.pool.Exec(ctx, q,
		run.RunID, run.ProjectID, run.Routine, string(run.Status),
		run.Total, run.Succeeded, run.Failed,
		run.StartedAt, run.CompletedAt, outcomes)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	return nil
}

// ArchivedRunIDs lists run ids already archived for a project.
func (s *ArchiveStore) ArchivedRunIDs(ctx context.Context, projectID string) ([]string, error) {
	const q = `
SELECT run_id FROM analysis_runs
WHERE project_id = $1
ORDER BY started_at DESC;
`
	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list archived runs: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
