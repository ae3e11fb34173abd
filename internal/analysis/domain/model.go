package domain

import (
	"encoding/json"
	"time"

	bdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
)

// RunStatus is the lifecycle of one analysis run. The idle state is the
// absence of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusAborted   RunStatus = "aborted"
)

// Outcome is the per-building result of a run. A failed outcome never fails
// the run; "completed" only means the batch traversed every building.
type Outcome struct {
	BuildingID string          `json:"id"`
	Status     bdomain.Status  `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Run is one traversal of a project's building collection. It doubles as the
// status snapshot exposed to callers and the checkpoint persisted after every
// step.
type Run struct {
	RunID       string     `json:"run_id"`
	ProjectID   string     `json:"project_id"`
	Routine     string     `json:"routine"`
	Status      RunStatus  `json:"run_status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Cursor is the index of the next building to process.
	Cursor    int       `json:"cursor"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"per_building"`
}

// Clone returns a deep copy so callers can hold a snapshot while the runner
// keeps mutating the live run.
func (r *Run) Clone() *Run {
	out := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	out.Outcomes = make([]Outcome, len(r.Outcomes))
	copy(out.Outcomes, r.Outcomes)
	return &out
}

// Pending counts buildings not yet traversed.
func (r *Run) Pending() int {
	return r.Total - r.Succeeded - r.Failed
}
