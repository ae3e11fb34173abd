package domain

import (
	"encoding/json"
	"time"

	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
)

// Status tracks a building through the analysis pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// GeometryRef points back into the imported layer instead of duplicating the
// geometry. Consumers that need coordinates re-read the source feature.
type GeometryRef struct {
	Source       string `json:"source"`
	FeatureIndex int    `json:"feature_index"`
}

// Building is one imported feature with canonical attributes. Status and
// result are only ever mutated by the analysis runner.
type Building struct {
	ID       string           `json:"id"`
	Geometry GeometryRef      `json:"geometry"`
	Attrs    mapdomain.Record `json:"attrs"`
	Status   Status           `json:"status"`
	Result   json.RawMessage  `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Collection is the ordered building set of one project. Insertion order is
// the processing and progress-reporting order.
type Collection struct {
	Source     string     `json:"source"`
	ImportedAt time.Time  `json:"imported_at"`
	Columns    []string   `json:"columns"`
	Buildings  []Building `json:"buildings"`
}

// Len returns the number of buildings.
func (c *Collection) Len() int {
	return len(c.Buildings)
}
