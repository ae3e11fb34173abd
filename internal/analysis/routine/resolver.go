package routine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
)

// Func is the external analysis routine contract: one canonical building
// record in, an opaque result payload or an error out. The call may block for
// significant wall-clock time; the pipeline invokes it synchronously.
type Func func(ctx context.Context, rec mapdomain.Record) (json.RawMessage, error)

// Config carries the per-project settings a routine builder may need.
type Config struct {
	ProjectID string
	Routine   string
	Lat       float64
	Lon       float64
}

// Builder constructs a routine bound to one project's configuration.
type Builder func(cfg Config) Func

// Resolver turns a project configuration into a callable routine.
type Resolver interface {
	Resolve(cfg Config) (Func, error)
}

// Registry is a plugin table of named routine builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

// Register adds or replaces a named builder.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// Resolve returns the routine for cfg.Routine, or ErrRoutineUnavailable.
func (r *Registry) Resolve(cfg Config) (Func, error) {
	r.mu.RLock()
	b, ok := r.builders[cfg.Routine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrRoutineUnavailable, cfg.Routine)
	}
	return b(cfg), nil
}

// Noop is a development routine that echoes the building id.
func Noop(cfg Config) Func {
	return func(ctx context.Context, rec mapdomain.Record) (json.RawMessage, error) {
		payload, err := json.Marshal(map[string]any{"building_id": rec.String("id"), "routine": "noop"})
		if err != nil {
			return nil, err
		}
		return payload, nil
	}
}
