package http

import "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/workflow"

// Handler exposes the workflow façade over HTTP. Each request selects the
// project named in the URL before invoking the operation; the façade's mutex
// serializes concurrent callers.
type Handler struct {
	state *workflow.State
}

func New(state *workflow.State) *Handler {
	return &Handler{state: state}
}
