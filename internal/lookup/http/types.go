package http

import "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/lookup"

// Handler exposes the Planheat reference catalogue over HTTP. Only mounted
// when a reference database is configured.
type Handler struct {
	svc *lookup.PlanheatLookup
}

func New(svc *lookup.PlanheatLookup) *Handler {
	return &Handler{svc: svc}
}
