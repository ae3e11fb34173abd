package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	projsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/service"
)

// HealthResponse reports the liveness of the service and of the stores the
// workflow depends on: the projects tree is mandatory, the archive database
// optional.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DataDir   string    `json:"data_dir"`
	Projects  int       `json:"projects"`
	DB        string    `json:"db,omitempty"`
}

type HealthHandler struct {
	serviceName string
	version     string
	projects    *projsvc.ProjectService
	db          *pgxpool.Pool
}

func NewHealthHandler(serviceName, version string, projects *projsvc.ProjectService, db *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		projects:    projects,
		db:          db,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"

	dataStatus := "ok"
	projectCount := 0
	if sums, _, err := h.projects.List(); err != nil {
		// the workflow cannot run without a readable projects tree
		dataStatus = "unreadable"
		status = "degraded"
	} else {
		projectCount = len(sums)
	}

	dbStatus := "disabled"
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.db.Ping(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "up"
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DataDir:   dataStatus,
		Projects:  projectCount,
		DB:        dbStatus,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
