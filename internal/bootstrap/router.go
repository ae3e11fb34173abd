package bootstrap

import (
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	httpapi "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/api/http"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/api/http/middleware"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/auth"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/lookup"
	lookuphttp "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/lookup/http"
	projhttp "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/http"
	projsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/service"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/workflow"
	wfhttp "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/workflow/http"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *pgxpool.Pool
	AuthClient  *fbauth.Client
	Projects    *projsvc.ProjectService
	Workflow    *workflow.State
	// Lookup is optional; catalogue routes are mounted only when the
	// reference database is configured.
	Lookup *lookup.PlanheatLookup
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Projects, dep.DB)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	api.Use(middleware.RequestIDMiddleware())
	api.Use(auth.Middleware(dep.AuthClient))

	projhttp.New(dep.Projects).Register(api.Group("/projects"))
	wfhttp.New(dep.Workflow).Register(api.Group("/workflow"))
	if dep.Lookup != nil {
		lookuphttp.New(dep.Lookup).Register(api.Group("/lookup"))
	}

	return r
}
