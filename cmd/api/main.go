package main

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/config"
	arepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/repository"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/routine"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/runner"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/auth"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/bootstrap"
	brepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/repository"
	bsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/service"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/lookup"
	maprepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/repository"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
	projrepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/repository"
	projsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/service"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/scheduler"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/storage/postgres"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	pool, err := openOptionalDB(ctx, cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	authClient, err := auth.InitializeFirebase(&cfg.Firebase)
	if err != nil {
		log.Fatalf("firebase: %v", err)
	}
	if authClient == nil {
		log.Println("Firebase credentials not configured, API runs unauthenticated")
	}

	root := cfg.Data.ProjectsDir
	registry := projrepo.NewRegistry(root)
	projects := projsvc.NewProjectService(registry)
	mapper := mapsvc.NewMapper(maprepo.NewMappingRepository(root))
	buildings := bsvc.NewBuildingService(brepo.NewCollectionRepository(root))
	runRepo := arepo.NewRunRepository(root, rdb)

	routines := routine.NewRegistry()
	routines.Register("noop", routine.Noop)
	pvgis := routine.NewPVGISClient(cfg.PVGIS.Endpoint, cfg.PVGIS.RatePerSec)
	routines.Register("pvgis", pvgis.Builder())

	run := runner.New(runRepo, buildings, mapper, routines)
	wf := workflow.New(projects, mapper, buildings, run)

	var archive *postgres.ArchiveStore
	var planheat *lookup.PlanheatLookup
	if pool != nil {
		archive = postgres.NewArchiveStore(pool)

		ldb, err := lookup.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("lookup db: %v", err)
		}
		planheat = lookup.NewPlanheatLookup(ldb)
	}
	scheduler.New(registry, runRepo, archive).Start()

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "pv-workflow-backend",
		Version:     cfg.App.Version,
		DB:          pool,
		AuthClient:  authClient,
		Projects:    projects,
		Workflow:    wf,
		Lookup:      planheat,
	})

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// openOptionalDB connects postgres when DB_DSN is set; lookup and archive
// features stay disabled otherwise.
func openOptionalDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Database.DSN == "" {
		log.Println("DB_DSN not configured, archive and lookup disabled")
		return nil, nil
	}
	return bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN})
}
