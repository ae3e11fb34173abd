package main

import (
	"context"
	"log"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/config"
	arepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/repository"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/routine"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/runner"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/bootstrap"
	brepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/repository"
	bsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/service"
	maprepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/repository"
	mapsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/service"
	projrepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/repository"
	projsvc "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/service"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/workflow"
)

// deps bundles the workflow wiring shared by worker subcommands.
type deps struct {
	cfg      *config.Config
	registry *projrepo.Registry
	runRepo  *arepo.RunRepository
	workflow *workflow.State
}

func buildDeps(ctx context.Context) *deps {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, progress events disabled: %v", err)
		rdb = nil
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
	return &deps{
		cfg:      cfg,
		registry: registry,
		runRepo:  runRepo,
		workflow: workflow.New(projects, mapper, buildings, run),
	}
}
