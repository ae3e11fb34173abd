package main

import (
	"context"
	"log"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/bootstrap"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/scheduler"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/storage/postgres"
)

// RunMaintenance triggers one maintenance pass on demand, the same pass the
// API process schedules nightly:
//
//	worker maintenance
func RunMaintenance(args []string) {
	if len(args) != 0 {
		log.Fatal("usage: worker maintenance")
	}

	ctx := context.Background()
	d := buildDeps(ctx)

	var archive *postgres.ArchiveStore
	if d.cfg.Database.DSN != "" {
		pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: d.cfg.Database.DSN})
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		archive = postgres.NewArchiveStore(pool)
	}

	scheduler.New(d.registry, d.runRepo, archive).RunNightly(ctx)
}
