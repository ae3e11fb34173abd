package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	adomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	arepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/repository"
	projrepo "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/repository"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/storage/postgres"
)

// Scheduler runs nightly maintenance: rescan the projects tree and archive
// finished run snapshots into postgres.
type Scheduler struct {
	registry *projrepo.Registry
	runs     *arepo.RunRepository
	archive  *postgres.ArchiveStore
}

// New creates a scheduler. archive may be nil when no database is configured;
// archiving is then skipped.
func New(registry *projrepo.Registry, runs *arepo.RunRepository, archive *postgres.ArchiveStore) *Scheduler {
	return &Scheduler{registry: registry, runs: runs, archive: archive}
}

// Start initializes cron tasks
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	// nightly at 12:00 AM
	_, err := c.AddFunc("0 0 0 * * *", func() {
		s.RunNightly(context.Background())
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (running nightly at 12:00AM)")
	c.Start()
}

// RunNightly performs one maintenance pass. Exported so the worker can
// trigger it on demand.
func (s *Scheduler) RunNightly(ctx context.Context) {
	sums, warns, err := s.registry.List()
	if err != nil {
		log.Printf("[maintenance] project scan failed: %v", err)
		return
	}
	for _, w := range warns {
		log.Printf("[maintenance] skipped %s: %s", w.Dir, w.Reason)
	}
	log.Printf("[maintenance] %d projects discovered", len(sums))

	if s.archive == nil {
		return
	}

	archived := 0
	for _, sum := range sums {
		run, err := s.runs.Get(sum.ID)
		if err != nil {
			continue
		}
		if run.Status == adomain.StatusRunning {
			continue
		}
		if err := s.archive.ArchiveRun(ctx, run); err != nil {
			log.Printf("[maintenance] archive run %s: %v", run.RunID, err)
			continue
		}
		archived++
	}
	log.Printf("[maintenance] archived %d finished runs", archived)
}
