package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	adomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
)

// RunAnalysis drives a full analysis batch over a project's buildings:
//
//	worker run <project-id> [routine]
//
// The optional routine argument overrides the routine named in the project
// descriptor. When a previous run was interrupted mid-batch its snapshot is
// picked up and continued from the checkpoint instead of starting over.
func RunAnalysis(args []string) {
	if len(args) < 1 || len(args) > 2 {
		log.Fatal("usage: worker run <project-id> [routine]")
	}
	projectID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := buildDeps(ctx)

	p, err := d.workflow.SelectProject(projectID)
	if err != nil {
		log.Fatalf("select project %s: %v", projectID, err)
	}
	if len(args) == 2 {
		p.Routine = args[1]
	}

	run, err := d.workflow.ResumeAnalysis(ctx)
	if err != nil {
		if !errors.Is(err, adomain.ErrNoRunStarted) && !errors.Is(err, adomain.ErrRunNotActive) {
			log.Fatalf("resume: %v", err)
		}
		run, err = d.workflow.StartAnalysis(ctx)
		if err != nil {
			log.Fatalf("start: %v", err)
		}
		log.Printf("[worker] started run %s total=%d routine=%s", run.RunID, run.Total, run.Routine)
	} else {
		log.Printf("[worker] continuing interrupted run %s from %d/%d", run.RunID, run.Cursor, run.Total)
	}

	for {
		if ctx.Err() != nil {
			snapshot, cerr := d.workflow.CancelAnalysis(context.Background())
			if cerr != nil {
				log.Fatalf("cancel: %v", cerr)
			}
			log.Printf("[worker] run %s aborted at %d/%d", snapshot.RunID, snapshot.Cursor, snapshot.Total)
			return
		}

		snapshot, done, err := d.workflow.StepAnalysis(ctx)
		if err != nil {
			log.Fatalf("step: %v", err)
		}
		if snapshot.Cursor%25 == 0 || done {
			log.Printf("[worker] run %s %d/%d succeeded=%d failed=%d",
				snapshot.RunID, snapshot.Cursor, snapshot.Total, snapshot.Succeeded, snapshot.Failed)
		}
		if done {
			log.Printf("[worker] run %s finished: %s", snapshot.RunID, snapshot.Status)
			return
		}
	}
}
