package main

import (
	"context"
	"log"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/importer"
)

// RunImport loads a GeoJSON buildings layer into a project:
//
//	worker import <project-id> <layer.geojson>
func RunImport(args []string) {
	if len(args) != 2 {
		log.Fatal("usage: worker import <project-id> <layer.geojson>")
	}
	projectID, path := args[0], args[1]

	d := buildDeps(context.Background())

	if _, err := d.workflow.SelectProject(projectID); err != nil {
		log.Fatalf("select project %s: %v", projectID, err)
	}

	res, err := d.workflow.ImportLayer(importer.NewGeoJSONSource(path))
	if err != nil {
		log.Fatalf("import %s: %v", path, err)
	}
	log.Printf("[import] project=%s imported=%d rejected=%d", projectID, res.Imported, res.Rejected)
}
