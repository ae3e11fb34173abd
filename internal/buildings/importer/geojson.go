package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// GeoJSONSource reads a FeatureCollection file. Shapefiles are expected to be
// converted to GeoJSON upstream; this keeps the import step a dumb I/O pass.
type GeoJSONSource struct {
	path string
}

func NewGeoJSONSource(path string) *GeoJSONSource {
	return &GeoJSONSource{path: path}
}

func (s *GeoJSONSource) Name() string {
	return s.path
}

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func (s *GeoJSONSource) read() (*geoJSONCollection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}
	var fc geoJSONCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("not a FeatureCollection: %q", fc.Type)
	}
	return &fc, nil
}

func (s *GeoJSONSource) Columns() ([]string, error) {
	fc, err := s.read()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, f := range fc.Features {
		for k := range f.Properties {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

func (s *GeoJSONSource) Features() ([]Feature, error) {
	fc, err := s.read()
	if err != nil {
		return nil, err
	}

	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		hasGeom := len(f.Geometry) > 0 && string(f.Geometry) != "null"
		attrs := f.Properties
		if attrs == nil {
			attrs = map[string]any{}
		}
		out = append(out, Feature{Index: i, HasGeometry: hasGeom, Attrs: attrs})
	}
	return out, nil
}
