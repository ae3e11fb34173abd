package domain

import "time"

// Project describes one project directory under the data root. It is
// storage-agnostic and shared across repository, service and HTTP layers.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Country     string    `json:"country,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// BuildingsSource is the path of the last imported buildings layer,
	// relative to the project directory. Empty until a layer is imported.
	BuildingsSource string `json:"buildings_source,omitempty"`

	// Routine names the analysis routine used for this project.
	Routine string `json:"routine,omitempty"`

	// Lat/Lon is the project's representative location, used by routines
	// that query location-bound services.
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// Summary is the listing view of a project.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DiscoveryWarning records a directory that was skipped during a scan.
type DiscoveryWarning struct {
	Dir    string `json:"dir"`
	Reason string `json:"reason"`
}
