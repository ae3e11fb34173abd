package importer

// Feature is one raw record from an imported layer: a geometry flag plus the
// source attribute map. Geometry itself is not carried; buildings keep a
// reference into the source instead.
type Feature struct {
	Index       int
	HasGeometry bool
	Attrs       map[string]any
}

// Source produces an ordered sequence of features from some external
// geometry/attribute dataset. Implementations own parsing; the building
// service only sees this contract.
type Source interface {
	// Name identifies the source (usually a file path) for geometry refs.
	Name() string
	// Columns lists the non-geometry attribute columns of the layer.
	Columns() ([]string, error)
	// Features returns all features in stable layer order.
	Features() ([]Feature, error)
}
