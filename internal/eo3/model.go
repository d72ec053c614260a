// Package eo3 holds the eo3 dataset data model and the valid-data-region
// reconciliation algorithm used by the packaging pipeline.
package eo3

import (
	"github.com/ctessum/geom"
	"github.com/google/uuid"
)

const (
	// SchemaURL identifies the dataset document schema.
	SchemaURL = "https://schemas.opendatacube.org/dataset"
)

// GridSpec identifies a raster geometry: its shape and the affine
// transform mapping pixel coordinates to CRS coordinates. It is a
// comparable value type so it can key maps; transforms compare exactly,
// bit for bit, which is what grid deduplication wants.
type GridSpec struct {
	Shape     [2]int     // rows, columns
	Transform [9]float64 // a, b, c, d, e, f and the homogeneous row 0, 0, 1
}

// GridFromGeoTransform builds a GridSpec from a GDAL-ordered geotransform
// (xoff, a, b, yoff, d, e) and a raster size in pixels.
func GridFromGeoTransform(gt [6]float64, width, height int) GridSpec {
	return GridSpec{
		Shape:     [2]int{height, width},
		Transform: [9]float64{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3], 0, 0, 1},
	}
}

// Measurement references one band of one raster file belonging to a
// dataset.
type Measurement struct {
	Path string `yaml:"path"`
	Band int    `yaml:"band,omitempty"` // 1-based; zero means 1
	Grid string `yaml:"grid,omitempty"` // grid name, "default" when empty

	// Name is the logical band identifier, e.g. "nbar:red". It keys the
	// measurement in the dataset document rather than appearing in it.
	Name string `yaml:"-"`
}

// BandOrDefault returns the band index to read, defaulting to 1.
func (m Measurement) BandOrDefault() int {
	if m.Band == 0 {
		return 1
	}
	return m.Band
}

// GridOrDefault returns the grid this measurement belongs to.
func (m Measurement) GridOrDefault() string {
	if m.Grid == "" {
		return "default"
	}
	return m.Grid
}

// ProductDoc names the product a dataset belongs to.
type ProductDoc struct {
	Name string `yaml:"name,omitempty"`
	Href string `yaml:"href,omitempty"`
}

// AccessoryDoc references a non-measurement file included in a package,
// such as the original provider metadata or a checksum manifest.
type AccessoryDoc struct {
	Path string `yaml:"path"`
}

// DatasetDoc is an eo3 metadata document.
type DatasetDoc struct {
	ID      uuid.UUID
	Label   string
	Product ProductDoc

	CRS      string
	Geometry geom.Polygon
	Grids    map[string]GridSpec

	Properties Properties

	Measurements map[string]Measurement
	Accessories  map[string]AccessoryDoc

	Lineage  map[string][]uuid.UUID
	UserData map[string]interface{}
}
