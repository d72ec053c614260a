package eo3

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"

	"github.com/earth-archive/eo3pack/internal/geomutils"
)

// ValidRegion is the result of reconciling a dataset's measurements into
// a named grid table and a valid-data footprint.
type ValidRegion struct {
	// Footprint is the simplified valid-data polygon in CRS coordinates.
	// It is empty when no measurement carried any valid pixel.
	Footprint geom.Polygon

	// Grids maps grid names to their geometry. Exactly one entry is named
	// "default": the grid shared by the most measurements.
	Grids map[string]GridSpec

	// Assignments maps each measurement name to its grid name. Callers that
	// want measurements annotated in place can use Apply.
	Assignments map[string]string
}

// Apply writes each measurement's assigned grid name back onto the
// measurement slice. Measurements without an assignment are left alone.
func (vr *ValidRegion) Apply(measurements []Measurement) {
	for i := range measurements {
		if name, ok := vr.Assignments[measurements[i].Name]; ok {
			measurements[i].Grid = name
		}
	}
}

type regionConfig struct {
	maskValue       uint64
	hasMaskValue    bool
	defaultGridClip bool
}

// Option adjusts how ComputeValidRegion derives the region.
type Option func(*regionConfig)

// WithMaskValue switches validity from the nodata test to a bitwise
// containment test: a pixel is valid when pixel & maskValue == maskValue.
// Intended for bit-flag quality rasters.
func WithMaskValue(maskValue uint64) Option {
	return func(c *regionConfig) {
		c.maskValue = maskValue
		c.hasMaskValue = true
	}
}

// WithDefaultGridReference clips and georeferences the footprint using the
// default grid's geometry. Without it the last-opened raster is the
// reference, matching the behavior existing datasets were produced with.
func WithDefaultGridReference() Option {
	return func(c *regionConfig) { c.defaultGridClip = true }
}

// gridGroup accumulates the measurements and OR-combined validity mask of
// one distinct grid, in first-encounter order.
type gridGroup struct {
	grid    GridSpec
	mask    *geomutils.Mask
	members []string
}

// ComputeValidRegion opens every measurement's raster under datasetRoot,
// derives per-grid validity masks, names the grids (the one with the most
// members becomes "default", the rest are their member names joined by
// "_") and traces the combined valid-data footprint: vectorize, union,
// convex hull, one-pixel mitred buffer, simplify, clip to the reference
// raster's bounds and transform into CRS coordinates.
func ComputeValidRegion(opener RasterOpener, datasetRoot string, measurements []Measurement, opts ...Option) (*ValidRegion, error) {
	var cfg regionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(measurements) == 0 {
		return nil, &InputError{Msg: "no measurements"}
	}

	groups := map[GridSpec]*gridGroup{}
	var order []GridSpec
	var lastGrid GridSpec

	for _, m := range measurements {
		grid, mask, err := measurementMask(opener, datasetRoot, m, cfg)
		if err != nil {
			return nil, err
		}
		lastGrid = grid

		g, ok := groups[grid]
		if !ok {
			g = &gridGroup{grid: grid, mask: mask}
			groups[grid] = g
			order = append(order, grid)
		} else if err := g.mask.Or(mask); err != nil {
			return nil, fmt.Errorf("accumulating mask for %q: %w", m.Name, err)
		}
		g.members = append(g.members, m.Name)
	}

	// Most members wins "default"; stable ascending sort keeps
	// first-encounter order among equal counts, so the last of a tied
	// maximum is the latest-discovered grid.
	sorted := make([]*gridGroup, 0, len(order))
	for _, grid := range order {
		sorted = append(sorted, groups[grid])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].members) < len(sorted[j].members)
	})

	defaultGroup := sorted[len(sorted)-1]
	region := &ValidRegion{
		Grids:       make(map[string]GridSpec, len(sorted)),
		Assignments: make(map[string]string, len(measurements)),
	}
	for _, g := range sorted {
		name := "default"
		if g != defaultGroup {
			name = strings.Join(g.members, "_")
		}
		region.Grids[name] = g.grid
		for _, member := range g.members {
			region.Assignments[member] = name
		}
	}

	reference := lastGrid
	if cfg.defaultGridClip {
		reference = defaultGroup.grid
	}

	var union geom.Polygon
	for _, g := range sorted {
		if !g.mask.Any() {
			continue
		}
		for _, poly := range geomutils.Vectorize(g.mask) {
			if union == nil {
				union = poly
			} else {
				union = geomutils.Flatten(union.Union(poly))
			}
		}
	}
	if len(union) == 0 {
		return region, nil
	}

	shape := geomutils.ConvexHull(union)
	shape = geomutils.BufferMitre(shape, 1)

	simplifiedGeom := shape.Simplify(1)
	simplified, ok := simplifiedGeom.(geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("simplifying footprint: unexpected geometry %T", simplifiedGeom)
	}
	width := float64(reference.Shape[1])
	height := float64(reference.Shape[0])
	clipped := geomutils.Flatten(simplified.Intersection(geomutils.Box(0, 0, width, height)))

	t := reference.Transform
	region.Footprint = geomutils.AffineTransform(clipped, t[0], t[1], t[3], t[4], t[2], t[5])
	return region, nil
}

// measurementMask opens one measurement and derives its grid and validity
// mask, releasing the raster handle before returning.
func measurementMask(opener RasterOpener, datasetRoot string, m Measurement, cfg regionConfig) (GridSpec, *geomutils.Mask, error) {
	location := ResolveOffset(datasetRoot, m.Path)
	raster, err := opener.Open(location)
	if err != nil {
		return GridSpec{}, nil, fmt.Errorf("opening %q: %w", location, err)
	}
	defer raster.Close()

	if raster.Bands() != 1 {
		return GridSpec{}, nil, &UnsupportedFormatError{Location: location, Bands: raster.Bands()}
	}

	rows, cols := raster.Shape()
	grid := GridSpec{Shape: [2]int{rows, cols}, Transform: raster.Transform()}

	band := m.BandOrDefault()
	data, err := raster.ReadBand(band)
	if err != nil {
		return GridSpec{}, nil, fmt.Errorf("reading band %d of %q: %w", band, location, err)
	}

	if cfg.hasMaskValue {
		return grid, geomutils.MaskBits(data, cols, rows, cfg.maskValue), nil
	}
	nodata, ok := raster.NoData(band)
	if !ok {
		return GridSpec{}, nil, &InputError{Msg: fmt.Sprintf("raster %q has no nodata value and no mask value was supplied", location)}
	}
	return grid, geomutils.MaskNotEqual(data, cols, rows, nodata), nil
}
