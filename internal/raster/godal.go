// Package raster reads geospatial imagery through GDAL.
package raster

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/earth-archive/eo3pack/internal/eo3"
)

var registerOnce sync.Once

// quietWarnings keeps GDAL warnings (stale statistics, exotic TIFF tags)
// off the console while still failing on real errors.
func quietWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("gdal: %s", msg)
}

// Opener opens rasters by location, including the "tar:<archive>!<member>"
// locator form, which is mapped onto GDAL's /vsitar/ virtual filesystem.
type Opener struct{}

func NewOpener() *Opener {
	registerOnce.Do(godal.RegisterAll)
	return &Opener{}
}

func (o *Opener) Open(location string) (eo3.Raster, error) {
	dataset, err := godal.Open(gdalPath(location), godal.ErrLogger(quietWarnings))
	if err != nil {
		return nil, fmt.Errorf("failed to open raster %q: %w", location, err)
	}

	gt, err := dataset.GeoTransform()
	if err != nil {
		dataset.Close()
		return nil, fmt.Errorf("reading geotransform of %q: %w", location, err)
	}

	structure := dataset.Structure()
	grid := eo3.GridFromGeoTransform(gt, structure.SizeX, structure.SizeY)
	return &gdalRaster{
		location:  location,
		dataset:   dataset,
		rows:      structure.SizeY,
		cols:      structure.SizeX,
		transform: grid.Transform,
	}, nil
}

// gdalPath rewrites archive locators into GDAL virtual filesystem paths.
func gdalPath(location string) string {
	if rest, ok := strings.CutPrefix(location, "tar:"); ok {
		if archive, member, found := strings.Cut(rest, "!"); found {
			return "/vsitar/{" + archive + "}/" + member
		}
	}
	return location
}

type gdalRaster struct {
	location  string
	dataset   *godal.Dataset
	rows      int
	cols      int
	transform [9]float64
}

func (r *gdalRaster) Shape() (int, int)     { return r.rows, r.cols }
func (r *gdalRaster) Transform() [9]float64 { return r.transform }
func (r *gdalRaster) Bands() int            { return len(r.dataset.Bands()) }
func (r *gdalRaster) Close() error          { return r.dataset.Close() }

func (r *gdalRaster) NoData(band int) (float64, bool) {
	bands := r.dataset.Bands()
	if band < 1 || band > len(bands) {
		return 0, false
	}
	return bands[band-1].NoData()
}

func (r *gdalRaster) ReadBand(band int) ([]float64, error) {
	bands := r.dataset.Bands()
	if band < 1 || band > len(bands) {
		return nil, fmt.Errorf("band %d out of range for %q (%d bands)", band, r.location, len(bands))
	}
	data := make([]float64, r.cols*r.rows)
	if err := bands[band-1].Read(0, 0, data, r.cols, r.rows); err != nil {
		return nil, fmt.Errorf("failed to read raster data from %q: %w", r.location, err)
	}
	return data, nil
}

// Subdatasets lists the subdataset locations of a container format such
// as HDF5, in declaration order.
func Subdatasets(location string) ([]string, error) {
	registerOnce.Do(godal.RegisterAll)
	dataset, err := godal.Open(gdalPath(location), godal.ErrLogger(quietWarnings))
	if err != nil {
		return nil, fmt.Errorf("failed to open container %q: %w", location, err)
	}
	defer dataset.Close()

	metadata := dataset.Metadatas(godal.Domain("SUBDATASETS"))
	keys := make([]string, 0, len(metadata)/2)
	for k := range metadata {
		if strings.HasSuffix(k, "_NAME") {
			keys = append(keys, k)
		}
	}
	// Keys are SUBDATASET_<n>_NAME; numeric order matters for band order.
	sort.Slice(keys, func(i, j int) bool {
		return subdatasetIndex(keys[i]) < subdatasetIndex(keys[j])
	})

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, metadata[k])
	}
	return names, nil
}

func subdatasetIndex(key string) int {
	var n int
	fmt.Sscanf(key, "SUBDATASET_%d_NAME", &n)
	return n
}
