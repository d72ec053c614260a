package eo3

// Raster is one open raster file. Implementations are not required to be
// safe for concurrent use.
type Raster interface {
	// Shape returns rows then columns.
	Shape() (int, int)
	// Transform returns the pixel-to-CRS affine as a 9-element row-major
	// matrix whose last row is 0, 0, 1.
	Transform() [9]float64
	// Bands reports how many bands the file carries.
	Bands() int
	// NoData returns the nodata value of the given 1-based band, and
	// whether one is set.
	NoData(band int) (float64, bool)
	// ReadBand reads the full contents of the given 1-based band as
	// float64 samples in row-major order.
	ReadBand(band int) ([]float64, error)
	Close() error
}

// RasterOpener opens raster files by location. Locations may use the
// "tar:<archive>!<member>" form produced by ResolveOffset.
type RasterOpener interface {
	Open(location string) (Raster, error)
}

// RasterOpenerFunc adapts a function to the RasterOpener interface.
type RasterOpenerFunc func(location string) (Raster, error)

func (f RasterOpenerFunc) Open(location string) (Raster, error) { return f(location) }
