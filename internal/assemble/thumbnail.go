package assemble

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/earth-archive/eo3pack/internal/eo3"
)

// writeThumbnail renders an RGB quicklook from the three configured
// measurements, linearly stretched per band, and saves it as PNG.
func (a *Assembler) writeThumbnail(path string) error {
	var bands [3][]float64
	var width, height int
	for i, name := range []string{a.thumbnail.red, a.thumbnail.green, a.thumbnail.blue} {
		m, ok := a.findMeasurement(name)
		if !ok {
			return fmt.Errorf("thumbnail band %q is not a known measurement", name)
		}
		data, w, h, err := readFullBand(a.opener, m)
		if err != nil {
			return fmt.Errorf("reading thumbnail band %q: %w", name, err)
		}
		if i == 0 {
			width, height = w, h
		} else if w != width || h != height {
			return fmt.Errorf("thumbnail band %q is %dx%d, want %dx%d", name, w, h, width, height)
		}
		bands[i] = stretch(data)
	}

	dc := gg.NewContext(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			dc.SetRGB(bands[0][i], bands[1][i], bands[2][i])
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("saving thumbnail: %w", err)
	}
	return nil
}

func (a *Assembler) findMeasurement(name string) (measurement, bool) {
	for _, m := range a.measurements {
		if m.name == name {
			return m, true
		}
	}
	return measurement{}, false
}

func readFullBand(opener eo3.RasterOpener, m measurement) ([]float64, int, int, error) {
	raster, err := opener.Open(m.location)
	if err != nil {
		return nil, 0, 0, err
	}
	defer raster.Close()

	band := m.band
	if band == 0 {
		band = 1
	}
	data, err := raster.ReadBand(band)
	if err != nil {
		return nil, 0, 0, err
	}
	rows, cols := raster.Shape()
	return data, cols, rows, nil
}

// stretch maps band values onto [0,1] between the band's minimum and
// maximum. A constant band renders black.
func stretch(data []float64) []float64 {
	if len(data) == 0 {
		return data
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(data))
	if hi == lo {
		return out
	}
	for i, v := range data {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
