package geomutils

import "fmt"

// Mask is a 2D boolean validity grid over a raster, true where a pixel
// carries data.
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		bits:   make([]bool, width*height),
	}
}

func (m *Mask) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	m.bits[y*m.Width+x] = v
}

// Or merges other into m pixel-wise. Shapes must match.
func (m *Mask) Or(other *Mask) error {
	if m.Width != other.Width || m.Height != other.Height {
		return fmt.Errorf("mask shape mismatch: %dx%d vs %dx%d", m.Width, m.Height, other.Width, other.Height)
	}
	for i, v := range other.bits {
		if v {
			m.bits[i] = true
		}
	}
	return nil
}

// Any reports whether at least one pixel is valid.
func (m *Mask) Any() bool {
	for _, v := range m.bits {
		if v {
			return true
		}
	}
	return false
}

// CountValid returns the number of valid pixels.
func (m *Mask) CountValid() int {
	n := 0
	for _, v := range m.bits {
		if v {
			n++
		}
	}
	return n
}

// MaskNotEqual marks pixels valid where they differ from the nodata
// sentinel. data is row-major with width*height samples.
func MaskNotEqual(data []float64, width, height int, nodata float64) *Mask {
	m := NewMask(width, height)
	for i, v := range data {
		m.bits[i] = v != nodata
	}
	return m
}

// MaskBits marks pixels valid where all bits of maskValue are set in the
// pixel value. Used for bit-flag quality rasters; pixel values are
// truncated to integers before the test.
func MaskBits(data []float64, width, height int, maskValue uint64) *Mask {
	m := NewMask(width, height)
	for i, v := range data {
		m.bits[i] = uint64(v)&maskValue == maskValue
	}
	return m
}
