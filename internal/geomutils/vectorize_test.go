package geomutils

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizeSquare(t *testing.T) {
	m := maskFrom(4, 4,
		"####",
		"####",
		"####",
		"####",
	)
	polys := Vectorize(m)
	require.Len(t, polys, 1)
	require.Len(t, polys[0], 1)
	assert.InDelta(t, 16.0, polys[0].Area(), 1e-9)
	// Collinear boundary vertices are compressed away.
	assert.Len(t, polys[0][0], 4)
}

func TestVectorizeLShape(t *testing.T) {
	m := maskFrom(3, 3,
		"#..",
		"#..",
		"###",
	)
	polys := Vectorize(m)
	require.Len(t, polys, 1)
	assert.InDelta(t, 5.0, polys[0].Area(), 1e-9)
	assert.Len(t, polys[0][0], 6)
}

func TestVectorizeDonutHasHole(t *testing.T) {
	m := maskFrom(4, 4,
		"####",
		"#..#",
		"#..#",
		"####",
	)
	polys := Vectorize(m)
	require.Len(t, polys, 1)
	require.Len(t, polys[0], 2)
	assert.Greater(t, signedArea(polys[0][0]), 0.0)
	assert.Less(t, signedArea(polys[0][1]), 0.0)
	assert.InDelta(t, 12.0, polys[0].Area(), 1e-9)
}

func TestVectorizeDisjointRegions(t *testing.T) {
	m := maskFrom(5, 1, "#.#.#")
	polys := Vectorize(m)
	require.Len(t, polys, 3)
	for _, p := range polys {
		assert.InDelta(t, 1.0, p.Area(), 1e-9)
	}
}

func TestVectorizeCornerTouch(t *testing.T) {
	// Two cells meeting only at a corner are 4-disconnected.
	m := maskFrom(2, 2,
		"#.",
		".#",
	)
	polys := Vectorize(m)
	require.Len(t, polys, 2)
	total := 0.0
	for _, p := range polys {
		total += p.Area()
	}
	assert.InDelta(t, 2.0, total, 1e-9)
}

func TestVectorizeEmptyMask(t *testing.T) {
	assert.Empty(t, Vectorize(NewMask(3, 3)))
}

func TestVectorizeUnionOfRegions(t *testing.T) {
	left := maskFrom(4, 2, "##..", "##..")
	right := maskFrom(4, 2, ".###", ".###")

	var union geom.Polygon
	for _, m := range []*Mask{left, right} {
		for _, p := range Vectorize(m) {
			if union == nil {
				union = p
			} else {
				union = Flatten(union.Union(p))
			}
		}
	}
	// Overlapping column 1 counted once: 4 + 6 - 2.
	assert.InDelta(t, 8.0, union.Area(), 1e-9)
}
