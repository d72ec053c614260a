package geomutils

import (
	"math"

	"github.com/ctessum/geom"
)

type offsetLine struct {
	p geom.Point // point on the shifted edge
	d geom.Point // edge direction
}

// BufferMitre grows a convex polygon outward by the given distance with
// mitred joins: each edge is shifted outward along its normal and
// adjacent shifted edges are intersected, so corners stay sharp instead
// of being rounded. Only the outer ring is considered.
func BufferMitre(p geom.Polygon, distance float64) geom.Polygon {
	if len(p) == 0 || len(p[0]) == 0 {
		return p
	}
	ring := p[0]
	if len(ring) < 3 {
		return p
	}

	// Outward side depends on ring orientation.
	sign := 1.0
	if signedArea(ring) < 0 {
		sign = -1.0
	}

	n := len(ring)
	lines := make([]offsetLine, 0, n)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Normal pointing away from the interior.
		nx, ny := sign*dy/length, sign*-dx/length
		lines = append(lines, offsetLine{
			p: geom.Point{X: a.X + nx*distance, Y: a.Y + ny*distance},
			d: geom.Point{X: dx, Y: dy},
		})
	}
	if len(lines) < 3 {
		return p
	}

	out := make([]geom.Point, 0, len(lines))
	for i := range lines {
		prev := lines[(i-1+len(lines))%len(lines)]
		cur := lines[i]
		pt, ok := intersectLines(prev, cur)
		if !ok {
			// Parallel consecutive edges: fall back to the shifted vertex.
			pt = cur.p
		}
		out = append(out, pt)
	}
	return geom.Polygon{out}
}

func intersectLines(l1, l2 offsetLine) (geom.Point, bool) {
	den := l1.d.X*l2.d.Y - l1.d.Y*l2.d.X
	if den == 0 {
		return geom.Point{}, false
	}
	t := ((l2.p.X-l1.p.X)*l2.d.Y - (l2.p.Y-l1.p.Y)*l2.d.X) / den
	return geom.Point{X: l1.p.X + t*l1.d.X, Y: l1.p.Y + t*l1.d.Y}, true
}
