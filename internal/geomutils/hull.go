package geomutils

import (
	"sort"

	"github.com/ctessum/geom"
)

// ConvexHull computes the convex hull of every vertex in the given
// polygons using the monotone-chain algorithm. The result is a single
// ring, counter-clockwise in a y-up frame.
func ConvexHull(polys ...geom.Polygon) geom.Polygon {
	var pts []geom.Point
	for _, p := range polys {
		for _, ring := range p {
			pts = append(pts, ring...)
		}
	}
	if len(pts) == 0 {
		return nil
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	// Drop duplicates so degenerate inputs stay manageable.
	uniq := pts[:1]
	for _, p := range pts[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return geom.Polygon{pts}
	}

	turn := func(o, a, b geom.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower []geom.Point
	for _, p := range pts {
		for len(lower) >= 2 && turn(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	var upper []geom.Point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && turn(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	return geom.Polygon{hull}
}
