package geomutils

import "github.com/ctessum/geom"

// Box returns the rectangle [x0,x1] x [y0,y1] as a polygon.
func Box(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

// Flatten collapses a polygonal result into a single multi-ring polygon.
// Union and Intersection return the Polygonal interface; downstream steps
// want the concrete rings.
func Flatten(p geom.Polygonal) geom.Polygon {
	var out geom.Polygon
	for _, poly := range p.Polygons() {
		out = append(out, poly...)
	}
	return out
}

// AffineTransform maps every vertex of p through the 6-parameter affine
// transform x' = a*x + b*y + xoff, y' = d*x + e*y + yoff.
func AffineTransform(p geom.Polygon, a, b, d, e, xoff, yoff float64) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, ring := range p {
		out[i] = make([]geom.Point, len(ring))
		for j, pt := range ring {
			out[i][j] = geom.Point{
				X: a*pt.X + b*pt.Y + xoff,
				Y: d*pt.X + e*pt.Y + yoff,
			}
		}
	}
	return out
}
