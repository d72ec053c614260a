package geomutils

import (
	"github.com/ctessum/geom"
)

type ivec [2]int

type edge struct {
	from, to ivec
	used     bool
}

// Vectorize traces the valid regions of a mask into polygons in pixel
// coordinates (x right, y down, unit cell per pixel). Each 4-connected
// region becomes one polygon; enclosed invalid regions become holes.
// Invalid regions themselves are never emitted.
func Vectorize(m *Mask) []geom.Polygon {
	labels := label(m)

	// Boundary edges per component, directed so that each ring closes.
	// A valid cell (x,y) spans corners (x,y)-(x+1,y+1).
	components := make(map[int][]edge)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Get(x, y) {
				continue
			}
			c := labels[y*m.Width+x]
			tl := ivec{x, y}
			tr := ivec{x + 1, y}
			br := ivec{x + 1, y + 1}
			bl := ivec{x, y + 1}
			if !m.Get(x, y-1) {
				components[c] = append(components[c], edge{from: tl, to: tr})
			}
			if !m.Get(x+1, y) {
				components[c] = append(components[c], edge{from: tr, to: br})
			}
			if !m.Get(x, y+1) {
				components[c] = append(components[c], edge{from: br, to: bl})
			}
			if !m.Get(x-1, y) {
				components[c] = append(components[c], edge{from: bl, to: tl})
			}
		}
	}

	var polys []geom.Polygon
	for c := 0; c < len(components); c++ {
		rings := stitchRings(components[c])
		poly := make(geom.Polygon, 0, len(rings))
		// The outer ring first; holes (negative signed area) after it.
		for _, r := range rings {
			if signedArea(r) > 0 {
				poly = append(poly, r)
			}
		}
		for _, r := range rings {
			if signedArea(r) <= 0 {
				poly = append(poly, r)
			}
		}
		polys = append(polys, poly)
	}
	return polys
}

// label assigns a component id to every valid pixel (4-connectivity),
// numbering components in scan order.
func label(m *Mask) []int {
	labels := make([]int, m.Width*m.Height)
	for i := range labels {
		labels[i] = -1
	}
	next := 0
	var queue []ivec
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Get(x, y) || labels[y*m.Width+x] >= 0 {
				continue
			}
			labels[y*m.Width+x] = next
			queue = append(queue[:0], ivec{x, y})
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				for _, n := range [4]ivec{{p[0] + 1, p[1]}, {p[0] - 1, p[1]}, {p[0], p[1] + 1}, {p[0], p[1] - 1}} {
					if m.Get(n[0], n[1]) && labels[n[1]*m.Width+n[0]] < 0 {
						labels[n[1]*m.Width+n[0]] = next
						queue = append(queue, n)
					}
				}
			}
			next++
		}
	}
	return labels
}

// stitchRings chains directed boundary edges into closed rings, dropping
// collinear intermediate vertices.
func stitchRings(edges []edge) [][]geom.Point {
	outgoing := make(map[ivec][]int, len(edges))
	for i, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], i)
	}

	var rings [][]geom.Point
	for i := range edges {
		if edges[i].used {
			continue
		}
		start := edges[i].from
		cur := i
		var ring []ivec
		for {
			edges[cur].used = true
			ring = append(ring, edges[cur].from)
			at := edges[cur].to
			if at == start {
				break
			}
			next := -1
			best := 0
			for _, cand := range outgoing[at] {
				if edges[cand].used {
					continue
				}
				// Where two cells of one region meet only at a corner,
				// keep hugging the lobe we are tracing.
				c := cross(edges[cur], edges[cand])
				if next < 0 || c > best {
					next = cand
					best = c
				}
			}
			if next < 0 {
				break
			}
			cur = next
		}
		rings = append(rings, compress(ring))
	}
	return rings
}

func cross(in, out edge) int {
	dxi, dyi := in.to[0]-in.from[0], in.to[1]-in.from[1]
	dxo, dyo := out.to[0]-out.from[0], out.to[1]-out.from[1]
	return dxi*dyo - dyi*dxo
}

// compress removes vertices that continue the previous edge direction.
func compress(ring []ivec) []geom.Point {
	n := len(ring)
	var out []geom.Point
	for i := 0; i < n; i++ {
		prev := ring[(i-1+n)%n]
		next := ring[(i+1)%n]
		cur := ring[i]
		d1x, d1y := cur[0]-prev[0], cur[1]-prev[1]
		d2x, d2y := next[0]-cur[0], next[1]-cur[1]
		if d1x*d2y-d1y*d2x == 0 {
			continue
		}
		out = append(out, geom.Point{X: float64(cur[0]), Y: float64(cur[1])})
	}
	return out
}

func signedArea(ring []geom.Point) float64 {
	var s float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		s += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return s / 2
}
