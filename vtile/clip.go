package vtile

import "github.com/paulmach/orb"

// Axis selects the coordinate tested by the clipper. It indexes orb.Point
// directly so one implementation handles both dimensions.
type Axis int

const (
	AxisX Axis = 0
	AxisY Axis = 1
)

// other returns the axis that is interpolated while clipping on a
func (a Axis) other() Axis {
	return 1 - a
}

// intersect returns the point where segment a-b crosses a[axis] == k. The
// clipped coordinate is set to exactly k so boundary points sit on the edge.
func intersect(a, b orb.Point, k float64, axis Axis) orb.Point {
	t := (k - a[axis]) / (b[axis] - a[axis])
	var p orb.Point
	p[axis] = k
	o := axis.other()
	p[o] = a[o] + (b[o]-a[o])*t
	return p
}

// clipSlice is a one pass Sutherland-Hodgman style slice of points against
// k1 <= p[axis] <= k2. For open lines a piece is closed every time the line
// leaves the interval; for rings everything stays in one piece.
func clipSlice(points []orb.Point, k1, k2 float64, axis Axis, ring bool) [][]orb.Point {
	var out [][]orb.Point
	var piece []orb.Point

	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		ak, bk := a[axis], b[axis]
		exited := false

		switch {
		case ak < k1:
			// entering from below
			if bk > k1 {
				piece = appendEdge(piece, intersect(a, b, k1, axis))
			}
		case ak > k2:
			// entering from above
			if bk < k2 {
				piece = appendEdge(piece, intersect(a, b, k2, axis))
			}
		default:
			piece = append(piece, a)
		}

		if bk < k1 && ak >= k1 {
			piece = appendEdge(piece, intersect(a, b, k1, axis))
			exited = true
		}
		if bk > k2 && ak <= k2 {
			piece = appendEdge(piece, intersect(a, b, k2, axis))
			exited = true
		}

		if !ring && exited {
			out = append(out, piece)
			piece = nil
		}
	}

	if len(points) > 0 {
		last := points[len(points)-1]
		if lk := last[axis]; lk >= k1 && lk <= k2 {
			piece = append(piece, last)
		}
	}

	if ring && len(piece) > 0 && piece[0] != piece[len(piece)-1] {
		piece = append(piece, piece[0])
	}

	if len(piece) > 0 {
		out = append(out, piece)
	}
	return out
}

// appendEdge adds a boundary intersection unless the piece already ends
// there, which happens when the previous point lies on the boundary
func appendEdge(piece []orb.Point, p orb.Point) []orb.Point {
	if n := len(piece); n > 0 && piece[n-1] == p {
		return piece
	}
	return append(piece, p)
}

// collapsed reports whether every point of s is the same
func collapsed(s []orb.Point) bool {
	for _, p := range s[1:] {
		if p != s[0] {
			return false
		}
	}
	return true
}

// ClipLine clips an open line against k1 <= p[axis] <= k2. The line may be
// split into several pieces; pieces with fewer than two distinct points are
// dropped.
func ClipLine(line orb.LineString, k1, k2 float64, axis Axis) []orb.LineString {
	slices := clipSlice(line, k1, k2, axis, false)
	result := make([]orb.LineString, 0, len(slices))
	for _, s := range slices {
		if len(s) >= 2 && !collapsed(s) {
			result = append(result, orb.LineString(s))
		}
	}
	return result
}

// ClipRing clips a closed ring against k1 <= p[axis] <= k2 and returns at
// most one ring. A non-empty result is always closed.
func ClipRing(ring orb.Ring, k1, k2 float64, axis Axis) orb.Ring {
	slices := clipSlice(ring, k1, k2, axis, true)
	if len(slices) == 0 || collapsed(slices[0]) {
		return nil
	}
	return orb.Ring(slices[0])
}

// ClipLineToUnit clips on x then y against the unit square
func ClipLineToUnit(line orb.LineString) []orb.LineString {
	var result []orb.LineString
	for _, piece := range ClipLine(line, 0, 1, AxisX) {
		result = append(result, ClipLine(piece, 0, 1, AxisY)...)
	}
	return result
}

// ClipRingToUnit clips on x then y against the unit square
func ClipRingToUnit(ring orb.Ring) orb.Ring {
	r := ClipRing(ring, 0, 1, AxisX)
	if len(r) == 0 {
		return nil
	}
	return ClipRing(r, 0, 1, AxisY)
}
