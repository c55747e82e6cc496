package vtile

import "github.com/paulmach/orb"

// indexRange is a [first, last] span of points still to be examined
type indexRange struct {
	first, last int
}

// Simplify applies Douglas-Peucker to points. A point is kept when its
// squared distance to the chord of the enclosing kept points exceeds
// tolerance². The first and last point are always kept and a tolerance of 0
// or less returns the input unchanged.
//
// The recursion is replaced by an explicit stack of index ranges so very long
// lines cannot exhaust the goroutine stack.
func Simplify(points []orb.Point, tolerance float64) []orb.Point {
	if tolerance <= 0 || len(points) < 3 {
		return points
	}

	sqTol := tolerance * tolerance
	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true

	stack := []indexRange{{0, len(points) - 1}}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		maxDist := 0.0
		index := -1
		for i := r.first + 1; i < r.last; i++ {
			d := sqSegmentDistance(points[i], points[r.first], points[r.last])
			if d > maxDist {
				maxDist = d
				index = i
			}
		}

		if index >= 0 && maxDist > sqTol {
			keep[index] = true
			stack = append(stack, indexRange{r.first, index}, indexRange{index, r.last})
		}
	}

	result := make([]orb.Point, 0, len(points))
	for i, p := range points {
		if keep[i] {
			result = append(result, p)
		}
	}
	return result
}

// sqSegmentDistance returns the squared distance from pt to the segment
// lineStart-lineEnd. A zero length segment degrades to point distance, which
// is what closed rings need.
func sqSegmentDistance(pt, lineStart, lineEnd orb.Point) float64 {
	x, y := lineStart[0], lineStart[1]
	dx := lineEnd[0] - x
	dy := lineEnd[1] - y

	if dx != 0 || dy != 0 {
		t := ((pt[0]-x)*dx + (pt[1]-y)*dy) / (dx*dx + dy*dy)
		if t > 1 {
			x, y = lineEnd[0], lineEnd[1]
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}

	dx = pt[0] - x
	dy = pt[1] - y
	return dx*dx + dy*dy
}

// ToleranceForZoom returns the simplification distance in unit-square
// space. Tiles at or beyond the configured max zoom may be over-zoomed by a
// client and keep full detail.
func ToleranceForZoom(cfg *Config, z int) float64 {
	if z >= cfg.MaxZoom || cfg.SimplifyPixels <= 0 || cfg.Extent <= 0 {
		return 0
	}
	return cfg.SimplifyPixels / float64(cfg.Extent)
}
