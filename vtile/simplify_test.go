package vtile

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplify_ZeroToleranceKeepsAll(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.1, 0.0001}, {0.2, 0}, {0.3, 0.0001}}
	assert.Equal(t, pts, Simplify(pts, 0))
}

func TestSimplify_ShortInputUnchanged(t *testing.T) {
	pts := []orb.Point{{0, 0}, {1, 1}}
	assert.Equal(t, pts, Simplify(pts, 10))
}

func TestSimplify_CollinearCollapses(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.25, 0.25}, {0.5, 0.5}, {0.75, 0.75}, {1, 1}}
	assert.Equal(t, []orb.Point{{0, 0}, {1, 1}}, Simplify(pts, 0.01))
}

func TestSimplify_KeepsSignificantCorner(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.5, 0.001}, {1, 0}, {1, 0.5}, {1.001, 1}}
	got := Simplify(pts, 0.01)
	assert.Equal(t, []orb.Point{{0, 0}, {1, 0}, {1.001, 1}}, got)
}

func TestSimplify_RingKeepsClosure(t *testing.T) {
	ring := []orb.Point{{0, 0}, {1, 0}, {1, 0.0001}, {1, 1}, {0, 1}, {0, 0}}
	got := Simplify(ring, 0.01)
	require.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, got[0], got[len(got)-1])
	assert.Equal(t, []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}, got)
}

func TestSimplify_LongLineNoRecursion(t *testing.T) {
	// a zig-zag whose every vertex is significant: the explicit stack must
	// handle it without blowing up
	n := 5000
	pts := make([]orb.Point, n)
	for i := range pts {
		pts[i] = orb.Point{float64(i), float64(i%2) * 10}
	}
	got := Simplify(pts, 1)
	assert.Len(t, got, n)
}

// Douglas-Peucker invariants on random lines: endpoints kept, and every
// dropped point is within tolerance of the chord between its kept neighbours.
func TestSimplify_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 300; iter++ {
		n := 3 + rng.Intn(40)
		pts := make([]orb.Point, n)
		for i := range pts {
			pts[i] = orb.Point{float64(i) / float64(n), rng.Float64() * 0.1}
		}
		tol := rng.Float64() * 0.05

		got := Simplify(pts, tol)
		require.GreaterOrEqual(t, len(got), 2)
		assert.Equal(t, pts[0], got[0])
		assert.Equal(t, pts[n-1], got[len(got)-1])

		// walk the original against the kept subsequence
		k := 0
		for i := 0; i < n; i++ {
			if pts[i] == got[k] {
				if k < len(got)-1 {
					k++
				}
				continue
			}
			d := math.Sqrt(sqSegmentDistance(pts[i], got[k-1], got[k]))
			assert.LessOrEqual(t, d, tol+1e-12, "point %d deviates %.6f > %.6f", i, d, tol)
		}
	}
}

func TestSqSegmentDistance(t *testing.T) {
	tests := []struct {
		name       string
		pt, a, b   orb.Point
		wantSqDist float64
	}{
		{"perpendicular", orb.Point{0.5, 1}, orb.Point{0, 0}, orb.Point{1, 0}, 1},
		{"beyond end", orb.Point{2, 0}, orb.Point{0, 0}, orb.Point{1, 0}, 1},
		{"before start", orb.Point{-3, 4}, orb.Point{0, 0}, orb.Point{1, 0}, 25},
		{"degenerate chord", orb.Point{3, 4}, orb.Point{0, 0}, orb.Point{0, 0}, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantSqDist, sqSegmentDistance(tt.pt, tt.a, tt.b), 1e-12)
		})
	}
}

func TestToleranceForZoom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxZoom = 14
	cfg.SimplifyPixels = 2
	cfg.Extent = 4096

	assert.InDelta(t, 2.0/4096, ToleranceForZoom(cfg, 10), 1e-15)
	assert.Equal(t, 0.0, ToleranceForZoom(cfg, 14))
	assert.Equal(t, 0.0, ToleranceForZoom(cfg, 16))

	cfg.SimplifyPixels = 0
	assert.Equal(t, 0.0, ToleranceForZoom(cfg, 3))
}
