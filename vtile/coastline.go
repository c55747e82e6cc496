package vtile

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// tileCorners are the unit square corners indexed by perimeter distance
var tileCorners = [4]orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

// edgeFragment is a coastline piece whose ends lie on the tile edge
type edgeFragment struct {
	line       orb.LineString
	start, end float64
}

// PerimeterDistance returns the clockwise position of p along the unit
// square edge: 0 at (0,0), 1 at (0,1), 2 at (1,1), 3 at (1,0). A point not
// exactly on an edge is an error.
func PerimeterDistance(p orb.Point) (float64, error) {
	x, y := p[0], p[1]
	switch {
	case x == 0 && y >= 0 && y <= 1:
		return y, nil
	case y == 1 && x >= 0 && x <= 1:
		return 1 + x, nil
	case x == 1 && y >= 0 && y <= 1:
		return 2 + (1 - y), nil
	case y == 0 && x >= 0 && x <= 1:
		return 3 + (1 - x), nil
	}
	return 0, errors.Wrapf(ErrEndpointOffEdge, "point (%g, %g)", x, y)
}

// StitchCoastline joins unit-space coastline fragments into closed rings.
// Fragments that meet end to start are chained first; whatever stays open
// must start and end on the tile edge and is closed by walking the edge
// clockwise, inserting tile corners where the walk passes them.
func StitchCoastline(fragments []orb.LineString) ([]orb.Ring, error) {
	var closed []orb.Ring
	var open []orb.LineString

	for _, f := range fragments {
		if len(f) < 2 {
			continue
		}
		line := append(orb.LineString(nil), f...)
		if line[0] == line[len(line)-1] {
			if len(line) >= 4 {
				closed = append(closed, orb.Ring(line))
			}
			continue
		}
		open = append(open, line)
	}

	open, chained := chainFragments(open)
	closed = append(closed, chained...)
	if len(open) == 0 {
		return closed, nil
	}

	edge := make([]edgeFragment, 0, len(open))
	for _, line := range open {
		start, err := PerimeterDistance(line[0])
		if err != nil {
			return nil, errors.Wrap(err, "fragment start")
		}
		end, err := PerimeterDistance(line[len(line)-1])
		if err != nil {
			return nil, errors.Wrap(err, "fragment end")
		}
		edge = append(edge, edgeFragment{line: line, start: start, end: end})
	}

	return append(closed, walkPerimeter(edge)...), nil
}

// chainFragments splices open fragments sharing an exact end/start point.
// It returns the fragments still open and the rings closed by chaining.
func chainFragments(frags []orb.LineString) ([]orb.LineString, []orb.Ring) {
	alive := make([]bool, len(frags))
	starts := make(map[orb.Point][]int, len(frags))
	for i, f := range frags {
		alive[i] = true
		starts[f[0]] = append(starts[f[0]], i)
	}

	next := func(end orb.Point, self int) int {
		for _, j := range starts[end] {
			if j != self && alive[j] {
				return j
			}
		}
		return -1
	}

	var rings []orb.Ring
	for i := range frags {
		for alive[i] {
			f := frags[i]
			end := f[len(f)-1]
			if f[0] == end {
				alive[i] = false
				if len(f) >= 4 {
					rings = append(rings, orb.Ring(f))
				}
				break
			}
			j := next(end, i)
			if j < 0 {
				break
			}
			frags[i] = append(f, frags[j][1:]...)
			alive[j] = false
		}
	}

	var remaining []orb.LineString
	for i, f := range frags {
		if alive[i] {
			remaining = append(remaining, f)
		}
	}
	return remaining, rings
}

// walkPerimeter closes edge fragments into rings. From the end of each
// fragment the walk moves clockwise to the nearest unused fragment start,
// and the ring closes when the nearest start is its own first fragment.
func walkPerimeter(frags []edgeFragment) []orb.Ring {
	sort.SliceStable(frags, func(i, j int) bool {
		return frags[i].start < frags[j].start
	})

	used := make([]bool, len(frags))
	var rings []orb.Ring

	for first := range frags {
		if used[first] {
			continue
		}
		used[first] = true
		ring := append(orb.Ring(nil), frags[first].line...)
		dEnd := frags[first].end

		for {
			idx, gap := -1, math.Inf(1)
			for j := range frags {
				if used[j] && j != first {
					continue
				}
				g := frags[j].start - dEnd
				if g < 0 {
					g += 4
				}
				if g < gap {
					idx, gap = j, g
				}
			}

			ring = appendCorners(ring, dEnd, dEnd+gap)
			if idx == first {
				break
			}
			ring = append(ring, frags[idx].line...)
			used[idx] = true
			dEnd = frags[idx].end
		}

		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		rings = append(rings, ring)
	}
	return rings
}

// appendCorners adds every corner strictly between perimeter distances from
// and to, where to may exceed 4 after wrapping
func appendCorners(ring orb.Ring, from, to float64) orb.Ring {
	for k := math.Floor(from) + 1; k < to; k++ {
		ring = append(ring, tileCorners[int(k)%4])
	}
	return ring
}

// oceanPolygons groups stitched rings into polygons. Coastline keeps land on
// its left, so rings that run clockwise in unit space enclose water and
// counter-clockwise rings are islands. An island is attached as a hole to
// the water ring containing it; islands with no such ring sit in open water
// and get the whole tile as their outer ring.
func oceanPolygons(rings []orb.Ring) []orb.Polygon {
	var polys []orb.Polygon
	var islands []orb.Ring

	for _, r := range rings {
		if r.Orientation() == orb.CW {
			polys = append(polys, orb.Polygon{r})
		} else {
			islands = append(islands, r)
		}
	}

	var sea *orb.Polygon
	for _, island := range islands {
		placed := false
		for i := range polys {
			if planar.RingContains(polys[i][0], island[0]) {
				polys[i] = append(polys[i], island)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		if sea == nil {
			sea = &orb.Polygon{{tileCorners[0], tileCorners[1], tileCorners[2], tileCorners[3], tileCorners[0]}}
		}
		*sea = append(*sea, island)
	}
	if sea != nil {
		polys = append(polys, *sea)
	}
	return polys
}

// addCoastline clips a coastline feature and keeps the pieces for
// BuildCoastline. Pieces are not simplified so their ends stay exact.
func (b *TileBuilder) addCoastline(f RawFeature) error {
	members, err := lineMembers(f.Geometry())
	if err != nil {
		return errors.Wrapf(err, "coastline %s %d", f.Kind(), f.ID())
	}
	for _, member := range members {
		if len(member) < 2 {
			continue
		}
		unit, bound := b.mapper.ToTileLine(member)
		for _, piece := range clipToUnit(unit, bound) {
			b.coast = append(b.coast, piece)
			b.stats.CoastlineFragments++
		}
	}
	return nil
}

// BuildCoastline stitches the collected coastline fragments and emits the
// ocean as one polygon feature in the coastline layer. On error nothing is
// emitted and the rest of the tile is unaffected.
func (b *TileBuilder) BuildCoastline() error {
	b.Commit()
	if len(b.coast) == 0 {
		return nil
	}

	rings, err := StitchCoastline(b.coast)
	b.coast = nil
	if err != nil {
		return errors.Wrapf(err, "stitching coastline of tile %d/%d/%d",
			b.mapper.tile.Z, b.mapper.tile.X, b.mapper.tile.Y)
	}

	tf := &TileFeature{
		Kind:       GeomPolygon,
		Attributes: []Attribute{{Key: "class", Value: b.cfg.Coastline.Class}},
	}
	for _, poly := range oceanPolygons(rings) {
		var out [][]GridPoint
		for i, ring := range poly {
			grid, ok := b.buildRing(ring, ring.Bound(), i == 0)
			if !ok {
				b.stats.DroppedParts++
				if i == 0 {
					break
				}
				continue
			}
			out = append(out, grid)
			b.stats.OceanRings++
		}
		if len(out) > 0 {
			tf.Polygons = append(tf.Polygons, out)
		}
	}

	if tf.Empty() {
		b.log.WithField("rings", len(rings)).Debug("coastline produced no ocean rings")
		return nil
	}
	b.encoder.Add(b.cfg.Coastline.Layer, tf)
	b.stats.Features++
	return nil
}
