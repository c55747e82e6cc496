package vtile

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
	"github.com/paulmach/orb/project"
)

// earthRadius is the WGS84 semi-major axis used by Web Mercator
const earthRadius = 6378137.0

// WorldSize is the width of the Web Mercator plane in meters
var WorldSize = 2 * math.Pi * earthRadius

// ValidTile reports whether 0 <= x,y < 2^z
func ValidTile(t maptile.Tile) bool {
	if int(t.Z) > MaxSupportedZoom {
		return false
	}
	n := uint32(1) << uint32(t.Z)
	return t.X < n && t.Y < n
}

func checkTile(t maptile.Tile) error {
	if !ValidTile(t) {
		return errors.Wrapf(ErrInvalidTile, "%d/%d/%d", t.Z, t.X, t.Y)
	}
	return nil
}

// TileSize returns the edge length in meters of a tile at zoom z
func TileSize(z maptile.Zoom) float64 {
	return WorldSize / float64(uint64(1)<<uint64(z))
}

// CoordinateMapper converts world coordinates to the unit square of one
// tile, and unit coordinates to the integer tile grid.
type CoordinateMapper struct {
	tile   maptile.Tile
	origin orb.Point // south-west corner in world meters
	size   float64
	scale  float64
	extent float64
}

// NewCoordinateMapper creates a mapper for tile t with the given grid extent
func NewCoordinateMapper(t maptile.Tile, extent int) CoordinateMapper {
	size := TileSize(t.Z)
	return CoordinateMapper{
		tile: t,
		origin: orb.Point{
			-WorldSize/2 + float64(t.X)*size,
			WorldSize/2 - float64(t.Y+1)*size,
		},
		size:   size,
		scale:  1 / size,
		extent: float64(extent),
	}
}

// Tile returns the tile the mapper was created for
func (m CoordinateMapper) Tile() maptile.Tile {
	return m.tile
}

// Extent returns the grid extent
func (m CoordinateMapper) Extent() int {
	return int(m.extent)
}

// ToTile maps a world point into tile-relative unit space, south-up
func (m CoordinateMapper) ToTile(world orb.Point) orb.Point {
	return orb.Point{
		(world[0] - m.origin[0]) * m.scale,
		(world[1] - m.origin[1]) * m.scale,
	}
}

// ToTileLine maps every point of a world line and returns the unit-space
// line with its bound
func (m CoordinateMapper) ToTileLine(world []orb.Point) (orb.LineString, orb.Bound) {
	out := make(orb.LineString, len(world))
	if len(world) == 0 {
		return out, orb.Bound{}
	}
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i, p := range world {
		out[i] = m.ToTile(p)
		bound = bound.Extend(out[i])
	}
	return out, bound
}

// ToGrid quantizes a unit point to the tile grid. The Y axis is flipped:
// unit space is south-up, the grid is north-down.
func (m CoordinateMapper) ToGrid(unit orb.Point) GridPoint {
	return GridPoint{
		X: int64(math.Round(unit[0] * m.extent)),
		Y: int64(math.Round((1 - unit[1]) * m.extent)),
	}
}

// Bound returns the tile's world bound grown by pad tile widths on each side
func (m CoordinateMapper) Bound(pad float64) orb.Bound {
	d := pad * m.size
	return orb.Bound{
		Min: orb.Point{m.origin[0] - d, m.origin[1] - d},
		Max: orb.Point{m.origin[0] + m.size + d, m.origin[1] + m.size + d},
	}
}

// unitBound is the clip square in unit space
var unitBound = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

// insideUnit reports whether b lies entirely in the unit square
func insideUnit(b orb.Bound) bool {
	return b.Min[0] >= 0 && b.Min[1] >= 0 && b.Max[0] <= 1 && b.Max[1] <= 1
}

// TilesCovering lists the tiles at zoom z that cover a world bound, in row
// major order. Parts of the bound outside the Mercator square are ignored.
func TilesCovering(world orb.Bound, z maptile.Zoom) []maptile.Tile {
	lonlat := orb.Bound{Min: toLonLat(world.Min), Max: toLonLat(world.Max)}

	set := tilecover.Bound(lonlat, z)
	tiles := make([]maptile.Tile, 0, len(set))
	for t := range set {
		// the east edge at 180 degrees maps to column 2^z
		if ValidTile(t) {
			tiles = append(tiles, t)
		}
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Y != tiles[j].Y {
			return tiles[i].Y < tiles[j].Y
		}
		return tiles[i].X < tiles[j].X
	})
	return tiles
}

// toLonLat unprojects a world point, clamping longitude to the antimeridian
func toLonLat(p orb.Point) orb.Point {
	ll := project.Mercator.ToWGS84(p)
	ll[0] = math.Max(-180, math.Min(180, ll[0]))
	return ll
}
