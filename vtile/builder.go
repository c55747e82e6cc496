package vtile

import (
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	log "github.com/sirupsen/logrus"
)

// Centroider is implemented by raw features that carry a precomputed
// centroid in world coordinates
type Centroider interface {
	Centroid() orb.Point
}

// openFeature is the single in-progress feature of a TileBuilder
type openFeature struct {
	layer   string
	feature *TileFeature
}

// TileBuilder holds the transient state of one tile build. It is not safe
// for concurrent use and must be discarded after Serialize.
type TileBuilder struct {
	cfg       *Config
	mapper    CoordinateMapper
	zoom      int
	tolerance float64
	log       log.FieldLogger

	encoder *TileEncoder
	open    *openFeature
	coast   []orb.LineString
	stats   Stats
}

// NewTileBuilder creates a builder for tile t. A nil logger uses the
// logrus standard logger.
func NewTileBuilder(t maptile.Tile, cfg *Config, logger log.FieldLogger) *TileBuilder {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TileBuilder{
		cfg:       cfg,
		mapper:    NewCoordinateMapper(t, cfg.Extent),
		zoom:      int(t.Z),
		tolerance: ToleranceForZoom(cfg, int(t.Z)),
		log:       logger,
		encoder:   NewTileEncoder(cfg.Extent, cfg.LayerNames()),
	}
}

// Mapper returns the coordinate mapper of the tile being built
func (b *TileBuilder) Mapper() CoordinateMapper {
	return b.mapper
}

// Stats returns the counters collected so far
func (b *TileBuilder) Stats() Stats {
	return b.stats
}

// Layer commits the previous feature and builds f into cf.Layer. The raw
// feature is only read during this call. A feature flagged as coastline is
// clipped and kept for BuildCoastline instead of being emitted.
func (b *TileBuilder) Layer(f RawFeature, cf ClassifiedFeature) error {
	b.Commit()

	if cf.Coastline {
		return b.addCoastline(f)
	}

	tf := &TileFeature{
		Kind:       cf.Kind,
		Attributes: cf.Attributes,
	}
	if b.cfg.IncludeIDs && f.ID() >= 0 {
		tf.ID = uint64(f.ID())
		tf.HasID = true
	}
	b.open = &openFeature{layer: cf.Layer, feature: tf}

	var err error
	switch cf.Kind {
	case GeomPoint:
		err = b.buildPoints(f, cf.AsCentroid, tf)
	case GeomLine:
		err = b.buildLines(f.Geometry(), tf)
	case GeomPolygon:
		err = b.buildPolygons(f.Geometry(), tf)
	default:
		err = errors.Newf("unknown geometry kind %d", int(cf.Kind))
	}
	if err != nil {
		b.open = nil
		return errors.Wrapf(err, "%s %d as %s", f.Kind(), f.ID(), cf.Kind)
	}
	return nil
}

// Commit moves the in-progress feature into its layer. A feature without
// any surviving geometry is dropped.
func (b *TileBuilder) Commit() {
	o := b.open
	if o == nil {
		return
	}
	b.open = nil

	if o.feature.Empty() {
		b.stats.DroppedFeatures++
		return
	}
	b.encoder.Add(o.layer, o.feature)
	b.stats.Features++
}

// Discard drops the in-progress feature without committing it
func (b *TileBuilder) Discard() {
	b.open = nil
}

// Serialize commits the open feature and encodes every layer
func (b *TileBuilder) Serialize() ([]byte, error) {
	b.Commit()
	return b.encoder.Serialize(b.cfg.Gzip)
}

// Encoder exposes the layers built so far
func (b *TileBuilder) Encoder() *TileEncoder {
	return b.encoder
}

func (b *TileBuilder) buildPoints(f RawFeature, asCentroid bool, tf *TileFeature) error {
	var world []orb.Point

	geom := f.Geometry()
	if geom == nil {
		return errors.Wrap(ErrUnsupportedGeometry, "nil geometry")
	}

	switch g := geom.(type) {
	case orb.Point:
		world = []orb.Point{g}
	case orb.MultiPoint:
		if asCentroid {
			c, _ := planar.CentroidArea(g)
			world = []orb.Point{c}
		} else {
			world = g
		}
	default:
		if !asCentroid {
			return errors.Wrapf(ErrUnsupportedGeometry, "%T as point", geom)
		}
		if c, ok := f.(Centroider); ok {
			world = []orb.Point{c.Centroid()}
		} else {
			c, _ := planar.CentroidArea(geom)
			world = []orb.Point{c}
		}
	}

	for _, p := range world {
		u := b.mapper.ToTile(p)
		if u[0] < 0 || u[0] > 1 || u[1] < 0 || u[1] > 1 {
			continue
		}
		tf.Points = append(tf.Points, b.toGrid(u))
		b.stats.Points++
	}
	return nil
}

func (b *TileBuilder) buildLines(geom orb.Geometry, tf *TileFeature) error {
	members, err := lineMembers(geom)
	if err != nil {
		return err
	}

	for _, member := range members {
		if len(member) < 2 {
			continue
		}
		unit, bound := b.mapper.ToTileLine(member)
		for _, piece := range clipToUnit(unit, bound) {
			grid := b.quantize(Simplify(piece, b.tolerance))
			if len(grid) < 2 {
				b.stats.DroppedParts++
				continue
			}
			tf.Lines = append(tf.Lines, grid)
			b.stats.Points += len(grid)
		}
	}
	return nil
}

func (b *TileBuilder) buildPolygons(geom orb.Geometry, tf *TileFeature) error {
	polygons, err := polygonMembers(geom)
	if err != nil {
		return err
	}

	for _, poly := range polygons {
		var rings [][]GridPoint
		for i, ring := range poly {
			if closedLen(ring) < 4 {
				b.stats.DroppedParts++
				if i == 0 {
					break
				}
				continue
			}
			unit, bound := b.mapper.ToTileLine(ring)
			grid, ok := b.buildRing(orb.Ring(unit), bound, i == 0)
			if !ok {
				b.stats.DroppedParts++
				if i == 0 {
					// holes without their outer ring are meaningless
					break
				}
				continue
			}
			rings = append(rings, grid)
		}
		if len(rings) > 0 {
			tf.Polygons = append(tf.Polygons, rings)
		}
	}
	return nil
}

// buildRing clips, simplifies and quantizes one unit-space ring. The result
// is closed, has at least 4 points and is wound for MVT: outer rings have a
// positive shoelace area in grid space, holes a negative one.
func (b *TileBuilder) buildRing(unit orb.Ring, bound orb.Bound, outer bool) ([]GridPoint, bool) {
	if len(unit) == 0 || !bound.Intersects(unitBound) {
		return nil, false
	}
	if unit[0] != unit[len(unit)-1] {
		unit = append(unit, unit[0])
	}
	if !insideUnit(bound) {
		unit = ClipRingToUnit(unit)
	}
	if len(unit) < 4 {
		return nil, false
	}

	grid := b.quantize(Simplify(unit, b.tolerance))
	if len(grid) > 0 && grid[0] != grid[len(grid)-1] {
		// quantization broke closure: re-close rather than lose the ring
		b.log.WithField("points", len(grid)).Debug("re-closing ring after quantization")
		grid = append(grid, grid[0])
	}
	if len(grid) < 4 {
		return nil, false
	}

	area := ringArea(grid)
	if area == 0 {
		return nil, false
	}
	if (area > 0) != outer {
		reverseGrid(grid)
	}
	b.stats.Points += len(grid)
	return grid, true
}

// closedLen is the point count of r once closed
func closedLen(r orb.Ring) int {
	if n := len(r); n > 0 && r[0] != r[n-1] {
		return n + 1
	}
	return len(r)
}

// clipToUnit returns the pieces of a unit-space line inside the unit square,
// skipping the clipper when the bound shows it is not needed
func clipToUnit(unit orb.LineString, bound orb.Bound) []orb.LineString {
	if !bound.Intersects(unitBound) {
		return nil
	}
	if insideUnit(bound) {
		return []orb.LineString{unit}
	}
	return ClipLineToUnit(unit)
}

func (b *TileBuilder) toGrid(u orb.Point) GridPoint {
	g := b.mapper.ToGrid(u)
	g.X = clampGrid(g.X, int64(b.cfg.Extent))
	g.Y = clampGrid(g.Y, int64(b.cfg.Extent))
	return g
}

// quantize maps unit points to the grid and collapses consecutive duplicates
func (b *TileBuilder) quantize(points []orb.Point) []GridPoint {
	out := make([]GridPoint, 0, len(points))
	for _, p := range points {
		g := b.toGrid(p)
		if n := len(out); n > 0 && out[n-1] == g {
			continue
		}
		out = append(out, g)
	}
	return out
}

func clampGrid(v, extent int64) int64 {
	if v < 0 {
		return 0
	}
	if v > extent {
		return extent
	}
	return v
}

// ringArea returns twice the signed shoelace area of a closed grid ring
func ringArea(ring []GridPoint) int64 {
	var sum int64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return sum
}

func reverseGrid(ring []GridPoint) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}

// lineMembers lists the point sequences of a geometry drawn as lines.
// Polygon boundaries are included so areas can be drawn as outlines.
func lineMembers(geom orb.Geometry) ([]orb.LineString, error) {
	switch g := geom.(type) {
	case orb.LineString:
		return []orb.LineString{g}, nil
	case orb.MultiLineString:
		return g, nil
	case orb.Ring:
		return []orb.LineString{orb.LineString(g)}, nil
	case orb.Polygon:
		members := make([]orb.LineString, 0, len(g))
		for _, r := range g {
			members = append(members, orb.LineString(r))
		}
		return members, nil
	case orb.MultiPolygon:
		var members []orb.LineString
		for _, p := range g {
			for _, r := range p {
				members = append(members, orb.LineString(r))
			}
		}
		return members, nil
	case orb.Collection:
		var members []orb.LineString
		for _, c := range g {
			m, err := lineMembers(c)
			if err != nil {
				return nil, err
			}
			members = append(members, m...)
		}
		return members, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedGeometry, "%T as line", geom)
}

// polygonMembers lists the polygons of a geometry drawn as areas. A closed
// way arrives as a closed LineString or a single-ring polygon.
func polygonMembers(geom orb.Geometry) ([]orb.Polygon, error) {
	switch g := geom.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}, nil
	case orb.MultiPolygon:
		return g, nil
	case orb.Ring:
		return []orb.Polygon{{g}}, nil
	case orb.LineString:
		if len(g) >= 4 && g[0] == g[len(g)-1] {
			return []orb.Polygon{{orb.Ring(g)}}, nil
		}
		return nil, errors.Wrap(ErrUnsupportedGeometry, "open way as polygon")
	}
	return nil, errors.Wrapf(ErrUnsupportedGeometry, "%T as polygon", geom)
}
