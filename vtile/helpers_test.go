package vtile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// testFeature is a RawFeature with a geometry given in world coordinates
type testFeature struct {
	id     int64
	kind   FeatureKind
	geom   orb.Geometry
	tags   map[string]string
	isArea bool
	panics bool
}

func (f *testFeature) ID() int64         { return f.id }
func (f *testFeature) Kind() FeatureKind { return f.kind }
func (f *testFeature) IsArea() bool      { return f.isArea }
func (f *testFeature) Length() float64   { return 0 }
func (f *testFeature) Area() float64     { return 0 }

func (f *testFeature) Geometry() orb.Geometry {
	if f.panics {
		panic("corrupt geometry")
	}
	return f.geom
}

func (f *testFeature) Tag(key string) (string, bool) {
	v, ok := f.tags[key]
	return v, ok
}

var rootTile = maptile.New(0, 0, 0)

// testConfig keeps full detail at zoom 0 so expected grid values are exact
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxZoom = 0
	return cfg
}

// toWorld maps unit-square points of tile t back to world meters
func toWorld(t maptile.Tile, unit ...orb.Point) []orb.Point {
	m := NewCoordinateMapper(t, DefaultExtent)
	out := make([]orb.Point, len(unit))
	for i, u := range unit {
		out[i] = orb.Point{m.origin[0] + u[0]*m.size, m.origin[1] + u[1]*m.size}
	}
	return out
}

func worldLine(t maptile.Tile, unit ...orb.Point) orb.LineString {
	return orb.LineString(toWorld(t, unit...))
}

func worldRing(t maptile.Tile, unit ...orb.Point) orb.Ring {
	return orb.Ring(toWorld(t, unit...))
}

func pointFeature(id int64, u orb.Point) *testFeature {
	return &testFeature{id: id, kind: KindNode, geom: toWorld(rootTile, u)[0]}
}

func lineFeature(id int64, unit ...orb.Point) *testFeature {
	return &testFeature{id: id, kind: KindWay, geom: worldLine(rootTile, unit...)}
}

func polygonFeature(id int64, rings ...[]orb.Point) *testFeature {
	poly := make(orb.Polygon, len(rings))
	for i, r := range rings {
		poly[i] = worldRing(rootTile, r...)
	}
	return &testFeature{id: id, kind: KindWay, geom: poly, isArea: true}
}
