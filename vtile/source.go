package vtile

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is the latitude where Web Mercator becomes square
const maxMercatorLat = 85.05112878

// minIndexLength keeps R-tree rectangles of points and axis-aligned lines
// non-degenerate, in meters
const minIndexLength = 0.01

// GeoFeature is a raw feature held in world coordinates with its measures
// computed once at load time
type GeoFeature struct {
	id       int64
	kind     FeatureKind
	geom     orb.Geometry
	bound    orb.Bound
	tags     map[string]string
	isArea   bool
	length   float64
	area     float64
	centroid orb.Point
	seq      int
}

// NewGeoFeature creates a feature from a world-coordinate geometry
func NewGeoFeature(id int64, kind FeatureKind, geom orb.Geometry, tags map[string]string) *GeoFeature {
	if tags == nil {
		tags = map[string]string{}
	}
	f := &GeoFeature{
		id:    id,
		kind:  kind,
		geom:  geom,
		bound: geom.Bound(),
		tags:  tags,
	}
	f.isArea = isPolygonal(geom) || (tags["area"] == "yes" && closedLine(geom))
	f.length = planar.Length(geom)

	measured := geom
	if ls, ok := geom.(orb.LineString); ok && f.isArea {
		measured = orb.Polygon{orb.Ring(ls)}
	}
	f.centroid, f.area = planar.CentroidArea(measured)
	f.area = math.Abs(f.area)
	return f
}

func (f *GeoFeature) ID() int64               { return f.id }
func (f *GeoFeature) Kind() FeatureKind       { return f.kind }
func (f *GeoFeature) Geometry() orb.Geometry  { return f.geom }
func (f *GeoFeature) IsArea() bool            { return f.isArea }
func (f *GeoFeature) Length() float64         { return f.length }
func (f *GeoFeature) Area() float64           { return f.area }
func (f *GeoFeature) Centroid() orb.Point     { return f.centroid }
func (f *GeoFeature) Tags() map[string]string { return f.tags }

func (f *GeoFeature) Tag(key string) (string, bool) {
	v, ok := f.tags[key]
	return v, ok
}

// Bounds implements rtreego.Spatial
func (f *GeoFeature) Bounds() rtreego.Rect {
	return boundRect(f.bound)
}

func boundRect(b orb.Bound) rtreego.Rect {
	lx := b.Max[0] - b.Min[0]
	ly := b.Max[1] - b.Min[1]
	if lx < minIndexLength {
		lx = minIndexLength
	}
	if ly < minIndexLength {
		ly = minIndexLength
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{lx, ly})
	return rect
}

// MemorySource is an in-memory R-tree over GeoFeatures. Query results come
// back in insertion order so builds are reproducible.
type MemorySource struct {
	mu    sync.RWMutex
	rtree *rtreego.Rtree
	bound orb.Bound
	count int
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{rtree: rtreego.NewTree(2, 25, 50)}
}

// Add indexes features
func (s *MemorySource) Add(features ...*GeoFeature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range features {
		f.seq = s.count
		if s.count == 0 {
			s.bound = f.bound
		} else {
			s.bound = s.bound.Union(f.bound)
		}
		s.count++
		s.rtree.Insert(f)
	}
}

// Len returns the number of indexed features
func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Bound returns the world bound of all features
func (s *MemorySource) Bound() orb.Bound {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bound
}

// Query implements Source
func (s *MemorySource) Query(bound orb.Bound) []RawFeature {
	// rtreego treats touching rectangles as disjoint
	query := orb.Bound{
		Min: orb.Point{bound.Min[0] - minIndexLength, bound.Min[1] - minIndexLength},
		Max: orb.Point{bound.Max[0] + minIndexLength, bound.Max[1] + minIndexLength},
	}

	s.mu.RLock()
	spatials := s.rtree.SearchIntersect(boundRect(query))
	s.mu.RUnlock()

	found := make([]*GeoFeature, 0, len(spatials))
	for _, sp := range spatials {
		found = append(found, sp.(*GeoFeature))
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	out := make([]RawFeature, len(found))
	for i, f := range found {
		out[i] = f
	}
	return out
}

// LoadGeoJSON reads a WGS84 GeoJSON FeatureCollection into a new source
func LoadGeoJSON(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing GeoJSON %s", path)
	}
	return FromFeatureCollection(fc), nil
}

// FromFeatureCollection projects WGS84 features to Web Mercator and indexes
// them. Features without geometry are ignored. The collection is not modified.
func FromFeatureCollection(fc *geojson.FeatureCollection) *MemorySource {
	src := NewMemorySource()
	features := make([]*GeoFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		geom := project.Geometry(orb.Clone(f.Geometry), toMercator)
		features = append(features, NewGeoFeature(featureID(f, i), kindOf(geom), geom, tagsOf(f.Properties)))
	}
	src.Add(features...)
	return src
}

// toMercator clamps latitude to the Web Mercator square before projecting
func toMercator(p orb.Point) orb.Point {
	if p[1] > maxMercatorLat {
		p[1] = maxMercatorLat
	} else if p[1] < -maxMercatorLat {
		p[1] = -maxMercatorLat
	}
	return project.WGS84.ToMercator(p)
}

// featureID takes the GeoJSON id, then an "id" property, then the index.
// OSM style ids such as "way/42" keep their numeric part.
func featureID(f *geojson.Feature, index int) int64 {
	for _, v := range []interface{}{f.ID, f.Properties["id"]} {
		if id, ok := parseID(v); ok {
			return id
		}
	}
	return int64(index)
}

func parseID(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		for i := len(t) - 1; i >= 0; i-- {
			if t[i] < '0' || t[i] > '9' {
				t = t[i+1:]
				break
			}
		}
		id, err := strconv.ParseInt(t, 10, 64)
		return id, err == nil
	}
	return 0, false
}

func kindOf(g orb.Geometry) FeatureKind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindNode
	case orb.LineString, orb.Polygon, orb.Ring:
		return KindWay
	}
	return KindRelation
}

func tagsOf(props geojson.Properties) map[string]string {
	tags := make(map[string]string, len(props))
	for k, v := range props {
		switch t := v.(type) {
		case nil:
		case string:
			tags[k] = t
		default:
			tags[k] = fmt.Sprint(t)
		}
	}
	return tags
}

func isPolygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return true
	}
	return false
}

func closedLine(g orb.Geometry) bool {
	ls, ok := g.(orb.LineString)
	return ok && len(ls) >= 4 && ls[0] == ls[len(ls)-1]
}
