package vtile

import (
	"fmt"

	"github.com/paulmach/orb"
)

// FeatureKind is the OSM element type a raw feature was built from
type FeatureKind int

const (
	KindNode FeatureKind = iota
	KindWay
	KindRelation
)

func (k FeatureKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// GeometryKind selects how a classified feature is drawn into the tile
type GeometryKind int

const (
	GeomPoint GeometryKind = iota + 1
	GeomLine
	GeomPolygon
)

func (g GeometryKind) String() string {
	switch g {
	case GeomPoint:
		return "point"
	case GeomLine:
		return "line"
	case GeomPolygon:
		return "polygon"
	}
	return fmt.Sprintf("geometry(%d)", int(g))
}

// ParseGeometryKind maps a config name ("point", "line", "polygon") to a kind
func ParseGeometryKind(s string) (GeometryKind, bool) {
	switch s {
	case "point", "Point":
		return GeomPoint, true
	case "line", "linestring", "LineString":
		return GeomLine, true
	case "polygon", "area", "Polygon":
		return GeomPolygon, true
	}
	return 0, false
}

// RawFeature is one element returned by the spatial source.
// Geometry is in world (Web Mercator meter) coordinates:
//   - node: orb.Point
//   - way: orb.LineString, or orb.Polygon with a single ring for closed areas
//   - relation: orb.MultiLineString for line relations, orb.MultiPolygon for
//     areas already assembled by the ring polygonizer
type RawFeature interface {
	ID() int64
	Kind() FeatureKind
	Geometry() orb.Geometry
	Tag(key string) (string, bool)
	IsArea() bool
	Length() float64
	Area() float64
}

// Attribute is a single key/value pair written to a tile feature.
// Value holds a string, a number (int, int64, uint64, float64) or a bool.
type Attribute struct {
	Key   string      `yaml:"key" json:"key"`
	Value interface{} `yaml:"value" json:"value"`
}

// ClassifiedFeature is the classifier's decision for one raw feature
type ClassifiedFeature struct {
	Layer      string
	Kind       GeometryKind
	AsCentroid bool
	MinZoom    int
	// Coastline diverts the clipped geometry to the ocean stitcher instead of
	// emitting it.
	Coastline  bool
	Attributes []Attribute
}

// GridPoint is a quantized coordinate in tile grid space (origin top-left)
type GridPoint struct {
	X int64
	Y int64
}

// TileFeature is one feature committed into a tile layer. Exactly one of
// Points, Lines and Polygons is populated, selected by Kind. Each polygon is
// an outer ring followed by its holes; rings are closed.
type TileFeature struct {
	ID         uint64
	HasID      bool
	Kind       GeometryKind
	Points     []GridPoint
	Lines      [][]GridPoint
	Polygons   [][][]GridPoint
	Attributes []Attribute
}

// Empty reports whether the feature carries no geometry
func (f *TileFeature) Empty() bool {
	switch f.Kind {
	case GeomPoint:
		return len(f.Points) == 0
	case GeomLine:
		return len(f.Lines) == 0
	case GeomPolygon:
		return len(f.Polygons) == 0
	}
	return true
}

// TileLayer is a named, ordered collection of features
type TileLayer struct {
	Name     string
	Extent   int
	Features []*TileFeature
}

// Stats counts what happened while building one tile. They are only used for
// diagnostics.
type Stats struct {
	Features           int `json:"features"`
	Points             int `json:"points"`
	DroppedFeatures    int `json:"droppedFeatures"`
	DroppedParts       int `json:"droppedParts"`
	FeatureErrors      int `json:"featureErrors"`
	CoastlineFragments int `json:"coastlineFragments"`
	OceanRings         int `json:"oceanRings"`
}

// Add accumulates another tile's counters into s
func (s *Stats) Add(o Stats) {
	s.Features += o.Features
	s.Points += o.Points
	s.DroppedFeatures += o.DroppedFeatures
	s.DroppedParts += o.DroppedParts
	s.FeatureErrors += o.FeatureErrors
	s.CoastlineFragments += o.CoastlineFragments
	s.OceanRings += o.OceanRings
}

// LayerConfig declares an output layer
type LayerConfig struct {
	Name    string `yaml:"name" json:"name"`
	MinZoom int    `yaml:"minZoom,omitempty" json:"minZoom,omitempty"`
}

// CoastlineConfig names the layer and class used for synthesized ocean
type CoastlineConfig struct {
	Layer string `yaml:"layer" json:"layer"`
	Class string `yaml:"class" json:"class"`
}

// RuleConfig is one entry of the rule classifier table
type RuleConfig struct {
	// Match lists tag values that must all be present. A value of "*"
	// matches any value of the key.
	Match      map[string]string `yaml:"match" json:"match"`
	Layer      string            `yaml:"layer,omitempty" json:"layer,omitempty"`
	Kind       string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	MinZoom    int               `yaml:"minZoom,omitempty" json:"minZoom,omitempty"`
	AsCentroid bool              `yaml:"asCentroid,omitempty" json:"asCentroid,omitempty"`
	Coastline  bool              `yaml:"coastline,omitempty" json:"coastline,omitempty"`
	Attributes []Attribute       `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	CopyTags   []string          `yaml:"copyTags,omitempty" json:"copyTags,omitempty"`
	// Continue keeps evaluating later rules after this one matched
	Continue bool `yaml:"continue,omitempty" json:"continue,omitempty"`
}

// Config is the unified configuration loaded from YAML
type Config struct {
	Extent         int             `yaml:"extent" json:"extent"`
	MinZoom        int             `yaml:"minZoom" json:"minZoom"`
	MaxZoom        int             `yaml:"maxZoom" json:"maxZoom"`
	SimplifyPixels float64         `yaml:"simplifyPixels" json:"simplifyPixels"`
	Gzip           bool            `yaml:"gzip" json:"gzip"`
	IncludeIDs     bool            `yaml:"includeIds" json:"includeIds"`
	Coastline      CoastlineConfig `yaml:"coastline" json:"coastline"`
	Layers         []LayerConfig   `yaml:"layers,omitempty" json:"layers,omitempty"`
	Rules          []RuleConfig    `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// GetLayer returns the declared layer with the given name, or nil
func (c *Config) GetLayer(name string) *LayerConfig {
	for i := range c.Layers {
		if c.Layers[i].Name == name {
			return &c.Layers[i]
		}
	}
	return nil
}

// LayerNames returns the declared layer names in config order
func (c *Config) LayerNames() []string {
	names := make([]string, 0, len(c.Layers))
	for _, l := range c.Layers {
		names = append(names, l.Name)
	}
	return names
}
