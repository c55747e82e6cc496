package vtile

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// TileEncoder collects committed features per layer and serializes them as
// a Mapbox Vector Tile v2 blob
type TileEncoder struct {
	extent int
	order  []string
	layers map[string]*TileLayer
}

// NewTileEncoder creates an encoder. Layers named in order are written first
// in that order; any other layer follows in order of first use.
func NewTileEncoder(extent int, order []string) *TileEncoder {
	return &TileEncoder{
		extent: extent,
		order:  append([]string(nil), order...),
		layers: make(map[string]*TileLayer),
	}
}

// Add appends a feature to the named layer
func (e *TileEncoder) Add(layer string, f *TileFeature) {
	l, ok := e.layers[layer]
	if !ok {
		l = &TileLayer{Name: layer, Extent: e.extent}
		e.layers[layer] = l
		if !e.ordered(layer) {
			e.order = append(e.order, layer)
		}
	}
	l.Features = append(l.Features, f)
}

func (e *TileEncoder) ordered(name string) bool {
	for _, n := range e.order {
		if n == name {
			return true
		}
	}
	return false
}

// Layers returns the layers holding at least one feature, in output order
func (e *TileEncoder) Layers() []*TileLayer {
	out := make([]*TileLayer, 0, len(e.layers))
	for _, name := range e.order {
		if l, ok := e.layers[name]; ok && len(l.Features) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Empty reports whether no feature was added
func (e *TileEncoder) Empty() bool {
	return len(e.Layers()) == 0
}

// MVTLayers converts the collected layers to orb's mvt representation in
// tile grid coordinates
func (e *TileEncoder) MVTLayers() mvt.Layers {
	layers := e.Layers()
	out := make(mvt.Layers, 0, len(layers))
	for _, l := range layers {
		ml := &mvt.Layer{
			Name:     l.Name,
			Version:  2,
			Extent:   uint32(l.Extent),
			Features: make([]*geojson.Feature, 0, len(l.Features)),
		}
		for _, f := range l.Features {
			ml.Features = append(ml.Features, toGeoJSON(f))
		}
		out = append(out, ml)
	}
	return out
}

// Serialize encodes all layers. A tile without features is valid and
// serializes to an empty slice.
func (e *TileEncoder) Serialize(gzip bool) ([]byte, error) {
	layers := e.MVTLayers()
	if len(layers) == 0 {
		return []byte{}, nil
	}

	var (
		data []byte
		err  error
	)
	if gzip {
		data, err = mvt.MarshalGzipped(layers)
	} else {
		data, err = mvt.Marshal(layers)
	}
	if err != nil {
		return nil, errors.Wrap(err, "encoding vector tile")
	}
	return data, nil
}

func toGeoJSON(f *TileFeature) *geojson.Feature {
	gf := geojson.NewFeature(tileGeometry(f))
	if f.HasID {
		gf.ID = f.ID
	}
	for _, a := range f.Attributes {
		if v, ok := propertyValue(a.Value); ok {
			gf.Properties[a.Key] = v
		}
	}
	return gf
}

// tileGeometry builds the orb geometry of a feature, collapsing single
// members to their simple type
func tileGeometry(f *TileFeature) orb.Geometry {
	switch f.Kind {
	case GeomPoint:
		if len(f.Points) == 1 {
			return gridPoint(f.Points[0])
		}
		mp := make(orb.MultiPoint, len(f.Points))
		for i, p := range f.Points {
			mp[i] = gridPoint(p)
		}
		return mp
	case GeomLine:
		if len(f.Lines) == 1 {
			return gridLine(f.Lines[0])
		}
		ml := make(orb.MultiLineString, len(f.Lines))
		for i, l := range f.Lines {
			ml[i] = gridLine(l)
		}
		return ml
	case GeomPolygon:
		if len(f.Polygons) == 1 {
			return gridPolygon(f.Polygons[0])
		}
		mp := make(orb.MultiPolygon, len(f.Polygons))
		for i, p := range f.Polygons {
			mp[i] = gridPolygon(p)
		}
		return mp
	}
	return nil
}

func gridPoint(p GridPoint) orb.Point {
	return orb.Point{float64(p.X), float64(p.Y)}
}

func gridLine(points []GridPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = gridPoint(p)
	}
	return ls
}

func gridPolygon(rings [][]GridPoint) orb.Polygon {
	poly := make(orb.Polygon, len(rings))
	for i, r := range rings {
		poly[i] = orb.Ring(gridLine(r))
	}
	return poly
}

// propertyValue narrows an attribute value to the types a tile can carry:
// string, float64, int64, uint64 and bool. Anything else is stringified and
// nil is skipped.
func propertyValue(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string, bool, float64, int64, uint64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint32:
		return uint64(t), true
	case uint:
		return uint64(t), true
	case float32:
		return float64(t), true
	}
	return fmt.Sprint(v), true
}
