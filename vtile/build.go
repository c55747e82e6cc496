package vtile

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

// queryPad grows the source query a little past the tile edge, in tile
// widths, so features touching the boundary are not missed
const queryPad = 1e-6

// Source yields the raw features whose bound intersects a world bound.
// Implementations must be safe for concurrent readers.
type Source interface {
	Query(bound orb.Bound) []RawFeature
}

// Classifier maps a raw feature to zero or more tile layers. An empty
// result means the feature is not part of the schema.
type Classifier interface {
	Classify(f RawFeature, zoom int) []ClassifiedFeature
}

// Result is one built tile
type Result struct {
	Tile  maptile.Tile
	Data  []byte
	Stats Stats
}

// Empty reports whether the tile has nothing to render
func (r *Result) Empty() bool {
	return len(r.Data) == 0
}

// Generator builds tiles from a shared read-only source. A Generator is safe
// for concurrent Build calls as long as its Source and Classifier are.
type Generator struct {
	Source     Source
	Classifier Classifier
	Config     *Config
	Log        log.FieldLogger
}

// NewGenerator creates a generator. A nil config uses DefaultConfig and a nil
// logger the logrus standard logger.
func NewGenerator(src Source, cls Classifier, cfg *Config, logger log.FieldLogger) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Generator{Source: src, Classifier: cls, Config: cfg, Log: logger}
}

// Build produces the vector tile for t. Problems with individual features or
// with the coastline are logged and skipped; only an invalid tile id or an
// encoding failure is returned as an error.
func (g *Generator) Build(t maptile.Tile) (*Result, error) {
	if err := checkTile(t); err != nil {
		return nil, err
	}

	tileLog := g.Log.WithField("tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y))
	b := NewTileBuilder(t, g.Config, tileLog)
	zoom := int(t.Z)

	for _, f := range g.Source.Query(b.Mapper().Bound(queryPad)) {
		if err := g.buildFeature(b, f, zoom); err != nil {
			b.Discard()
			b.stats.FeatureErrors++
			tileLog.WithError(err).WithField("feature", f.ID()).Warn("skipping feature")
		}
	}

	b.Commit()
	if err := b.BuildCoastline(); err != nil {
		tileLog.WithError(err).Warn("ocean layer skipped")
	}

	data, err := b.Serialize()
	if err != nil {
		return nil, errors.Wrapf(err, "tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	return &Result{Tile: t, Data: data, Stats: b.Stats()}, nil
}

// buildFeature classifies f and adds each visible classification. A panic
// inside the geometry code is turned into an error for this feature only.
func (g *Generator) buildFeature(b *TileBuilder, f RawFeature, zoom int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
		}
	}()

	for _, cf := range g.Classifier.Classify(f, zoom) {
		if !g.visible(cf, zoom) {
			continue
		}
		if err := b.Layer(f, cf); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) visible(cf ClassifiedFeature, zoom int) bool {
	if cf.MinZoom > zoom {
		return false
	}
	if !cf.Coastline {
		if l := g.Config.GetLayer(cf.Layer); l != nil && l.MinZoom > zoom {
			return false
		}
	}
	return true
}
