package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kwv/coastile/vtile"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *vtile.Config
	Source     *vtile.MemorySource
	Classifier vtile.Classifier
	Log        *log.Logger

	// CLI flags
	ConfigFile string
	InputFile  string
	OutputDir  string
	Workers    int
	Gzip       bool
	Preview    string
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{Log: log.New()}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.InputFile = opts.InputFile
	a.OutputDir = opts.OutputDir
	a.Workers = opts.Workers
	a.Gzip = opts.Gzip
	a.Preview = opts.Preview
	if opts.Verbose {
		a.Log.SetLevel(log.DebugLevel)
	}
}

// load reads the config, the input data and compiles the rules. Anything
// already set on the App is kept.
func (a *App) load() (*vtile.Generator, error) {
	if a.Config == nil {
		cfg, err := a.loadConfig()
		if err != nil {
			return nil, err
		}
		a.Config = cfg
	}
	if a.Gzip {
		a.Config.Gzip = true
	}

	if a.Source == nil {
		if a.InputFile == "" {
			return nil, errors.New("no input: set -input to a GeoJSON file")
		}
		start := time.Now()
		src, err := vtile.LoadGeoJSON(a.InputFile)
		if err != nil {
			return nil, err
		}
		a.Source = src
		a.Log.WithFields(log.Fields{
			"file":     a.InputFile,
			"features": src.Len(),
			"elapsed":  time.Since(start).Round(time.Millisecond),
		}).Info("loaded input")
	}

	if a.Classifier == nil {
		cls, err := vtile.NewRuleClassifier(a.Config)
		if err != nil {
			return nil, err
		}
		a.Classifier = cls
	}

	return vtile.NewGenerator(a.Source, a.Classifier, a.Config, a.Log), nil
}

// loadConfig falls back to the defaults when the default config file does
// not exist; an explicitly named missing file is an error
func (a *App) loadConfig() (*vtile.Config, error) {
	if a.ConfigFile == "" {
		return vtile.DefaultConfig(), nil
	}
	if _, err := os.Stat(a.ConfigFile); os.IsNotExist(err) && a.ConfigFile == "config.yaml" {
		a.Log.Warn("config.yaml not found, using defaults")
		return vtile.DefaultConfig(), nil
	}
	return vtile.LoadConfig(a.ConfigFile)
}

// RunTile builds a single tile given as z/x/y
func (a *App) RunTile(id string) error {
	t, err := parseTileID(id)
	if err != nil {
		return err
	}
	gen, err := a.load()
	if err != nil {
		return err
	}

	res, err := gen.Build(t)
	if err != nil {
		return err
	}
	return a.writeTile(res)
}

// RunZoom builds every tile at zoom z that covers the input data
func (a *App) RunZoom(z int) error {
	if z < 0 || z > vtile.MaxSupportedZoom {
		return errors.Newf("zoom %d outside 0..%d", z, vtile.MaxSupportedZoom)
	}
	gen, err := a.load()
	if err != nil {
		return err
	}
	if a.Source.Len() == 0 {
		a.Log.Warn("input has no features, nothing to build")
		return nil
	}

	tiles := vtile.TilesCovering(a.Source.Bound(), maptile.Zoom(z))
	a.Log.WithFields(log.Fields{"zoom": z, "tiles": len(tiles)}).Info("building tiles")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := vtile.BuildTiles(ctx, gen, tiles, a.Workers, a.writeTile)
	if err != nil {
		return err
	}

	a.Log.WithFields(log.Fields{
		"zoom":          z,
		"tiles":         len(tiles),
		"features":      stats.Features,
		"points":        stats.Points,
		"dropped":       stats.DroppedFeatures,
		"featureErrors": stats.FeatureErrors,
		"oceanRings":    stats.OceanRings,
		"elapsed":       time.Since(start).Round(time.Millisecond),
	}).Info("zoom complete")
	return nil
}

// RunInitConfig writes an example configuration
func (a *App) RunInitConfig(path string) error {
	if err := vtile.SaveConfig(path, exampleConfig()); err != nil {
		return err
	}
	a.Log.WithField("file", path).Info("wrote example config")
	return nil
}

// writeTile stores a built tile as OutputDir/z/x/y.pbf. Empty tiles are not
// written. It is called concurrently by BuildTiles.
func (a *App) writeTile(res *vtile.Result) error {
	t := res.Tile
	tileLog := a.Log.WithField("tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y))
	if res.Empty() {
		tileLog.Debug("empty tile skipped")
		return nil
	}

	dir := filepath.Join(a.OutputDir, strconv.Itoa(int(t.Z)), strconv.FormatUint(uint64(t.X), 10))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating tile directory")
	}
	base := filepath.Join(dir, strconv.FormatUint(uint64(t.Y), 10))
	if err := os.WriteFile(base+".pbf", res.Data, 0644); err != nil {
		return errors.Wrap(err, "writing tile")
	}

	if a.Preview != "" {
		if err := a.writePreview(res, base+"."+a.Preview); err != nil {
			return err
		}
	}

	tileLog.WithFields(log.Fields{
		"bytes":    len(res.Data),
		"features": res.Stats.Features,
		"dropped":  res.Stats.DroppedFeatures,
	}).Info("tile written")
	return nil
}

func (a *App) writePreview(res *vtile.Result, path string) error {
	r, err := vtile.NewPreviewRenderer(res.Tile, res.Data, a.Config.Gzip, a.Config.Coastline.Layer)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating preview")
	}

	if a.Preview == "png" {
		err = r.RenderToPNG(f)
	} else {
		err = r.RenderToSVG(f)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		return errors.Wrapf(cerr, "closing preview %s", path)
	}
	return errors.Wrapf(err, "rendering preview %s", path)
}

// parseTileID parses "z/x/y"
func parseTileID(id string) (maptile.Tile, error) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return maptile.Tile{}, errors.Newf("tile %q: want z/x/y", id)
	}
	var n [3]uint64
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return maptile.Tile{}, errors.Wrapf(err, "tile %q", id)
		}
		n[i] = v
	}
	t := maptile.New(uint32(n[1]), uint32(n[2]), maptile.Zoom(n[0]))
	if !vtile.ValidTile(t) {
		return maptile.Tile{}, errors.Wrapf(vtile.ErrInvalidTile, "tile %q", id)
	}
	return t, nil
}

// exampleConfig is a small schema showing every rule feature
func exampleConfig() *vtile.Config {
	cfg := vtile.DefaultConfig()
	cfg.Layers = []vtile.LayerConfig{
		{Name: "water"},
		{Name: "landcover", MinZoom: 6},
		{Name: "roads", MinZoom: 8},
		{Name: "poi", MinZoom: 12},
	}
	cfg.Rules = []vtile.RuleConfig{
		{Match: map[string]string{"natural": "coastline"}, Coastline: true},
		{
			Match:      map[string]string{"natural": "water"},
			Layer:      "water",
			Kind:       "polygon",
			Attributes: []vtile.Attribute{{Key: "class", Value: "lake"}},
		},
		{
			Match:    map[string]string{"landuse": "*"},
			Layer:    "landcover",
			Kind:     "polygon",
			CopyTags: []string{"landuse"},
		},
		{
			Match:    map[string]string{"highway": "*"},
			Layer:    "roads",
			Kind:     "line",
			CopyTags: []string{"highway", "name", "ref"},
		},
		{
			Match:      map[string]string{"amenity": "*"},
			Layer:      "poi",
			Kind:       "point",
			AsCentroid: true,
			CopyTags:   []string{"amenity", "name"},
		},
	}
	return cfg
}
