package main

import (
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/kwv/coastile/vtile"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/encoding/mvt"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `extent: 4096
maxZoom: 3
simplifyPixels: 0
coastline:
  layer: water
  class: ocean
layers:
  - name: water
  - name: poi
rules:
  - match: {natural: coastline}
    coastline: true
  - match: {amenity: "*"}
    layer: poi
    kind: point
    copyTags: [amenity, name]
`

// The coastline runs west across the whole world just north of the equator.
// Two cafes sit in opposite quadrants.
const testInputGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "node/1",
     "geometry": {"type": "Point", "coordinates": [10.0, 50.0]},
     "properties": {"amenity": "cafe", "name": "North"}},
    {"type": "Feature", "id": "node/2",
     "geometry": {"type": "Point", "coordinates": [-10.0, -50.0]},
     "properties": {"amenity": "cafe", "name": "South"}},
    {"type": "Feature", "id": "way/3",
     "geometry": {"type": "LineString", "coordinates": [[200, 1], [-200, 1]]},
     "properties": {"natural": "coastline"}}
  ]
}`

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	inPath := filepath.Join(dir, "input.geojson")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigYAML), 0644))
	require.NoError(t, os.WriteFile(inPath, []byte(testInputGeoJSON), 0644))

	app := NewApp()
	app.Log.SetLevel(log.PanicLevel)
	app.ApplyOptions(AppOptions{
		ConfigFile: cfgPath,
		InputFile:  inPath,
		OutputDir:  filepath.Join(dir, "tiles"),
		Workers:    2,
	})
	return app
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	require.NotNil(t, app)
	assert.NotNil(t, app.Log)
	assert.Nil(t, app.Config)
}

func TestApplyOptions(t *testing.T) {
	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: "c.yaml",
		InputFile:  "in.geojson",
		OutputDir:  "out",
		Workers:    4,
		Gzip:       true,
		Preview:    "svg",
		Verbose:    true,
	})

	assert.Equal(t, "c.yaml", app.ConfigFile)
	assert.Equal(t, "in.geojson", app.InputFile)
	assert.Equal(t, "out", app.OutputDir)
	assert.Equal(t, 4, app.Workers)
	assert.True(t, app.Gzip)
	assert.Equal(t, "svg", app.Preview)
	assert.Equal(t, log.DebugLevel, app.Log.GetLevel())
}

func TestParseTileID(t *testing.T) {
	tests := []struct {
		id      string
		want    maptile.Tile
		wantErr bool
	}{
		{id: "0/0/0", want: maptile.New(0, 0, 0)},
		{id: "3/5/2", want: maptile.New(5, 2, 3)},
		{id: "2/4/0", wantErr: true},
		{id: "1/0", wantErr: true},
		{id: "a/b/c", wantErr: true},
		{id: "1/-1/0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := parseTileID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseTileID("1/2/0")
	assert.True(t, errors.Is(err, vtile.ErrInvalidTile))
}

func TestRunTile(t *testing.T) {
	app := newTestApp(t)
	app.Preview = "svg"
	require.NoError(t, app.RunTile("0/0/0"))

	path := filepath.Join(app.OutputDir, "0", "0", "0.pbf")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	names := make([]string, 0, len(layers))
	for _, l := range layers {
		names = append(names, l.Name)
	}
	assert.ElementsMatch(t, []string{"water", "poi"}, names)

	for _, l := range layers {
		if l.Name == "poi" {
			assert.Len(t, l.Features, 2)
		}
		if l.Name == "water" {
			require.Len(t, l.Features, 1)
			assert.Equal(t, "ocean", l.Features[0].Properties["class"])
		}
	}

	_, err = os.Stat(filepath.Join(app.OutputDir, "0", "0", "0.svg"))
	assert.NoError(t, err)
}

func TestWritePreview(t *testing.T) {
	app := newTestApp(t)
	app.Preview = "png"
	require.NoError(t, app.RunTile("0/0/0"))

	f, err := os.Open(filepath.Join(app.OutputDir, "0", "0", "0.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	res := &vtile.Result{Tile: maptile.New(0, 0, 0)}
	err = app.writePreview(res, filepath.Join(t.TempDir(), "missing", "0.png"))
	assert.Error(t, err)
}

func TestRunTile_Gzip(t *testing.T) {
	app := newTestApp(t)
	app.Gzip = true
	require.NoError(t, app.RunTile("0/0/0"))

	data, err := os.ReadFile(filepath.Join(app.OutputDir, "0", "0", "0.pbf"))
	require.NoError(t, err)
	_, err = mvt.UnmarshalGzipped(data)
	assert.NoError(t, err)
}

func TestRunTile_Errors(t *testing.T) {
	app := newTestApp(t)
	assert.Error(t, app.RunTile("bogus"))

	app.InputFile = ""
	assert.Error(t, app.RunTile("0/0/0"), "input is required")

	app = newTestApp(t)
	app.ConfigFile = filepath.Join(t.TempDir(), "nope.yaml")
	assert.Error(t, app.RunTile("0/0/0"), "named config must exist")
}

func TestRunZoom_SkipsEmptyTiles(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.RunZoom(1))

	exists := func(x, y int) bool {
		_, err := os.Stat(filepath.Join(app.OutputDir, "1", strconv.Itoa(x), strconv.Itoa(y)+".pbf"))
		return err == nil
	}
	// north cafe in the north east, south cafe in the south west
	assert.True(t, exists(1, 0))
	assert.True(t, exists(0, 1))
}

func TestRunZoom_OutOfRange(t *testing.T) {
	app := newTestApp(t)
	assert.Error(t, app.RunZoom(vtile.MaxSupportedZoom+1))
}

func TestRunInitConfig(t *testing.T) {
	app := NewApp()
	app.Log.SetLevel(log.PanicLevel)
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, app.RunInitConfig(path))

	cfg, err := vtile.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, exampleConfig().Rules, cfg.Rules)
	assert.Equal(t, []string{"water", "landcover", "roads", "poi"}, cfg.LayerNames())

	_, err = vtile.NewRuleClassifier(cfg)
	assert.NoError(t, err)
}

func TestLoadConfig_DefaultFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	app := NewApp()
	app.Log.SetLevel(log.PanicLevel)
	app.ConfigFile = "config.yaml"
	cfg, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, vtile.DefaultConfig(), cfg)
}
