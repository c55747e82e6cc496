package vtile

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewTile(t *testing.T, gzipped bool) []byte {
	t.Helper()
	cfg := testConfig()
	cfg.Gzip = gzipped
	b := NewTileBuilder(rootTile, cfg, nil)

	require.NoError(t, b.Layer(pointFeature(1, orb.Point{0.3, 0.3}), ClassifiedFeature{Layer: "poi", Kind: GeomPoint}))
	require.NoError(t, b.Layer(lineFeature(2, orb.Point{0.1, 0.1}, orb.Point{0.9, 0.4}), ClassifiedFeature{Layer: "roads", Kind: GeomLine}))
	square := []orb.Point{{0.2, 0.6}, {0.5, 0.6}, {0.5, 0.9}, {0.2, 0.9}, {0.2, 0.6}}
	require.NoError(t, b.Layer(polygonFeature(3, square), ClassifiedFeature{Layer: "landcover", Kind: GeomPolygon}))
	coast := lineFeature(4, orb.Point{1.5, 0.5}, orb.Point{-0.5, 0.5})
	require.NoError(t, b.Layer(coast, ClassifiedFeature{Kind: GeomLine, Coastline: true}))
	require.NoError(t, b.BuildCoastline())

	data, err := b.Serialize()
	require.NoError(t, err)
	return data
}

func TestPreviewRenderer_SVG(t *testing.T) {
	r, err := NewPreviewRenderer(rootTile, previewTile(t, false), false, "water")
	require.NoError(t, err)
	require.Len(t, r.Layers, 4)

	var buf bytes.Buffer
	require.NoError(t, r.RenderToSVG(&buf))
	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"))
	assert.True(t, strings.Contains(out, "<path"))
}

func TestPreviewRenderer_PNG(t *testing.T) {
	r, err := NewPreviewRenderer(rootTile, previewTile(t, true), true, "water")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderToPNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 100)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestPreviewRenderer_EmptyTile(t *testing.T) {
	r, err := NewPreviewRenderer(rootTile, nil, false, "water")
	require.NoError(t, err)
	assert.Empty(t, r.Layers)

	var buf bytes.Buffer
	require.NoError(t, r.RenderToSVG(&buf))
	assert.NotZero(t, buf.Len())
}

func TestPreviewRenderer_BadData(t *testing.T) {
	_, err := NewPreviewRenderer(rootTile, []byte("not a tile"), true, "water")
	assert.Error(t, err)
}

func TestNRGBAToRGBA(t *testing.T) {
	c := nrgbaToRGBA(oceanColor)
	assert.Equal(t, oceanColor.R, c.R)

	half := nrgbaToRGBA(layerPalette[0])
	assert.Equal(t, layerPalette[0].A, half.A)
	assert.Less(t, half.R, layerPalette[0].R)
}
