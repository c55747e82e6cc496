package vtile

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// layerPalette colors layers in output order
var layerPalette = []color.NRGBA{
	{R: 70, G: 130, B: 180, A: 200},
	{R: 205, G: 92, B: 92, A: 220},
	{R: 60, G: 179, B: 113, A: 200},
	{R: 218, G: 165, B: 32, A: 220},
	{R: 147, G: 112, B: 219, A: 200},
}

// oceanColor is used for the coastline layer whatever its position
var oceanColor = color.NRGBA{R: 160, G: 200, B: 240, A: 255}

// nrgbaToRGBA premultiplies alpha for canvas paints
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// PreviewRenderer draws a built tile for visual inspection
type PreviewRenderer struct {
	Tile        maptile.Tile
	Layers      mvt.Layers
	OceanLayer  string
	Size        float64           // drawing size in millimeters
	Resolution  canvas.Resolution // PNG resolution
	StrokeWidth float64
}

// NewPreviewRenderer decodes tile data as written by Generator.Build
func NewPreviewRenderer(t maptile.Tile, data []byte, gzipped bool, oceanLayer string) (*PreviewRenderer, error) {
	r := &PreviewRenderer{
		Tile:        t,
		OceanLayer:  oceanLayer,
		Size:        256,
		Resolution:  canvas.DPI(72),
		StrokeWidth: 0.8,
	}
	if len(data) == 0 {
		return r, nil
	}

	var err error
	if gzipped {
		r.Layers, err = mvt.UnmarshalGzipped(data)
	} else {
		r.Layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, "decoding vector tile")
	}
	return r, nil
}

// RenderToSVG writes the tile as SVG
func (r *PreviewRenderer) RenderToSVG(w io.Writer) error {
	s := svg.New(w, r.Size, r.Size, nil)
	r.renderToCanvas(s)
	return s.Close()
}

// RenderToPNG writes the tile as PNG with its id stamped in the corner
func (r *PreviewRenderer) RenderToPNG(w io.Writer) error {
	rast := rasterizer.New(r.Size, r.Size, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast)

	d := &font.Drawer{
		Dst:  rast,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(6), Y: fixed.I(16)},
	}
	d.DrawString(fmt.Sprintf("%d/%d/%d", r.Tile.Z, r.Tile.X, r.Tile.Y))

	return png.Encode(w, rast)
}

func (r *PreviewRenderer) renderToCanvas(renderer canvasRenderer) {
	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	bg.Stroke = canvas.Paint{Color: canvas.Gray}
	bg.StrokeWidth = 0.3
	renderer.RenderPath(canvas.Rectangle(r.Size, r.Size), bg, canvas.Identity)

	for i, l := range r.Layers {
		c := layerPalette[i%len(layerPalette)]
		if l.Name == r.OceanLayer {
			c = oceanColor
		}
		scale := r.Size / float64(l.Extent)
		for _, f := range l.Features {
			r.renderGeometry(renderer, f.Geometry, nrgbaToRGBA(c), scale)
		}
	}
}

// toCanvas flips the y-down tile grid into canvas space, which is y-up
func (r *PreviewRenderer) toCanvas(p orb.Point, scale float64) (float64, float64) {
	return p[0] * scale, r.Size - p[1]*scale
}

func (r *PreviewRenderer) renderGeometry(renderer canvasRenderer, g orb.Geometry, c color.RGBA, scale float64) {
	switch geom := g.(type) {
	case orb.Point:
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: c}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = r.StrokeWidth / 4
		x, y := r.toCanvas(geom, scale)
		renderer.RenderPath(canvas.Circle(r.StrokeWidth*1.5).Translate(x, y), style, canvas.Identity)
	case orb.MultiPoint:
		for _, p := range geom {
			r.renderGeometry(renderer, p, c, scale)
		}
	case orb.LineString:
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = r.StrokeWidth
		renderer.RenderPath(r.trace(&canvas.Path{}, geom, scale, false), style, canvas.Identity)
	case orb.MultiLineString:
		for _, ls := range geom {
			r.renderGeometry(renderer, ls, c, scale)
		}
	case orb.Polygon:
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: c}
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		p := &canvas.Path{}
		for _, ring := range geom {
			r.trace(p, orb.LineString(ring), scale, true)
		}
		renderer.RenderPath(p, style, canvas.Identity)
	case orb.MultiPolygon:
		for _, poly := range geom {
			r.renderGeometry(renderer, poly, c, scale)
		}
	}
}

// trace appends points to p as one subpath
func (r *PreviewRenderer) trace(p *canvas.Path, points orb.LineString, scale float64, closed bool) *canvas.Path {
	for i, pt := range points {
		x, y := r.toCanvas(pt, scale)
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	if closed {
		p.Close()
	}
	return p
}
