// Package monitor renders debug output for decoded frames: a PNG overlay
// of the extracted tags and accepted markers, and an HTML dashboard of
// per-frame latency and marker counts.
package monitor

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
	"github.com/banshee-data/clinkcode/internal/clink/l5codes"
)

// crosshairHalf is the half-length of the center crosshair arms, in pixels.
const crosshairHalf = 6.0

// Overlay is one frame's worth of debug geometry.
type Overlay struct {
	Title         string
	Width, Height int
	Tags          l2tags.ByType
	Markers       []l5codes.Marker
}

// NewOverlayPlot builds the overlay in image coordinates: x right, y down.
func NewOverlayPlot(o Overlay) (*plot.Plot, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("invalid overlay size %dx%d", o.Width, o.Height)
	}
	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.X.Min, p.X.Max = 0, float64(o.Width)
	p.Y.Min, p.Y.Max = 0, float64(o.Height)
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(plotter.NewGrid())

	colors := generateColors(l1grid.NumKnownTypes)
	for typ := l1grid.TagType(0); typ < l1grid.NumKnownTypes; typ++ {
		tags := o.Tags[typ]
		if len(tags) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(tags))
		for i, t := range tags {
			pts[i] = plotter.XY{X: t.X, Y: t.Y}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = colors[typ]
		sc.GlyphStyle.Radius = vg.Points(3)
		if typ.IsBoard() {
			sc.GlyphStyle.Shape = draw.BoxGlyph{}
		} else {
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
		}
		p.Add(sc)
		p.Legend.Add(typ.String(), sc)
	}

	markerColor := color.RGBA{R: 220, G: 30, B: 30, A: 255}
	var labels plotter.XYLabels
	for _, m := range o.Markers {
		outline, err := plotter.NewLine(markerOutline(m))
		if err != nil {
			return nil, err
		}
		outline.Color = markerColor
		outline.Width = vg.Points(1.5)
		p.Add(outline)

		for _, arm := range crosshair(m.Center) {
			l, err := plotter.NewLine(arm)
			if err != nil {
				return nil, err
			}
			l.Color = markerColor
			l.Width = vg.Points(1)
			p.Add(l)
		}
		labels.XYs = append(labels.XYs, plotter.XY{X: m.Center.X + crosshairHalf, Y: m.Center.Y})
		labels.Labels = append(labels.Labels, fmt.Sprintf("%d", m.Code))
	}
	if len(labels.XYs) > 0 {
		lb, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, err
		}
		p.Add(lb)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// markerOutline traces TL, TR, BR, BL and back to TL.
func markerOutline(m l5codes.Marker) plotter.XYs {
	corners := []l2tags.Tag{m.TopLeft, m.TopRight, m.BottomRight, m.BottomLeft, m.TopLeft}
	pts := make(plotter.XYs, len(corners))
	for i, c := range corners {
		pts[i] = plotter.XY{X: c.X, Y: c.Y}
	}
	return pts
}

func crosshair(c geom.Point) [2]plotter.XYs {
	return [2]plotter.XYs{
		{{X: c.X - crosshairHalf, Y: c.Y}, {X: c.X + crosshairHalf, Y: c.Y}},
		{{X: c.X, Y: c.Y - crosshairHalf}, {X: c.X, Y: c.Y + crosshairHalf}},
	}
}

// overlaySize keeps the frame aspect ratio at a fixed 8 inch width.
func overlaySize(o Overlay) (vg.Length, vg.Length) {
	w := 8 * vg.Inch
	return w, w * vg.Length(float64(o.Height)/float64(o.Width))
}

// WriteOverlay renders the overlay to w in the given format ("png", "svg",
// "pdf", ...).
func WriteOverlay(w io.Writer, o Overlay, format string) error {
	p, err := NewOverlayPlot(o)
	if err != nil {
		return err
	}
	width, height := overlaySize(o)
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("overlay %s: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	return nil
}

// SaveOverlay renders the overlay to path; the extension picks the format.
func SaveOverlay(path string, o Overlay) error {
	p, err := NewOverlayPlot(o)
	if err != nil {
		return err
	}
	width, height := overlaySize(o)
	if err := p.Save(width, height, filepath.Clean(path)); err != nil {
		return fmt.Errorf("failed to save overlay %s: %w", path, err)
	}
	return nil
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL in [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
