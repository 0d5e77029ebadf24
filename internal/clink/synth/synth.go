// Package synth renders synthetic frames: an RGB image with markers
// painted into it plus the matching tag aggregate the pixel classifier
// would have produced. It backs the clinkgen tool and end-to-end tests.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l4projection"
	"github.com/banshee-data/clinkcode/internal/clink/l5codes"
)

const (
	// DefaultTagWeight is the per-tag total weight written to the aggregate.
	DefaultTagWeight = 10
	// DefaultOrientation is the orientation vector magnitude of each tag.
	DefaultOrientation = 8.0
	// DefaultDotRadius is the half-width of the square painted per cell.
	DefaultDotRadius = 2
)

// Placement is one marker to draw.
type Placement struct {
	Corners l4projection.Quad
	Code    int32
}

// Scene describes a synthetic frame.
type Scene struct {
	Width, Height int
	Layout        l1grid.Layout
	Markers       []Placement
	// Board adds calibration-board tags in the frame's four corners.
	Board bool
	// SkipTags draws the image only, leaving the aggregate empty.
	SkipTags bool
}

// Frame is a rendered scene.
type Frame struct {
	Image     *image.RGBA
	Buffer    *framebuf.Buffer
	Aggregate *l1grid.Aggregate
}

// Square returns the corners of an axis-aligned marker whose top-left tag
// is at (x, y) and whose tags are size pixels apart.
func Square(x, y, size float64) l4projection.Quad {
	return l4projection.Quad{
		TopLeft:     geom.Pt(x, y),
		TopRight:    geom.Pt(x+size, y),
		BottomLeft:  geom.Pt(x, y+size),
		BottomRight: geom.Pt(x+size, y+size),
	}
}

// Render draws s. Every marker code must be encodable by dec.
func Render(s Scene, dec *l5codes.Decoder) (*Frame, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("synth: invalid frame size %dx%d", s.Width, s.Height)
	}
	if err := s.Layout.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	b := l1grid.NewBuilder(s.Layout)
	for i, p := range s.Markers {
		pat, err := dec.Encode(p.Code)
		if err != nil {
			return nil, fmt.Errorf("synth: marker %d: %w", i, err)
		}
		m, ok := l4projection.ForCorners(p.Corners)
		if !ok {
			return nil, fmt.Errorf("synth: marker %d: degenerate corners", i)
		}
		paintPattern(img, m, pat)
		if !s.SkipTags {
			addMarkerTags(b, s, p.Corners)
		}
	}
	if s.Board && !s.SkipTags {
		addBoardTags(b, s)
	}

	buf, err := framebuf.New(img.Pix, s.Width, s.Height, img.Stride, 4)
	if err != nil {
		return nil, err
	}
	return &Frame{Image: img, Buffer: buf, Aggregate: b.Aggregate()}, nil
}

func paintPattern(img *image.RGBA, m geom.Mat4, pat l5codes.Pattern) {
	for y := 0; y < l4projection.GridCells; y++ {
		for x := 0; x < l4projection.GridCells; x++ {
			if !pat.Dark[y][x] {
				continue
			}
			c := m.Project(geom.Pt(float64(x), float64(y)))
			cx, cy := int(math.Round(c.X)), int(math.Round(c.Y))
			r := image.Rect(cx-DefaultDotRadius, cy-DefaultDotRadius, cx+DefaultDotRadius+1, cy+DefaultDotRadius+1)
			draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
		}
	}
}

func unit(from, to geom.Point) geom.Point {
	d := to.Sub(from)
	l := d.Len()
	if l == 0 {
		return geom.Point{}
	}
	return d.Mul(DefaultOrientation / l)
}

// addMarkerTags writes the four corner tags. Each tag's orientation points
// along a marker edge: top-left toward bottom-left, bottom-right toward
// top-right, top-right toward top-left, bottom-left toward bottom-right,
// so tags on one diagonal are anti-parallel.
func addMarkerTags(b *l1grid.Builder, s Scene, q l4projection.Quad) {
	add := func(t l1grid.TagType, at, toward geom.Point) {
		n := s.Layout.CellIndex(at.X, at.Y, s.Width, s.Height)
		o := unit(at, toward)
		b.AddSample(n, t, DefaultTagWeight, at.X, at.Y, o.X, o.Y, 1)
		b.AddCounter(t, 1)
	}
	add(l1grid.Code3PartCW, q.TopLeft, q.BottomLeft)
	add(l1grid.Code3PartCW, q.BottomRight, q.TopRight)
	add(l1grid.Code3PartCCW, q.TopRight, q.TopLeft)
	add(l1grid.Code3PartCCW, q.BottomLeft, q.BottomRight)
}

func addBoardTags(b *l1grid.Builder, s Scene) {
	w, h := float64(s.Width), float64(s.Height)
	inset := math.Min(w, h) / 20
	pts := [4]geom.Point{
		geom.Pt(inset, inset),
		geom.Pt(w-inset, inset),
		geom.Pt(inset, h-inset),
		geom.Pt(w-inset, h-inset),
	}
	for i, t := range l1grid.BoardTypes {
		n := s.Layout.CellIndex(pts[i].X, pts[i].Y, s.Width, s.Height)
		b.AddSample(n, t, DefaultTagWeight, pts[i].X, pts[i].Y, 0, 0, 1)
		b.AddCounter(t, 1)
	}
}
