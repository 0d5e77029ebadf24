package l5codes

import (
	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
	"github.com/banshee-data/clinkcode/internal/clink/l3pairs"
	"github.com/banshee-data/clinkcode/internal/clink/l4projection"
)

// Corners names the four corner tags of a marker hypothesis.
type Corners struct {
	TopLeft, TopRight, BottomLeft, BottomRight l2tags.Tag
}

// Quad returns the corner positions for projection.
func (c Corners) Quad() l4projection.Quad {
	return l4projection.Quad{
		TopLeft:     c.TopLeft.Point(),
		TopRight:    c.TopRight.Point(),
		BottomLeft:  c.BottomLeft.Point(),
		BottomRight: c.BottomRight.Point(),
	}
}

// Rotate180 relabels the corners as seen with the marker turned upside
// down.
func (c Corners) Rotate180() Corners {
	return Corners{
		TopLeft:     c.BottomRight,
		TopRight:    c.BottomLeft,
		BottomRight: c.TopLeft,
		BottomLeft:  c.TopRight,
	}
}

// OrientCorners assigns the candidate's tags to corner roles. The CW pair
// lies on the top-left/bottom-right diagonal, with the upper tag taken as
// top-left. Of the CCW pair, the tag the top-left tag points at more
// closely becomes bottom-left.
func OrientCorners(c l3pairs.Candidate) Corners {
	tl, br := c.CW.A, c.CW.B
	if tl.Y > br.Y {
		tl, br = br, tl
	}
	tr, bl := c.CCW.A, c.CCW.B
	if tl.PointingError(tr) < tl.PointingError(bl) {
		tr, bl = bl, tr
	}
	return Corners{TopLeft: tl, TopRight: tr, BottomLeft: bl, BottomRight: br}
}

// Marker is an accepted detection.
type Marker struct {
	Corners
	Projection geom.Mat4
	Code       int32
	Diagonal   int
	Center     geom.Point
	Rotated    bool
	Valid      bool
}

// Attempt is the result of trying one corner labelling.
type Attempt struct {
	Projection geom.Mat4
	Reading    Reading
}

// TryDecode builds the projection for corners and reads the grid through it.
func (d *Decoder) TryDecode(corners Corners, s framebuf.Sampler) Attempt {
	m, ok := l4projection.ForCorners(corners.Quad())
	if !ok {
		return Attempt{Projection: m, Reading: Reading{Reason: ReasonDegenerate}}
	}
	return Attempt{Projection: m, Reading: d.Read(m, s)}
}

// Assemble turns a candidate into a marker. A reading that asks for a
// rotation is retried once with the corners turned 180 degrees; the retry
// must yield a positive code. On failure the returned marker is not
// valid and the reason says which step rejected it.
func (d *Decoder) Assemble(c l3pairs.Candidate, s framebuf.Sampler) (Marker, Reason) {
	corners := OrientCorners(c)
	att := d.TryDecode(corners, s)
	rotated := false
	switch att.Reading.Outcome {
	case Rejected:
		return Marker{Corners: corners, Projection: att.Projection}, att.Reading.Reason
	case Accepted:
		if att.Reading.Code == 0 {
			return Marker{Corners: corners, Projection: att.Projection}, ReasonChecksum
		}
	case RotateAndRetry:
		corners = corners.Rotate180()
		rotated = true
		att = d.TryDecode(corners, s)
		if att.Reading.Outcome != Accepted || att.Reading.Code <= 0 {
			return Marker{Corners: corners, Projection: att.Projection, Rotated: true}, ReasonRetryFailed
		}
	}
	return Marker{
		Corners:    corners,
		Projection: att.Projection,
		Code:       att.Reading.Code,
		Diagonal:   att.Reading.Diagonal,
		Center:     att.Projection.Project(geom.Pt(2.5, 2.5)),
		Rotated:    rotated,
		Valid:      true,
	}, ReasonNone
}
