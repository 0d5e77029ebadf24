// Package l4projection owns Layer 4 (Projection): the projective mapping
// from marker-local grid coordinates to image pixels.
//
// The transform is built with the basis method: for each quadrilateral,
// find the 3x3 matrix that maps the homogeneous unit points
// (1,0,0), (0,1,0), (0,0,1), (1,1,1) onto its four corners, then compose
// destination basis with the adjugate of the source basis.
//
// Dependency rule: L4 depends on geom only.
package l4projection

import "github.com/banshee-data/clinkcode/internal/clink/geom"

// GridCells is the number of data cells along each side of a marker.
const GridCells = 6

// Quad holds four corner points in marker reading order.
type Quad struct {
	TopLeft, TopRight, BottomLeft, BottomRight geom.Point
}

// CanonicalQuad is the marker square in grid coordinates: corner tags sit
// one cell outside the 6x6 data area.
var CanonicalQuad = Quad{
	TopLeft:     geom.Pt(-1, -1),
	TopRight:    geom.Pt(GridCells, -1),
	BottomLeft:  geom.Pt(-1, GridCells),
	BottomRight: geom.Pt(GridCells, GridCells),
}

// FormBasis returns the matrix whose columns are the first three corners
// in homogeneous form, each rescaled so the fourth corner is their sum.
// If the first three corners are collinear the result is rank deficient.
func FormBasis(q Quad) geom.Mat3 {
	m := geom.Mat3{
		q.TopLeft.X, q.TopRight.X, q.BottomLeft.X,
		q.TopLeft.Y, q.TopRight.Y, q.BottomLeft.Y,
		1, 1, 1,
	}
	v := m.Adjugate().MulVec(geom.Vec3{q.BottomRight.X, q.BottomRight.Y, 1})
	return m.Mul(geom.Diag(v))
}

// Build returns the homography taking src corners to dst corners,
// normalised so its homogeneous corner entry is 1 and embedded in a Mat4.
// ok is false when any entry is non-finite, which happens when either
// quadrilateral is degenerate.
func Build(src, dst Quad) (geom.Mat4, bool) {
	s := FormBasis(src)
	d := FormBasis(dst)
	t := d.Mul(s.Adjugate())
	w := t[8]
	for i := range t {
		t[i] /= w
	}
	m := geom.Embed(t)
	return m, m.IsFinite()
}

// ForCorners maps the canonical marker square onto the detected corners.
func ForCorners(corners Quad) (geom.Mat4, bool) {
	return Build(CanonicalQuad, corners)
}
