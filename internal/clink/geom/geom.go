// Package geom holds the small fixed-size linear algebra used by every
// decoder layer: 2D points, 3x3 matrices and the 4x4 storage form of a
// planar projective transform.
//
// Everything here is value-typed and allocation-free.
package geom

import "math"

// Point represents a 2D point or vector in pixel or grid space.
type Point struct {
	X, Y float64
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points (vector addition).
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns the point scaled by a scalar.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Len returns the Euclidean length of the vector.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return Point{X: (p.X + q.X) / 2.0, Y: (p.Y + q.Y) / 2.0}
}

// Vec3 is a homogeneous 2D point (x, y, w).
type Vec3 [3]float64

// Mat3 is a 3x3 matrix in row-major order:
//
//	| m[0] m[1] m[2] |
//	| m[3] m[4] m[5] |
//	| m[6] m[7] m[8] |
type Mat3 [9]float64

// Diag returns the diagonal matrix with v on its diagonal.
func Diag(v Vec3) Mat3 {
	return Mat3{
		v[0], 0, 0,
		0, v[1], 0,
		0, 0, v[2],
	}
}

// Adjugate returns the transpose of the cofactor matrix. For an invertible
// matrix it equals det(m) * inverse(m); unlike the inverse it needs no
// division, so a singular input yields a finite (rank-deficient) result
// rather than infinities.
func (m Mat3) Adjugate() Mat3 {
	return Mat3{
		m[4]*m[8] - m[5]*m[7], m[2]*m[7] - m[1]*m[8], m[1]*m[5] - m[2]*m[4],
		m[5]*m[6] - m[3]*m[8], m[0]*m[8] - m[2]*m[6], m[2]*m[3] - m[0]*m[5],
		m[3]*m[7] - m[4]*m[6], m[1]*m[6] - m[0]*m[7], m[0]*m[4] - m[1]*m[3],
	}
}

// Mul returns the matrix product m * b.
func (m Mat3) Mul(b Mat3) Mat3 {
	var c Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var cij float64
			for k := 0; k < 3; k++ {
				cij += m[3*i+k] * b[3*k+j]
			}
			c[3*i+j] = cij
		}
	}
	return c
}

// MulVec returns the matrix-vector product m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Scale returns m with every entry multiplied by s.
func (m Mat3) Scale(s float64) Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

// Mat4 is a 4x4 matrix stored column-major, the layout consumed by
// rendering code. A planar homography H (row-major Mat3) is embedded as
//
//	| h0 h1 0 h2 |
//	| h3 h4 0 h5 |
//	| 0  0  1 0  |
//	| h6 h7 0 h8 |
//
// so that m[0], m[4], m[12] form the x row and m[3], m[7], m[15] the
// homogeneous row.
type Mat4 [16]float64

// Embed stores the 3x3 homography h in a Mat4.
func Embed(h Mat3) Mat4 {
	return Mat4{
		h[0], h[3], 0, h[6],
		h[1], h[4], 0, h[7],
		0, 0, 1, 0,
		h[2], h[5], 0, h[8],
	}
}

// Project maps a point through the embedded homography with a
// homogeneous divide.
func (m Mat4) Project(p Point) Point {
	s := 1 / (m[3]*p.X + m[7]*p.Y + m[15])
	return Point{
		X: s * (m[0]*p.X + m[4]*p.Y + m[12]),
		Y: s * (m[1]*p.X + m[5]*p.Y + m[13]),
	}
}

// IsFinite reports whether every entry is neither NaN nor infinite.
func (m Mat4) IsFinite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
