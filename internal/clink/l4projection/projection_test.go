package l4projection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/testutil"
)

const tol = 1e-6

func corners(q Quad) [4]geom.Point {
	return [4]geom.Point{q.TopLeft, q.TopRight, q.BottomLeft, q.BottomRight}
}


func TestFormBasisMapsUnitPoints(t *testing.T) {
	t.Parallel()
	q := Quad{geom.Pt(10, 20), geom.Pt(110, 25), geom.Pt(5, 130), geom.Pt(120, 140)}
	b := FormBasis(q)
	units := []geom.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}}
	for i, u := range units {
		h := b.MulVec(u)
		got := geom.Pt(h[0]/h[2], h[1]/h[2])
		testutil.AssertPointNear(t, got, corners(q)[i], tol)
	}
}

func TestRoundTripCanonicalCorners(t *testing.T) {
	t.Parallel()
	quads := []Quad{
		{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(0, 100), geom.Pt(100, 100)},
		{geom.Pt(300, 200), geom.Pt(420, 210), geom.Pt(290, 330), geom.Pt(430, 350)},
		// rotated 180 degrees
		{geom.Pt(100, 100), geom.Pt(0, 100), geom.Pt(100, 0), geom.Pt(0, 0)},
		// strong perspective
		{geom.Pt(800, 400), geom.Pt(1000, 420), geom.Pt(780, 700), geom.Pt(1100, 650)},
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		cx, cy := 200+rng.Float64()*1500, 200+rng.Float64()*700
		s := 40 + rng.Float64()*150
		jit := func() float64 { return (rng.Float64() - 0.5) * s * 0.4 }
		quads = append(quads, Quad{
			geom.Pt(cx-s+jit(), cy-s+jit()),
			geom.Pt(cx+s+jit(), cy-s+jit()),
			geom.Pt(cx-s+jit(), cy+s+jit()),
			geom.Pt(cx+s+jit(), cy+s+jit()),
		})
	}

	for _, q := range quads {
		m, ok := ForCorners(q)
		require.True(t, ok, "quad %v", q)
		testutil.AssertNear(t, m[15], 1.0, 1e-12)
		src, dst := corners(CanonicalQuad), corners(q)
		for i := range src {
			testutil.AssertPointNear(t, m.Project(src[i]), dst[i], tol)
		}
	}
}

func TestAxisAlignedSquareIsAffine(t *testing.T) {
	t.Parallel()
	q := Quad{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(0, 100), geom.Pt(100, 100)}
	m, ok := ForCorners(q)
	require.True(t, ok)
	testutil.AssertNear(t, m[3], 0, 1e-12)
	testutil.AssertNear(t, m[7], 0, 1e-12)
	// 7 canonical units span 100 px.
	testutil.AssertPointNear(t, m.Project(geom.Pt(2.5, 2.5)), geom.Pt(50, 50), tol)
	testutil.AssertPointNear(t, m.Project(geom.Pt(0, 0)), geom.Pt(100.0/7, 100.0/7), tol)
	testutil.AssertPointNear(t, m.Project(geom.Pt(5, 0)), geom.Pt(600.0/7, 100.0/7), tol)
}

// dltHomography solves the 8-unknown direct linear transform with gonum as
// an independent oracle for Build.
func dltHomography(t *testing.T, src, dst [4]geom.Point) geom.Mat3 {
	t.Helper()
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		a.SetRow(2*i+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(2*i, x)
		b.SetVec(2*i+1, y)
	}
	var h mat.VecDense
	require.NoError(t, h.SolveVec(a, b))
	return geom.Mat3{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}
}

func TestBuildAgreesWithLinearSolve(t *testing.T) {
	t.Parallel()
	src := Quad{geom.Pt(-1, -1), geom.Pt(6, -1), geom.Pt(-1, 6), geom.Pt(6, 6)}
	dst := Quad{geom.Pt(812, 403), geom.Pt(1004, 431), geom.Pt(790, 688), geom.Pt(1093, 655)}

	m, ok := Build(src, dst)
	require.True(t, ok)
	oracle := geom.Embed(dltHomography(t, corners(src), corners(dst)))

	for x := 0; x < GridCells; x++ {
		for y := 0; y < GridCells; y++ {
			p := geom.Pt(float64(x), float64(y))
			testutil.AssertPointNear(t, m.Project(p), oracle.Project(p), tol)
		}
	}
	for i := range m {
		assert.InDelta(t, oracle[i], m[i], 1e-6, "entry %d", i)
	}
}

func TestBuildBetweenArbitraryQuads(t *testing.T) {
	t.Parallel()
	src := Quad{geom.Pt(0, 0), geom.Pt(1, 0), geom.Pt(0, 1), geom.Pt(1, 1)}
	dst := Quad{geom.Pt(10, 10), geom.Pt(30, 12), geom.Pt(8, 40), geom.Pt(35, 38)}
	m, ok := Build(src, dst)
	require.True(t, ok)
	s, d := corners(src), corners(dst)
	for i := range s {
		testutil.AssertPointNear(t, m.Project(s[i]), d[i], tol)
	}
}

func TestDegenerateCornersRejected(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		q    Quad
	}{
		{"all collinear", Quad{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(20, 0), geom.Pt(30, 0)}},
		{"coincident", Quad{geom.Pt(5, 5), geom.Pt(5, 5), geom.Pt(5, 5), geom.Pt(5, 5)}},
		{"diagonal line", Quad{geom.Pt(0, 0), geom.Pt(10, 10), geom.Pt(20, 20), geom.Pt(30, 30)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ForCorners(tt.q)
			assert.False(t, ok)
			assert.False(t, m.IsFinite())
		})
	}
}
