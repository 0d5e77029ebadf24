// Package l5codes owns Layer 5 (Codes): reading the 6x6 data grid of a
// marker through its projection, validating the diagonal pattern and the
// checksum, and assembling accepted markers from CW/CCW pair candidates.
//
// Dependency rule: L5 may depend on L1-L4, geom, framebuf and config.
package l5codes

import (
	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l4projection"
	"github.com/banshee-data/clinkcode/internal/config"
)

// DefaultValidDiagonals are the 6-bit diagonal patterns printed markers
// use. None of them is the bit reversal of another, so a marker read
// upside down is always distinguishable from one read upright.
var DefaultValidDiagonals = config.DefaultValidDiagonals

const (
	diagonalBits = l4projection.GridCells
	diagonalMask = 1<<diagonalBits - 1
	// DataBits is the number of code cells: the 6x6 grid minus both diagonals.
	DataBits = l4projection.GridCells*l4projection.GridCells - 2*l4projection.GridCells
	// MaxCode is the largest value a marker can carry.
	MaxCode = 1<<DataBits - 1
)

// Outcome classifies a single read of the data grid.
type Outcome int

const (
	// Rejected means the read failed and rotating will not help.
	Rejected Outcome = iota
	// RotateAndRetry means the diagonals read as a valid pattern reversed.
	RotateAndRetry
	// Accepted means the code passed the whitelist and checksum.
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case RotateAndRetry:
		return "rotate"
	case Accepted:
		return "accepted"
	}
	return "unknown"
}

// Reason says why a candidate did not yield a marker.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDegenerate
	ReasonOutOfFrame
	ReasonAmbiguous
	ReasonNotWhitelisted
	ReasonChecksum
	ReasonRetryFailed
)

var reasonNames = [...]string{
	ReasonNone:           "none",
	ReasonDegenerate:     "degenerate",
	ReasonOutOfFrame:     "out_of_frame",
	ReasonAmbiguous:      "ambiguous_diagonal",
	ReasonNotWhitelisted: "not_whitelisted",
	ReasonChecksum:       "checksum",
	ReasonRetryFailed:    "retry_failed",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Reading is the result of one pass over the data grid.
type Reading struct {
	Outcome  Outcome
	Code     int32
	Diagonal int
	Reason   Reason
}

// Decoder reads marker codes. It is immutable after construction and safe
// for concurrent use.
type Decoder struct {
	valid [1 << diagonalBits]bool
}

// NewDecoder returns a decoder accepting the given diagonal patterns.
// Values outside 0..63 are ignored. A nil or empty list selects
// DefaultValidDiagonals.
func NewDecoder(valid []int) *Decoder {
	if len(valid) == 0 {
		valid = DefaultValidDiagonals
	}
	d := &Decoder{}
	for _, v := range valid {
		if v >= 0 && v <= diagonalMask {
			d.valid[v] = true
		}
	}
	return d
}

// IsValidDiagonal reports whether v is an accepted diagonal pattern.
func (d *Decoder) IsValidDiagonal(v int) bool {
	return v >= 0 && v <= diagonalMask && d.valid[v]
}

// ValidDiagonals returns the accepted patterns in ascending order.
func (d *Decoder) ValidDiagonals() []int {
	var out []int
	for v, ok := range d.valid {
		if ok {
			out = append(out, v)
		}
	}
	return out
}

func luminanceAt(m geom.Mat4, s framebuf.Sampler, x, y int) (int, bool) {
	p := m.Project(geom.Pt(float64(x), float64(y)))
	c, ok := s.Sample(p.X, p.Y)
	if !ok {
		return 0, false
	}
	return c.Luminance(), true
}

// Read samples the grid through m and classifies the result.
//
// The twelve diagonal cells set the dark/light threshold. Each diagonal
// row must hold exactly one dark cell; the main diagonal, read from (0,0)
// down, gives the pattern MSB first. If the same bits read LSB first form
// a valid pattern the marker is upside down and the caller should rotate
// its corners. Otherwise the 24 off-diagonal cells are read column by
// column into the code, whose checksum must equal the pattern.
func (d *Decoder) Read(m geom.Mat4, s framebuf.Sampler) Reading {
	var diagA, diagB [diagonalBits]int
	sum := 0
	for i := 0; i < diagonalBits; i++ {
		lum, ok := luminanceAt(m, s, i, i)
		if !ok {
			return Reading{Reason: ReasonOutOfFrame}
		}
		diagA[i] = lum
		sum += lum
		lum, ok = luminanceAt(m, s, diagonalBits-1-i, i)
		if !ok {
			return Reading{Reason: ReasonOutOfFrame}
		}
		diagB[i] = lum
		sum += lum
	}
	avg := sum / (2 * diagonalBits)

	diagonal, reversed := 0, 0
	for i := 0; i < diagonalBits; i++ {
		a, b := diagA[i] < avg, diagB[i] < avg
		if a == b {
			return Reading{Reason: ReasonAmbiguous}
		}
		if a {
			reversed |= 1 << i
			diagonal |= 1 << (diagonalBits - 1 - i)
		}
	}

	if d.valid[reversed] {
		return Reading{Outcome: RotateAndRetry, Diagonal: reversed}
	}
	if !d.valid[diagonal] {
		return Reading{Diagonal: diagonal, Reason: ReasonNotWhitelisted}
	}

	var code int32
	bit := 0
	for x := 0; x < l4projection.GridCells; x++ {
		for y := 0; y < l4projection.GridCells; y++ {
			if x == y || x == l4projection.GridCells-1-y {
				continue
			}
			lum, ok := luminanceAt(m, s, x, y)
			if !ok {
				return Reading{Diagonal: diagonal, Reason: ReasonOutOfFrame}
			}
			if lum < avg {
				code |= 1 << bit
			}
			bit++
		}
	}
	if Checksum(code) != diagonal {
		return Reading{Code: code, Diagonal: diagonal, Reason: ReasonChecksum}
	}
	return Reading{Outcome: Accepted, Code: code, Diagonal: diagonal}
}

// ReadCode is Read collapsed to a single value: the code when accepted,
// -1 when the corners should be rotated 180 degrees, otherwise 0.
func (d *Decoder) ReadCode(m geom.Mat4, s framebuf.Sampler) int32 {
	r := d.Read(m, s)
	switch r.Outcome {
	case Accepted:
		return r.Code
	case RotateAndRetry:
		return -1
	}
	return 0
}
