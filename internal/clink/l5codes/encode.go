package l5codes

import (
	"errors"
	"fmt"

	"github.com/banshee-data/clinkcode/internal/clink/l4projection"
)

// ErrNotEncodable is returned for codes that cannot be printed as a
// marker: out of range, with a checksum outside the accepted patterns, or
// with a checksum whose reversal is also accepted.
var ErrNotEncodable = errors.New("l5codes: code not encodable")

// Pattern is a marker's 6x6 data grid; Dark[y][x] is true for a dark cell.
type Pattern struct {
	Code     int32
	Diagonal int
	Dark     [l4projection.GridCells][l4projection.GridCells]bool
}

// Encode lays out code the way Read expects to find it: the diagonal
// pattern on the main diagonal MSB first with its complement on the
// anti-diagonal, and the code bits column by column in the remaining
// cells.
func (d *Decoder) Encode(code int32) (Pattern, error) {
	if code <= 0 || code > MaxCode {
		return Pattern{}, fmt.Errorf("%w: %d out of range 1..%d", ErrNotEncodable, code, MaxCode)
	}
	diag := Checksum(code)
	if !d.IsValidDiagonal(diag) {
		return Pattern{}, fmt.Errorf("%w: %d has checksum %d", ErrNotEncodable, code, diag)
	}
	if !d.IsEncodableDiagonal(diag) {
		return Pattern{}, fmt.Errorf("%w: %d has checksum %d, whose reversal %d is also accepted",
			ErrNotEncodable, code, diag, ReverseDiagonal(diag))
	}
	const n = l4projection.GridCells
	p := Pattern{Code: code, Diagonal: diag}
	for i := 0; i < n; i++ {
		a := diag&(1<<(n-1-i)) != 0
		p.Dark[i][i] = a
		p.Dark[i][n-1-i] = !a
	}
	bit := 0
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			if x == y || x == n-1-y {
				continue
			}
			p.Dark[y][x] = code&(1<<bit) != 0
			bit++
		}
	}
	return p, nil
}

// IsEncodableDiagonal reports whether a marker printed with diagonal v
// reads back unambiguously: v is accepted and its reversal is not. Read
// treats an accepted reversal as an upside-down marker, so a palindrome or
// a pattern listed together with its reversal never decodes.
func (d *Decoder) IsEncodableDiagonal(v int) bool {
	return d.IsValidDiagonal(v) && !d.IsValidDiagonal(ReverseDiagonal(v))
}

// NextEncodable returns the smallest encodable code >= from, or
// ErrNotEncodable if none remains.
func (d *Decoder) NextEncodable(from int32) (int32, error) {
	if from < 1 {
		from = 1
	}
	for c := from; c <= MaxCode; c++ {
		if d.IsEncodableDiagonal(Checksum(c)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: none at or above %d", ErrNotEncodable, from)
}
