// Package l3pairs owns Layer 3 (Pairs): hypothesising which same-kind
// tags are opposite corners of one marker, and which CW/CCW pairs belong
// to the same marker.
//
// Dependency rule: L3 may depend on L1-L2 and geom, never on L4+.
package l3pairs

import (
	"math"
	"sort"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
)

// DefaultThresholdDivisor divides a tag's orientation magnitude to give
// the anti-parallel acceptance threshold.
const DefaultThresholdDivisor = 1.5

// Pair is two same-kind tags hypothesised as opposite corners of one
// marker. Mismatch is the magnitude of the sum of their orientation
// vectors (0 for exactly anti-parallel tags).
type Pair struct {
	A, B     l2tags.Tag
	Mismatch float64
}

// Center returns the midpoint of the two tags.
func (p Pair) Center() geom.Point {
	return p.A.Point().Midpoint(p.B.Point())
}

// Separation returns the distance between the two tags.
func (p Pair) Separation() float64 {
	return math.Hypot(p.A.X-p.B.X, p.A.Y-p.B.Y)
}

// Compatible reports whether p and o can be the two diagonals of one
// marker: their midpoints must lie closer than half the smaller
// separation.
func (p Pair) Compatible(o Pair) bool {
	dist := p.Center().Dist(o.Center())
	return dist < math.Min(p.Separation(), o.Separation())/2.0
}

// Match is an accepted opposite-corner candidate for a given tag.
type Match struct {
	Tag      l2tags.Tag
	Mismatch float64
}

// Matcher finds opposite-corner tags.
type Matcher struct {
	// ThresholdDivisor scales the acceptance threshold; see
	// DefaultThresholdDivisor.
	ThresholdDivisor float64
}

// NewMatcher returns a Matcher, substituting the default for a
// non-positive divisor.
func NewMatcher(divisor float64) Matcher {
	if divisor <= 0 {
		divisor = DefaultThresholdDivisor
	}
	return Matcher{ThresholdDivisor: divisor}
}

// FindOpposites scans candidates[start:] for tags from a different cell
// whose orientation nearly cancels tag's. Matches are ordered by ascending
// mismatch, so callers may consume any prefix for the best matches first.
func (m Matcher) FindOpposites(tag l2tags.Tag, candidates []l2tags.Tag, start int) []Match {
	if start >= len(candidates) {
		return nil
	}
	thresh := tag.OrientHypot / m.ThresholdDivisor
	var matches []Match
	for _, c := range candidates[start:] {
		if c.CellIndex == tag.CellIndex {
			continue
		}
		mag := math.Hypot(tag.OrientX+c.OrientX, tag.OrientY+c.OrientY)
		if mag < thresh {
			matches = append(matches, Match{Tag: c, Mismatch: mag})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Mismatch < matches[j].Mismatch
	})
	return matches
}

// Generate returns every plausible opposite-corner pairing among tags of
// a single kind. Each unordered pair is considered once, with the earlier
// tag as A. For each A, pairs are ordered by ascending mismatch.
func (m Matcher) Generate(tags []l2tags.Tag) []Pair {
	var pairs []Pair
	for i, tag := range tags {
		for _, match := range m.FindOpposites(tag, tags, i+1) {
			pairs = append(pairs, Pair{A: tag, B: match.Tag, Mismatch: match.Mismatch})
		}
	}
	return pairs
}

// Candidate is a compatible CW/CCW pair combination: one marker hypothesis.
type Candidate struct {
	CW, CCW Pair
}

// CrossMatch tests every CW pair against every CCW pair and returns the
// compatible combinations in CW-major order. Both inputs are expected to
// be small, so the O(len(cw)*len(ccw)) scan is intentional.
func CrossMatch(cw, ccw []Pair) []Candidate {
	var out []Candidate
	for _, p1 := range cw {
		for _, p2 := range ccw {
			if p1.Compatible(p2) {
				out = append(out, Candidate{CW: p1, CCW: p2})
			}
		}
	}
	return out
}
