// Package l2tags owns Layer 2 (Tags): turning per-cell aggregate sums into
// normalised corner tags.
//
// Dependency rule: L2 may depend on L1 and geom only.
package l2tags

import (
	"math"
	"sort"

	"github.com/banshee-data/clinkcode/internal/clink/geom"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
)

// Tag is one corner marker recovered from a single grid cell. Tags are
// built once per qualifying cell per frame and never mutated.
type Tag struct {
	Weight      float64
	Type        l1grid.TagType
	TypeFlags   int32 // informational
	X, Y        float64
	OrientX     float64
	OrientY     float64
	OrientHypot float64
	DotSize     float64
	CellIndex   int // identity key; tags from one cell never pair
}

// Point returns the tag position in pixel space.
func (t Tag) Point() geom.Point {
	return geom.Point{X: t.X, Y: t.Y}
}

// Orientation returns the averaged orientation vector.
func (t Tag) Orientation() geom.Point {
	return geom.Point{X: t.OrientX, Y: t.OrientY}
}

// DistTo returns the Euclidean distance to o.
func (t Tag) DistTo(o Tag) float64 {
	return math.Hypot(o.X-t.X, o.Y-t.Y)
}

// PointingError walks from t along its unit orientation for the distance
// to o and returns how far the end point lands from o. Small values mean
// t's orientation points at o. A tag without orientation points nowhere
// and reports +Inf.
func (t Tag) PointingError(o Tag) float64 {
	if t.OrientHypot == 0 {
		return math.Inf(1)
	}
	dist := t.DistTo(o)
	px := t.X + dist*t.OrientX/t.OrientHypot
	py := t.Y + dist*t.OrientY/t.OrientHypot
	return math.Hypot(px-o.X, py-o.Y)
}

// ByType groups tags by kind. Within a kind, tags are in cell order.
type ByType map[l1grid.TagType][]Tag

// Count returns the total number of tags across all kinds.
func (b ByType) Count() int {
	n := 0
	for _, tags := range b {
		n += len(tags)
	}
	return n
}

// Extract emits one tag per cell whose weighted-average type is a
// recognised board or code kind. Zero-weight and unrecognised cells are
// skipped silently; cells are never merged.
func Extract(agg *l1grid.Aggregate) ByType {
	byType := make(ByType)
	numCells := agg.Layout().NumCells()
	for n := 0; n < numCells; n++ {
		c := agg.Cell(n)
		if c.TotalWeight <= 0 {
			continue
		}
		weight := float64(c.TotalWeight)
		typ := l1grid.TagType(math.Round(float64(c.TypeSum) / weight))
		if !typ.IsRecognized() {
			continue
		}
		orientX := float64(c.OrientXSum) / weight
		orientY := float64(c.OrientYSum) / weight
		byType[typ] = append(byType[typ], Tag{
			Weight:      weight,
			Type:        typ,
			TypeFlags:   c.TypeFlags,
			X:           float64(c.XSum) / weight,
			Y:           float64(c.YSum) / weight,
			OrientX:     orientX,
			OrientY:     orientY,
			OrientHypot: math.Hypot(orientX, orientY),
			DotSize:     float64(c.DotSizeSum) / weight,
			CellIndex:   n,
		})
	}
	return byType
}

// SortByWeight returns a copy of tags ordered by descending weight. Equal
// weights keep their original order.
func SortByWeight(tags []Tag) []Tag {
	out := append([]Tag(nil), tags...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	return out
}
