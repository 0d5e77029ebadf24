package l1grid

import "fmt"

// TagType is the corner-marker kind assigned by the pixel classifier.
// Values index the global presence counters at the head of the aggregate.
type TagType int

// Corner-marker kinds. The numbering is shared with the producer.
const (
	Board3PartCW  TagType = 0
	Code3PartCW   TagType = 1
	Board3PartCCW TagType = 2
	Code3PartCCW  TagType = 3
	Board4PartRR  TagType = 4
	Marker4PartYY TagType = 5
	Board4PartBB  TagType = 6
)

// NumKnownTypes is the number of enumerated corner-marker kinds.
const NumKnownTypes = 7

// BoardTypes are the corner kinds of the large calibration board.
var BoardTypes = [4]TagType{Board3PartCW, Board3PartCCW, Board4PartRR, Board4PartBB}

// IsBoard reports whether t is one of the four board corner kinds.
func (t TagType) IsBoard() bool {
	switch t {
	case Board3PartCW, Board3PartCCW, Board4PartBB, Board4PartRR:
		return true
	default:
		return false
	}
}

// IsCode reports whether t is one of the two per-marker corner kinds.
func (t TagType) IsCode() bool {
	switch t {
	case Code3PartCW, Code3PartCCW:
		return true
	default:
		return false
	}
}

// IsRecognized reports whether tags of kind t are extracted.
func (t TagType) IsRecognized() bool {
	return t.IsBoard() || t.IsCode()
}

func (t TagType) String() string {
	switch t {
	case Board3PartCW:
		return "board-3part-cw"
	case Code3PartCW:
		return "code-3part-cw"
	case Board3PartCCW:
		return "board-3part-ccw"
	case Code3PartCCW:
		return "code-3part-ccw"
	case Board4PartRR:
		return "board-4part-rr"
	case Marker4PartYY:
		return "marker-4part-yy"
	case Board4PartBB:
		return "board-4part-bb"
	default:
		return fmt.Sprintf("tagtype(%d)", int(t))
	}
}

// Per-cell field offsets within a ValuesPerCell-wide tuple.
const (
	FieldTotalWeight = iota
	FieldTypeFlags
	FieldTypeSum
	FieldXSum
	FieldYSum
	FieldOrientXSum
	FieldOrientYSum
	FieldDotSizeSum

	// MinValuesPerCell is the number of fields the decoder reads per cell.
	MinValuesPerCell
)

// Cell is one grid cell's accumulated sums. All sums are weighted by the
// classifier's per-pixel weight; divide by TotalWeight for averages.
type Cell struct {
	TotalWeight int32
	TypeFlags   int32
	TypeSum     int32
	XSum        int32
	YSum        int32
	OrientXSum  int32
	OrientYSum  int32
	DotSizeSum  int32
}

// Presence is the result of the cheap counter-only gate.
type Presence struct {
	Board bool // all four board counters > 0
	Code  bool // CW and CCW code counters each > 1
}

// Any reports whether either marker family may be present.
func (p Presence) Any() bool {
	return p.Board || p.Code
}
