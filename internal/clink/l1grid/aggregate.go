package l1grid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/clinkcode/internal/config"
)

// ErrLength is returned when an aggregate slice does not match its layout.
var ErrLength = errors.New("l1grid: aggregate length does not match layout")

// Layout describes the flat aggregate buffer: NumTagTypes presence
// counters followed by ValuesPerCell-wide tuples, one per cell, row-major.
type Layout struct {
	NumTagTypes   int
	ValuesPerCell int
	DivisionsX    int
	DivisionsY    int
}

// DefaultLayout is the 16x9 grid at resolution 1.
var DefaultLayout = Layout{
	NumTagTypes:   30,
	ValuesPerCell: MinValuesPerCell,
	DivisionsX:    16,
	DivisionsY:    9,
}

// LayoutFromConfig builds the layout from a loaded decoder config.
func LayoutFromConfig(cfg *config.DecoderConfig) Layout {
	return Layout{
		NumTagTypes:   cfg.GetNumTagTypes(),
		ValuesPerCell: cfg.GetValuesPerCell(),
		DivisionsX:    cfg.GetGridDivisionsX(),
		DivisionsY:    cfg.GetGridDivisionsY(),
	}
}

// NumCells returns the number of grid cells.
func (l Layout) NumCells() int {
	return l.DivisionsX * l.DivisionsY
}

// Len returns the number of int32 values in a complete aggregate.
func (l Layout) Len() int {
	return l.NumTagTypes + l.ValuesPerCell*l.NumCells()
}

// Validate checks the layout can hold the known tag kinds and cell fields.
func (l Layout) Validate() error {
	if l.NumTagTypes < NumKnownTypes {
		return fmt.Errorf("l1grid: NumTagTypes %d < %d", l.NumTagTypes, NumKnownTypes)
	}
	if l.ValuesPerCell < MinValuesPerCell {
		return fmt.Errorf("l1grid: ValuesPerCell %d < %d", l.ValuesPerCell, MinValuesPerCell)
	}
	if l.DivisionsX <= 0 || l.DivisionsY <= 0 {
		return fmt.Errorf("l1grid: invalid grid %dx%d", l.DivisionsX, l.DivisionsY)
	}
	return nil
}

// CellIndex returns the row-major index of the cell containing pixel (x, y)
// in a frame of the given size, or -1 when (x, y) is outside the frame.
func (l Layout) CellIndex(x, y float64, frameWidth, frameHeight int) int {
	if x < 0 || y < 0 || x >= float64(frameWidth) || y >= float64(frameHeight) {
		return -1
	}
	cx := int(x * float64(l.DivisionsX) / float64(frameWidth))
	cy := int(y * float64(l.DivisionsY) / float64(frameHeight))
	return cy*l.DivisionsX + cx
}

// Aggregate is a read-only view of one frame's grid statistics. It is a
// snapshot: the producer must not write into data while it is in use.
type Aggregate struct {
	layout Layout
	data   []int32
}

// NewAggregate wraps data, which must be exactly layout.Len() long.
func NewAggregate(layout Layout, data []int32) (*Aggregate, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(data) != layout.Len() {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrLength, len(data), layout.Len())
	}
	return &Aggregate{layout: layout, data: data}, nil
}

// Layout returns the buffer layout.
func (a *Aggregate) Layout() Layout {
	return a.layout
}

// Counter returns the global presence counter for t, or 0 when t is
// outside the counter prefix.
func (a *Aggregate) Counter(t TagType) int32 {
	if t < 0 || int(t) >= a.layout.NumTagTypes {
		return 0
	}
	return a.data[t]
}

// Cell returns the sums for cell n (row-major).
func (a *Aggregate) Cell(n int) Cell {
	off := a.layout.NumTagTypes + a.layout.ValuesPerCell*n
	v := a.data[off : off+MinValuesPerCell : off+MinValuesPerCell]
	return Cell{
		TotalWeight: v[FieldTotalWeight],
		TypeFlags:   v[FieldTypeFlags],
		TypeSum:     v[FieldTypeSum],
		XSum:        v[FieldXSum],
		YSum:        v[FieldYSum],
		OrientXSum:  v[FieldOrientXSum],
		OrientYSum:  v[FieldOrientYSum],
		DotSizeSum:  v[FieldDotSizeSum],
	}
}

// Presence evaluates the counter-only gate used to skip extraction on
// frames that cannot contain a marker.
func (a *Aggregate) Presence() Presence {
	board := true
	for _, t := range BoardTypes {
		if a.Counter(t) <= 0 {
			board = false
			break
		}
	}
	return Presence{
		Board: board,
		Code:  a.Counter(Code3PartCW) > 1 && a.Counter(Code3PartCCW) > 1,
	}
}

// Values returns the underlying slice. Callers must not modify it.
func (a *Aggregate) Values() []int32 {
	return a.data
}

// ReadAggregate decodes a little-endian int32 aggregate from r.
func ReadAggregate(r io.Reader, layout Layout) (*Aggregate, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	data := make([]int32, layout.Len())
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrLength, err)
		}
		return nil, fmt.Errorf("read aggregate: %w", err)
	}
	return &Aggregate{layout: layout, data: data}, nil
}

// WriteTo encodes the aggregate as little-endian int32 values.
func (a *Aggregate) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, a.data); err != nil {
		return 0, fmt.Errorf("write aggregate: %w", err)
	}
	return int64(4 * len(a.data)), nil
}
