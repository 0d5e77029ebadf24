package l1grid

import "math"

// Builder accumulates an aggregate the way the pixel classifier does:
// every classified pixel adds its weighted contribution to its cell and
// bumps the presence counter for its kind. It is used by synthetic frame
// generators and tests; the live producer runs on the GPU.
type Builder struct {
	layout Layout
	data   []int32
}

// NewBuilder returns an all-zero aggregate for layout.
func NewBuilder(layout Layout) *Builder {
	return &Builder{layout: layout, data: make([]int32, layout.Len())}
}

// AddCounter increments the presence counter for t by n.
func (b *Builder) AddCounter(t TagType, n int32) {
	if t < 0 || int(t) >= b.layout.NumTagTypes {
		return
	}
	b.data[t] += n
}

// AddSample accumulates one weighted observation of kind t into cell n.
// Position, orientation and dot size are stored as weight-scaled sums,
// rounded to the producer's integer precision.
func (b *Builder) AddSample(n int, t TagType, weight int32, x, y, orientX, orientY, dotSize float64) {
	if n < 0 || n >= b.layout.NumCells() {
		return
	}
	w := float64(weight)
	off := b.layout.NumTagTypes + b.layout.ValuesPerCell*n
	v := b.data[off : off+MinValuesPerCell]
	v[FieldTotalWeight] += weight
	v[FieldTypeFlags] |= 1 << uint(t)
	v[FieldTypeSum] += weight * int32(t)
	v[FieldXSum] += int32(math.Round(x * w))
	v[FieldYSum] += int32(math.Round(y * w))
	v[FieldOrientXSum] += int32(math.Round(orientX * w))
	v[FieldOrientYSum] += int32(math.Round(orientY * w))
	v[FieldDotSizeSum] += int32(math.Round(dotSize * w))
}

// SetCell overwrites cell n with raw sums.
func (b *Builder) SetCell(n int, c Cell) {
	off := b.layout.NumTagTypes + b.layout.ValuesPerCell*n
	v := b.data[off : off+MinValuesPerCell]
	v[FieldTotalWeight] = c.TotalWeight
	v[FieldTypeFlags] = c.TypeFlags
	v[FieldTypeSum] = c.TypeSum
	v[FieldXSum] = c.XSum
	v[FieldYSum] = c.YSum
	v[FieldOrientXSum] = c.OrientXSum
	v[FieldOrientYSum] = c.OrientYSum
	v[FieldDotSizeSum] = c.DotSizeSum
}

// Aggregate returns a snapshot of the accumulated values. Later builder
// writes do not affect the returned aggregate.
func (b *Builder) Aggregate() *Aggregate {
	snap := make([]int32, len(b.data))
	copy(snap, b.data)
	return &Aggregate{layout: b.layout, data: snap}
}
