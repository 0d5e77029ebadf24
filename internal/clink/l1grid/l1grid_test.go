package l1grid

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clinkcode/internal/config"
)

func TestTagTypeClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		t     TagType
		board bool
		code  bool
	}{
		{Board3PartCW, true, false},
		{Code3PartCW, false, true},
		{Board3PartCCW, true, false},
		{Code3PartCCW, false, true},
		{Board4PartRR, true, false},
		{Marker4PartYY, false, false},
		{Board4PartBB, true, false},
		{TagType(7), false, false},
		{TagType(-1), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.t.String(), func(t *testing.T) {
			assert.Equal(t, tt.board, tt.t.IsBoard())
			assert.Equal(t, tt.code, tt.t.IsCode())
			assert.Equal(t, tt.board || tt.code, tt.t.IsRecognized())
		})
	}
}

func TestDefaultLayoutMatchesConfig(t *testing.T) {
	t.Parallel()
	l := LayoutFromConfig(config.EmptyDecoderConfig())
	assert.Equal(t, DefaultLayout, l)
	assert.Equal(t, 144, l.NumCells())
	assert.Equal(t, 30+8*144, l.Len())
	assert.NoError(t, l.Validate())
}

func TestLayoutValidate(t *testing.T) {
	t.Parallel()
	assert.Error(t, Layout{NumTagTypes: 5, ValuesPerCell: 8, DivisionsX: 1, DivisionsY: 1}.Validate())
	assert.Error(t, Layout{NumTagTypes: 30, ValuesPerCell: 7, DivisionsX: 1, DivisionsY: 1}.Validate())
	assert.Error(t, Layout{NumTagTypes: 30, ValuesPerCell: 8, DivisionsX: 0, DivisionsY: 1}.Validate())
}

func TestCellIndex(t *testing.T) {
	t.Parallel()
	l := Layout{NumTagTypes: 30, ValuesPerCell: 8, DivisionsX: 4, DivisionsY: 4}
	assert.Equal(t, 0, l.CellIndex(0, 0, 200, 200))
	assert.Equal(t, 2, l.CellIndex(100, 0, 200, 200))
	assert.Equal(t, 8, l.CellIndex(0, 100, 200, 200))
	assert.Equal(t, 10, l.CellIndex(100, 100, 200, 200))
	assert.Equal(t, 15, l.CellIndex(199.9, 199.9, 200, 200))
	assert.Equal(t, -1, l.CellIndex(200, 0, 200, 200))
	assert.Equal(t, -1, l.CellIndex(-1, 0, 200, 200))
}

func TestNewAggregateLength(t *testing.T) {
	t.Parallel()
	_, err := NewAggregate(DefaultLayout, make([]int32, 10))
	assert.True(t, errors.Is(err, ErrLength))

	agg, err := NewAggregate(DefaultLayout, make([]int32, DefaultLayout.Len()))
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout, agg.Layout())
	assert.Equal(t, int32(0), agg.Counter(TagType(99)), "out-of-range counter reads as zero")
}

func TestCellFieldOrder(t *testing.T) {
	t.Parallel()
	l := Layout{NumTagTypes: 30, ValuesPerCell: 8, DivisionsX: 2, DivisionsY: 1}
	data := make([]int32, l.Len())
	copy(data[30+8:], []int32{1, 2, 3, 4, 5, 6, 7, 8})
	agg, err := NewAggregate(l, data)
	require.NoError(t, err)

	want := Cell{TotalWeight: 1, TypeFlags: 2, TypeSum: 3, XSum: 4, YSum: 5, OrientXSum: 6, OrientYSum: 7, DotSizeSum: 8}
	if diff := cmp.Diff(want, agg.Cell(1)); diff != "" {
		t.Fatalf("Cell(1) mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Cell{}, agg.Cell(0))
}

func TestWiderCellsAreSkippedCorrectly(t *testing.T) {
	t.Parallel()
	l := Layout{NumTagTypes: 7, ValuesPerCell: 10, DivisionsX: 2, DivisionsY: 1}
	b := NewBuilder(l)
	b.SetCell(1, Cell{TotalWeight: 9, XSum: 42})
	agg := b.Aggregate()
	assert.Equal(t, int32(9), agg.Cell(1).TotalWeight)
	assert.Equal(t, int32(42), agg.Cell(1).XSum)
	assert.Equal(t, int32(42), agg.Values()[7+10+FieldXSum])
}

func TestPresence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		counters map[TagType]int32
		want     Presence
	}{
		{"all zero", nil, Presence{}},
		{"one code pair each", map[TagType]int32{Code3PartCW: 1, Code3PartCCW: 1}, Presence{}},
		{"two code tags each", map[TagType]int32{Code3PartCW: 2, Code3PartCCW: 2}, Presence{Code: true}},
		{"cw only", map[TagType]int32{Code3PartCW: 5}, Presence{}},
		{"board complete", map[TagType]int32{Board3PartCW: 1, Board3PartCCW: 1, Board4PartRR: 1, Board4PartBB: 1}, Presence{Board: true}},
		{"board missing bb", map[TagType]int32{Board3PartCW: 1, Board3PartCCW: 1, Board4PartRR: 1}, Presence{}},
		{"both", map[TagType]int32{Board3PartCW: 1, Board3PartCCW: 1, Board4PartRR: 1, Board4PartBB: 1, Code3PartCW: 3, Code3PartCCW: 2}, Presence{Board: true, Code: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(DefaultLayout)
			for k, v := range tt.counters {
				b.AddCounter(k, v)
			}
			got := b.Aggregate().Presence()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Board || tt.want.Code, got.Any())
		})
	}
}

func TestBuilderAddSample(t *testing.T) {
	t.Parallel()
	b := NewBuilder(DefaultLayout)
	b.AddSample(3, Code3PartCCW, 10, 12.5, 7.25, 0, -8, 3)
	b.AddSample(3, Code3PartCCW, 10, 12.5, 7.25, 0, -8, 3)
	b.AddSample(-1, Code3PartCCW, 10, 0, 0, 0, 0, 0)
	b.AddSample(DefaultLayout.NumCells(), Code3PartCCW, 10, 0, 0, 0, 0, 0)
	agg := b.Aggregate()

	c := agg.Cell(3)
	assert.Equal(t, int32(20), c.TotalWeight)
	assert.Equal(t, int32(1<<3), c.TypeFlags)
	assert.Equal(t, int32(60), c.TypeSum)
	assert.Equal(t, int32(250), c.XSum)
	assert.Equal(t, int32(146), c.YSum) // 72.5 rounds away from zero
	assert.Equal(t, int32(-160), c.OrientYSum)
	assert.Equal(t, int32(60), c.DotSizeSum)

	// Snapshot isolation.
	b.AddSample(3, Code3PartCCW, 10, 0, 0, 0, 0, 0)
	assert.Equal(t, int32(20), agg.Cell(3).TotalWeight)
}

func TestAggregateBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	b := NewBuilder(DefaultLayout)
	b.AddCounter(Code3PartCW, 2)
	b.AddSample(17, Code3PartCW, 7, 300, 200, -3, 4, 2)
	agg := b.Aggregate()

	var buf bytes.Buffer
	n, err := agg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4*DefaultLayout.Len()), n)

	back, err := ReadAggregate(&buf, DefaultLayout)
	require.NoError(t, err)
	if diff := cmp.Diff(agg.Values(), back.Values()); diff != "" {
		t.Fatalf("round trip mismatch:\n%s", diff)
	}

	_, err = ReadAggregate(bytes.NewReader(make([]byte, 12)), DefaultLayout)
	assert.ErrorIs(t, err, ErrLength)
}
