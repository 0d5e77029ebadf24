package monitor

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
	"github.com/banshee-data/clinkcode/internal/clink/synth"
	"github.com/banshee-data/clinkcode/internal/config"
	"github.com/banshee-data/clinkcode/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func intPtr(v int) *int { return &v }

// decodedFrame renders and decodes a one-marker frame.
func decodedFrame(t *testing.T) (*synth.Frame, pipeline.FrameResult) {
	t.Helper()
	cfg := config.EmptyDecoderConfig()
	cfg.GridDivisionsX = intPtr(4)
	cfg.GridDivisionsY = intPtr(4)
	cfg.FrameWidth = intPtr(200)
	cfg.FrameHeight = intPtr(200)
	d, err := pipeline.NewFrameDecoder(cfg, pipeline.Options{})
	require.NoError(t, err)

	f, err := synth.Render(synth.Scene{
		Width: 200, Height: 200, Layout: d.Layout(),
		Markers: []synth.Placement{{Corners: synth.Square(0, 0, 100), Code: 16078166}},
	}, d.Codes())
	require.NoError(t, err)
	res := d.Decode(f.Aggregate, f.Buffer)
	require.Len(t, res.Markers, 1)
	return f, res
}

func TestWriteOverlayPNG(t *testing.T) {
	t.Parallel()
	f, res := decodedFrame(t)
	o := Overlay{
		Title:   "frame 1",
		Width:   200,
		Height:  200,
		Tags:    l2tags.Extract(f.Aggregate),
		Markers: res.Markers,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOverlay(&buf, o, "png"))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), 0)
	// Square frame, square plot.
	assert.Equal(t, b.Dx(), b.Dy())
}

func TestSaveOverlay(t *testing.T) {
	t.Parallel()
	_, res := decodedFrame(t)
	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, SaveOverlay(path, Overlay{Width: 320, Height: 240, Markers: res.Markers}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestOverlayRejectsEmptyFrame(t *testing.T) {
	t.Parallel()
	_, err := NewOverlayPlot(Overlay{Width: 0, Height: 100})
	assert.Error(t, err)
	assert.Error(t, WriteOverlay(&bytes.Buffer{}, Overlay{Width: 10, Height: -1}, "png"))
}

func TestOverlayUnknownFormat(t *testing.T) {
	t.Parallel()
	err := WriteOverlay(&bytes.Buffer{}, Overlay{Width: 10, Height: 10}, "bogus")
	assert.Error(t, err)
}

func TestMarkerOutlineAndCrosshair(t *testing.T) {
	t.Parallel()
	_, res := decodedFrame(t)
	m := res.Markers[0]

	pts := markerOutline(m)
	require.Len(t, pts, 5)
	assert.Equal(t, pts[0], pts[4], "outline is closed")
	assert.Equal(t, m.BottomRight.X, pts[2].X)
	assert.Equal(t, m.BottomRight.Y, pts[2].Y)

	arms := crosshair(m.Center)
	assert.InDelta(t, m.Center.X-crosshairHalf, arms[0][0].X, 1e-9)
	assert.InDelta(t, m.Center.Y+crosshairHalf, arms[1][1].Y, 1e-9)
}

func TestGenerateColors(t *testing.T) {
	t.Parallel()
	assert.Nil(t, generateColors(0))
	colors := generateColors(l1grid.NumKnownTypes)
	require.Len(t, colors, l1grid.NumKnownTypes)
	seen := make(map[color.Color]bool)
	for _, c := range colors {
		assert.False(t, seen[c], "duplicate colour %v", c)
		seen[c] = true
	}

	r, g, b := hslToRGB(0, 0, 0.5)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestDashboardConsumeAndLimit(t *testing.T) {
	t.Parallel()
	_, res := decodedFrame(t)
	d := NewDashboard("clink", 2)

	for seq := uint64(1); seq <= 3; seq++ {
		r := res
		r.Elapsed = time.Duration(seq) * time.Millisecond
		require.NoError(t, d.Consume(pipeline.Frame{Seq: seq}, r))
	}
	samples := d.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(2), samples[0].Seq)
	assert.Equal(t, uint64(3), samples[1].Seq)
	assert.InDelta(t, 3.0, samples[1].ElapsedMs, 1e-9)
	assert.Equal(t, 1, samples[1].Markers)
	assert.Equal(t, []int32{16078166}, samples[1].Codes)
	assert.InDelta(t, 50, samples[1].CentersX[0], 1e-6)
}

func TestDashboardRender(t *testing.T) {
	t.Parallel()
	_, res := decodedFrame(t)
	d := NewDashboard("clink run", 0)
	require.NoError(t, d.Consume(pipeline.Frame{Seq: 1}, res))
	require.NoError(t, d.Consume(pipeline.Frame{Seq: 2}, pipeline.FrameResult{Skipped: true}))

	var buf bytes.Buffer
	require.NoError(t, d.Render(&buf))
	html := buf.String()
	assert.True(t, strings.Contains(html, "Decode latency"))
	assert.True(t, strings.Contains(html, "Markers per frame"))
	assert.True(t, strings.Contains(html, "echarts"))
}

func TestDashboardRenderEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, NewDashboard("empty", 0).Render(&buf))
	assert.NotZero(t, buf.Len())
}

func TestDashboardIsSink(t *testing.T) {
	t.Parallel()
	var _ pipeline.Sink = NewDashboard("sink", 0)
}
