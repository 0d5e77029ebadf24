package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clinkcode/internal/clink/capture"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
	"github.com/banshee-data/clinkcode/internal/clink/storage/sqlite"
	"github.com/banshee-data/clinkcode/internal/clink/synth"
	"github.com/banshee-data/clinkcode/internal/config"
	"github.com/banshee-data/clinkcode/internal/fsutil"
	"github.com/banshee-data/clinkcode/internal/monitoring"
)

const testCode = 16078166

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func intPtr(v int) *int { return &v }

func testConfig() *config.DecoderConfig {
	cfg := config.EmptyDecoderConfig()
	cfg.GridDivisionsX = intPtr(4)
	cfg.GridDivisionsY = intPtr(4)
	cfg.FrameWidth = intPtr(200)
	cfg.FrameHeight = intPtr(200)
	return cfg
}

// writeBundles saves one frame with a marker and one empty frame.
func writeBundles(t *testing.T, fsys fsutil.FileSystem, dir string) *synth.Frame {
	t.Helper()
	cfg := testConfig()
	layout := l1grid.LayoutFromConfig(cfg)
	d, err := pipeline.NewFrameDecoder(cfg, pipeline.Options{})
	require.NoError(t, err)

	marked, err := synth.Render(synth.Scene{
		Width: 200, Height: 200, Layout: layout,
		Markers: []synth.Placement{{Corners: synth.Square(0, 0, 100), Code: testCode}},
	}, d.Codes())
	require.NoError(t, err)
	empty, err := synth.Render(synth.Scene{Width: 200, Height: 200, Layout: layout}, d.Codes())
	require.NoError(t, err)

	for i, f := range []*synth.Frame{marked, empty} {
		_, err := capture.Save(fsys, dir, []string{"a", "b"}[i], "png", &capture.Bundle{
			Manifest:  capture.Manifest{Seq: uint64(i + 1)},
			Aggregate: f.Aggregate,
			Pixels:    f.Buffer,
		})
		require.NoError(t, err)
	}
	return marked
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "info", *logLevel)
	assert.Empty(t, *dbPath)
	assert.False(t, *showVersion)
}

func TestCollectSources(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeBundles(t, mfs, "/run")

	got, err := collectSources(mfs, "/one.json", "/run", "/f.bin", "/f.png")
	require.NoError(t, err)
	assert.Equal(t, []source{
		{Manifest: "/one.json"},
		{Manifest: "/run/a.json"},
		{Manifest: "/run/b.json"},
		{Aggregate: "/f.bin", Image: "/f.png"},
	}, got)
	assert.Equal(t, "/f.bin+/f.png", got[3].String())

	_, err = collectSources(mfs, "", "", "", "")
	assert.Error(t, err)
	_, err = collectSources(mfs, "", "", "/f.bin", "")
	assert.Error(t, err)
	_, err = collectSources(mfs, "", "/empty", "", "")
	assert.Error(t, err)
}

func TestLoadFrameFromPair(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	f := writeBundles(t, mfs, "/run")

	var agg bytes.Buffer
	_, err := f.Aggregate.WriteTo(&agg)
	require.NoError(t, err)
	require.NoError(t, mfs.WriteFile("/pair.bin", agg.Bytes(), 0644))
	png, err := mfs.ReadFile("/run/a.png")
	require.NoError(t, err)
	require.NoError(t, mfs.WriteFile("/pair.png", png, 0644))

	frame, err := loadFrame(mfs, testConfig(), source{Aggregate: "/pair.bin", Image: "/pair.png"}, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), frame.Seq)

	d, err := pipeline.NewFrameDecoder(testConfig(), pipeline.Options{})
	require.NoError(t, err)
	res, err := d.DecodeLocked(frame.Aggregate, frame.Pixels)
	require.NoError(t, err)
	assert.Equal(t, []int32{testCode}, res.Codes())

	_, err = loadFrame(mfs, testConfig(), source{Aggregate: "/pair.bin", Image: "/missing.png"}, 1)
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeBundles(t, mfs, "/run")
	tmp := t.TempDir()

	sources, err := collectSources(mfs, "", "/run", "", "")
	require.NoError(t, err)
	sources = append(sources, source{Manifest: "/run/missing.json"})

	opts := decodeOptions{
		Config:        testConfig(),
		Sources:       sources,
		DBPath:        filepath.Join(tmp, "clink.db"),
		OverlayDir:    filepath.Join(tmp, "overlay"),
		DashboardPath: filepath.Join(tmp, "dash.html"),
	}
	var out bytes.Buffer
	st, err := run(context.Background(), mfs, opts, &out)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Stats{Frames: 2, Skipped: 1, Markers: 1}, st)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "frame 1: code=16078166 diagonal=28 center=(50.0,50.0) rotated=false", lines[0])
	assert.Equal(t, "frame 2: no markers", lines[1])

	for _, name := range []string{"frame-000001.png", "frame-000002.png"} {
		_, err := os.Stat(filepath.Join(opts.OverlayDir, name))
		assert.NoError(t, err, name)
	}
	html, err := os.ReadFile(opts.DashboardPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Decode latency")

	store, err := sqlite.Open(opts.DBPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "/run/a.json", runs[0].Source)
	assert.Contains(t, runs[0].ConfigJSON, `"grid_divisions_x":4`)
	dets, err := store.ListDetections(runs[0].ID)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, int32(testCode), dets[0].Code)
	assert.Equal(t, uint64(1), dets[0].Seq)
}

func TestRunCancelled(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	writeBundles(t, mfs, "/run")
	sources, err := collectSources(mfs, "", "/run", "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = run(ctx, mfs, decodeOptions{Config: testConfig(), Sources: sources}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ValuesPerCell = intPtr(2)
	_, err := run(context.Background(), fsutil.NewMemoryFileSystem(),
		decodeOptions{Config: cfg, Sources: []source{{Manifest: "/x.json"}}}, &bytes.Buffer{})
	assert.Error(t, err)
}
