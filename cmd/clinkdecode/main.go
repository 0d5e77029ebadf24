// Command clinkdecode decodes captured frame bundles, prints the markers it
// finds and optionally records them to sqlite, renders per-frame overlays
// and writes a latency dashboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/banshee-data/clinkcode/internal/clink/capture"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l2tags"
	"github.com/banshee-data/clinkcode/internal/clink/monitor"
	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
	"github.com/banshee-data/clinkcode/internal/clink/storage/sqlite"
	"github.com/banshee-data/clinkcode/internal/config"
	"github.com/banshee-data/clinkcode/internal/fsutil"
	"github.com/banshee-data/clinkcode/internal/monitoring"
	"github.com/banshee-data/clinkcode/internal/version"
)

var (
	configPath    = flag.String("config", "", "decoder config (.json or .toml); defaults when empty")
	bundlePath    = flag.String("bundle", "", "manifest of a single frame bundle")
	bundleDir     = flag.String("dir", "", "directory of frame bundles, decoded in name order")
	aggPath       = flag.String("agg", "", "raw aggregate file (use with -image)")
	imagePath     = flag.String("image", "", "frame image (png/bmp/tiff/webp, or .raw with config geometry)")
	dbPath        = flag.String("db", "", "record detections to this sqlite database")
	overlayDir    = flag.String("overlay", "", "write a PNG overlay per frame into this directory")
	dashboardPath = flag.String("dashboard", "", "write an HTML latency dashboard to this path")
	logLevel      = flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion   = flag.Bool("version", false, "print version and exit")
)

// source is one frame to decode: a bundle manifest, or a bare
// aggregate/image pair.
type source struct {
	Manifest  string
	Aggregate string
	Image     string
}

func (s source) String() string {
	if s.Manifest != "" {
		return s.Manifest
	}
	return s.Aggregate + "+" + s.Image
}

// decodeOptions is everything one decode run needs.
type decodeOptions struct {
	Config        *config.DecoderConfig
	Sources       []source
	DBPath        string
	OverlayDir    string
	DashboardPath string
}

// collectSources turns the input flags into an ordered frame list.
func collectSources(fsys fsutil.FileSystem, bundle, dir, agg, img string) ([]source, error) {
	var out []source
	if bundle != "" {
		out = append(out, source{Manifest: bundle})
	}
	if dir != "" {
		paths, err := capture.List(fsys, dir)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no bundles in %s", dir)
		}
		for _, p := range paths {
			out = append(out, source{Manifest: p})
		}
	}
	if (agg == "") != (img == "") {
		return nil, errors.New("-agg and -image must be given together")
	}
	if agg != "" {
		out = append(out, source{Aggregate: agg, Image: img})
	}
	if len(out) == 0 {
		return nil, errors.New("nothing to decode: give -bundle, -dir or -agg/-image")
	}
	return out, nil
}

// loadFrame reads one source. Bare pairs take their layout and raw
// geometry from the config.
func loadFrame(fsys fsutil.FileSystem, cfg *config.DecoderConfig, src source, seq uint64) (pipeline.Frame, error) {
	if src.Manifest != "" {
		b, err := capture.Load(fsys, src.Manifest)
		if err != nil {
			return pipeline.Frame{}, err
		}
		f := b.Frame()
		if f.Seq == 0 {
			f.Seq = seq
		}
		return f, nil
	}

	agg, err := capture.LoadAggregate(fsys, src.Aggregate, l1grid.LayoutFromConfig(cfg))
	if err != nil {
		return pipeline.Frame{}, err
	}
	b := &capture.Bundle{Manifest: capture.Manifest{Seq: seq}, Aggregate: agg}
	if strings.EqualFold(filepath.Ext(src.Image), capture.RawExt) {
		b.Pixels, err = capture.LoadRaw(fsys, src.Image, cfg.GetFrameWidth(), cfg.GetFrameHeight(),
			cfg.GetBytesPerRow(), cfg.GetBytesPerPixel())
	} else {
		b.Pixels, _, err = capture.LoadImage(fsys, src.Image)
	}
	if err != nil {
		return pipeline.Frame{}, err
	}
	return b.Frame(), nil
}

// feed loads frames in order and hands them to the decoder. Unreadable
// frames are logged and skipped.
func feed(ctx context.Context, fsys fsutil.FileSystem, cfg *config.DecoderConfig, sources []source, in chan<- pipeline.Frame) int {
	defer close(in)
	failed := 0
	for i, src := range sources {
		f, err := loadFrame(fsys, cfg, src, uint64(i+1))
		if err != nil {
			monitoring.Logf("skipping %s: %v", src, err)
			failed++
			continue
		}
		select {
		case in <- f:
		case <-ctx.Done():
			return failed
		}
	}
	return failed
}

// printSink writes one line per marker.
func printSink(w io.Writer) pipeline.Sink {
	return pipeline.SinkFunc(func(f pipeline.Frame, res pipeline.FrameResult) error {
		if len(res.Markers) == 0 {
			_, err := fmt.Fprintf(w, "frame %d: no markers\n", f.Seq)
			return err
		}
		for _, m := range res.Markers {
			_, err := fmt.Fprintf(w, "frame %d: code=%d diagonal=%d center=(%.1f,%.1f) rotated=%t\n",
				f.Seq, m.Code, m.Diagonal, m.Center.X, m.Center.Y, m.Rotated)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// overlaySink renders one PNG per frame into dir.
func overlaySink(dir string) pipeline.Sink {
	return pipeline.SinkFunc(func(f pipeline.Frame, res pipeline.FrameResult) error {
		buf, err := f.Pixels.Lock()
		if err != nil {
			return err
		}
		w, h := buf.Width(), buf.Height()
		f.Pixels.Unlock()

		return monitor.SaveOverlay(filepath.Join(dir, fmt.Sprintf("frame-%06d.png", f.Seq)), monitor.Overlay{
			Title:   fmt.Sprintf("frame %d: %d markers", f.Seq, len(res.Markers)),
			Width:   w,
			Height:  h,
			Tags:    l2tags.Extract(f.Aggregate),
			Markers: res.Markers,
		})
	})
}

// run decodes every source and returns the worker statistics.
func run(ctx context.Context, fsys fsutil.FileSystem, opts decodeOptions, stdout io.Writer) (pipeline.Stats, error) {
	dec, err := pipeline.NewFrameDecoder(opts.Config, pipeline.Options{})
	if err != nil {
		return pipeline.Stats{}, err
	}

	sinks := []pipeline.Sink{printSink(stdout)}

	var store *sqlite.Store
	var runInfo sqlite.Run
	if opts.DBPath != "" {
		if store, err = sqlite.Open(opts.DBPath); err != nil {
			return pipeline.Stats{}, err
		}
		defer store.Close()
		cfgJSON, err := json.Marshal(opts.Config)
		if err != nil {
			return pipeline.Stats{}, fmt.Errorf("failed to marshal config: %w", err)
		}
		if runInfo, err = store.StartRun(opts.Sources[0].String(), string(cfgJSON)); err != nil {
			return pipeline.Stats{}, err
		}
		sinks = append(sinks, store.Sink(runInfo.ID))
	}

	var dash *monitor.Dashboard
	if opts.DashboardPath != "" {
		dash = monitor.NewDashboard("clinkdecode", 0)
		sinks = append(sinks, dash)
	}
	if opts.OverlayDir != "" {
		if err := os.MkdirAll(opts.OverlayDir, 0755); err != nil {
			return pipeline.Stats{}, fmt.Errorf("failed to create overlay dir: %w", err)
		}
		sinks = append(sinks, overlaySink(opts.OverlayDir))
	}

	in := make(chan pipeline.Frame, 4)
	var (
		wg     sync.WaitGroup
		failed int
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		failed = feed(ctx, fsys, opts.Config, opts.Sources, in)
	}()
	st, runErr := dec.Run(ctx, in, nil, sinks...)
	if ctx.Err() != nil {
		// Drain so the feeder can observe the cancel and close in.
		for range in {
		}
		// Run may have seen in close before the cancel.
		runErr = ctx.Err()
	}
	wg.Wait()
	if failed > 0 {
		monitoring.Logf("%d of %d frames could not be loaded", failed, len(opts.Sources))
	}

	if dash != nil {
		if err := writeDashboard(dash, opts.DashboardPath); err != nil {
			return st, err
		}
	}
	if store != nil {
		sum, err := store.Summarize(runInfo.ID)
		if err != nil {
			return st, err
		}
		monitoring.Logf("run %s: %d frames, %d markers, mean %.0fus", runInfo.ID, sum.Frames, sum.Markers, sum.MeanElapsedUs)
	}
	return st, runErr
}

func writeDashboard(d *monitor.Dashboard, path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	if err := d.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("clinkdecode %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	logger, err := monitoring.NewCharmLoggerFromString(os.Stderr, *logLevel)
	if err != nil {
		logger = monitoring.NewCharmLogger(os.Stderr, log.InfoLevel)
		logger.Warn("unknown log level, using info", "level", *logLevel)
	}
	monitoring.UseCharm(logger)

	cfg := config.DefaultDecoderConfig()
	if *configPath != "" {
		if cfg, err = config.LoadDecoderConfig(*configPath); err != nil {
			logger.Fatal("failed to load config", "err", err)
		}
	}

	fsys := fsutil.OSFileSystem{}
	sources, err := collectSources(fsys, *bundlePath, *bundleDir, *aggPath, *imagePath)
	if err != nil {
		logger.Fatal("no input", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, fsys, decodeOptions{
		Config:        cfg,
		Sources:       sources,
		DBPath:        *dbPath,
		OverlayDir:    *overlayDir,
		DashboardPath: *dashboardPath,
	}, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("decode failed", "err", err)
	}
	logger.Info("done", "frames", st.Frames, "skipped", st.Skipped, "markers", st.Markers,
		"lock_errors", st.LockErrors, "sink_errors", st.SinkErrors)
}
