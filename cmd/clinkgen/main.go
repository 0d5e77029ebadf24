// Command clinkgen renders synthetic frame bundles containing encoded
// markers, for exercising clinkdecode without a camera.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/banshee-data/clinkcode/internal/clink/capture"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/l5codes"
	"github.com/banshee-data/clinkcode/internal/clink/synth"
	"github.com/banshee-data/clinkcode/internal/config"
	"github.com/banshee-data/clinkcode/internal/fsutil"
	"github.com/banshee-data/clinkcode/internal/monitoring"
	"github.com/banshee-data/clinkcode/internal/version"
)

var (
	outDir      = flag.String("o", "frames", "output directory")
	configPath  = flag.String("config", "", "decoder config (.json or .toml); defaults when empty")
	codesFlag   = flag.String("codes", "16078166", "comma-separated marker codes")
	snap        = flag.Bool("snap", false, "replace unencodable codes with the next encodable one")
	frames      = flag.Int("n", 1, "number of frames")
	size        = flag.Float64("size", 240, "marker size in pixels (tag to tag)")
	step        = flag.Float64("step", 4, "horizontal drift per frame in pixels")
	board       = flag.Bool("board", false, "add calibration-board tags")
	format      = flag.String("format", "png", "image format: png, bmp or tiff")
	logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "print version and exit")
)

// genOptions is everything one generation run needs.
type genOptions struct {
	Dir    string
	Config *config.DecoderConfig
	Codes  []int32
	Snap   bool
	Frames int
	Size   float64
	Step   float64
	Board  bool
	Format string
	Start  time.Time
}

func parseCodes(s string) ([]int32, error) {
	var codes []int32
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid code %q: %w", field, err)
		}
		codes = append(codes, int32(v))
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no codes given")
	}
	return codes, nil
}

// resolveCodes checks every code is encodable, snapping upward when asked.
func resolveCodes(dec *l5codes.Decoder, codes []int32, snapUp bool) ([]int32, error) {
	out := make([]int32, len(codes))
	for i, c := range codes {
		_, err := dec.Encode(c)
		if err == nil {
			out[i] = c
			continue
		}
		if !snapUp {
			return nil, fmt.Errorf("code %d: %w", c, err)
		}
		next, err := dec.NextEncodable(c)
		if err != nil {
			return nil, fmt.Errorf("code %d: %w", c, err)
		}
		monitoring.Logf("code %d is not encodable, using %d", c, next)
		out[i] = next
	}
	return out, nil
}

// layoutScene places the markers in a row, spaced by half a marker, and
// drifts the row right by drift pixels.
func layoutScene(width, height int, layout l1grid.Layout, codes []int32, markerSize, drift float64, withBoard bool) (synth.Scene, error) {
	gap := markerSize / 2
	rowWidth := float64(len(codes))*markerSize + float64(len(codes)-1)*gap
	inset := float64(min(width, height)) / 10
	x0 := inset + drift
	y0 := (float64(height) - markerSize) / 2
	if x0+rowWidth > float64(width)-inset || y0 < inset {
		return synth.Scene{}, fmt.Errorf("%d markers of %.0fpx do not fit a %dx%d frame", len(codes), markerSize, width, height)
	}
	s := synth.Scene{Width: width, Height: height, Layout: layout, Board: withBoard}
	for i, c := range codes {
		x := x0 + float64(i)*(markerSize+gap)
		s.Markers = append(s.Markers, synth.Placement{Corners: synth.Square(x, y0, markerSize), Code: c})
	}
	return s, nil
}

// generate writes opts.Frames bundles and returns their manifest paths.
func generate(fsys fsutil.FileSystem, opts genOptions) ([]string, error) {
	cfg := opts.Config
	dec := l5codes.NewDecoder(cfg.GetValidDiagonals())
	codes, err := resolveCodes(dec, opts.Codes, opts.Snap)
	if err != nil {
		return nil, err
	}
	layout := l1grid.LayoutFromConfig(cfg)

	var paths []string
	for i := 0; i < opts.Frames; i++ {
		scene, err := layoutScene(cfg.GetFrameWidth(), cfg.GetFrameHeight(), layout, codes, opts.Size, float64(i)*opts.Step, opts.Board)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		f, err := synth.Render(scene, dec)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		seq := uint64(i + 1)
		b := &capture.Bundle{
			Manifest: capture.Manifest{
				Seq:      seq,
				Captured: opts.Start.Add(time.Duration(i) * time.Second / 30),
				Codes:    codes,
			},
			Aggregate: f.Aggregate,
			Pixels:    f.Buffer,
		}
		path, err := capture.Save(fsys, opts.Dir, fmt.Sprintf("frame-%06d", seq), opts.Format, b)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func newLogger(w io.Writer) *log.Logger {
	logger, err := monitoring.NewCharmLoggerFromString(w, *logLevel)
	if err != nil {
		logger = monitoring.NewCharmLogger(w, log.InfoLevel)
		logger.Warn("unknown log level, using info", "level", *logLevel)
	}
	monitoring.UseCharm(logger)
	return logger
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("clinkgen %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	logger := newLogger(os.Stderr)

	cfg := config.DefaultDecoderConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadDecoderConfig(*configPath); err != nil {
			logger.Fatal("failed to load config", "err", err)
		}
	}
	codes, err := parseCodes(*codesFlag)
	if err != nil {
		logger.Fatal("bad -codes", "err", err)
	}

	paths, err := generate(fsutil.OSFileSystem{}, genOptions{
		Dir:    *outDir,
		Config: cfg,
		Codes:  codes,
		Snap:   *snap,
		Frames: *frames,
		Size:   *size,
		Step:   *step,
		Board:  *board,
		Format: *format,
		Start:  time.Now(),
	})
	if err != nil {
		logger.Fatal("generation failed", "err", err)
	}
	logger.Info("wrote bundles", "frames", len(paths), "dir", *outDir)
}
