// Package capture saves and loads frame bundles: the grid aggregate the
// pixel classifier produced, the matching frame image, and a JSON manifest
// tying them together. Bundles let a frame be decoded again offline.
package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/banshee-data/clinkcode/internal/clink/framebuf"
	"github.com/banshee-data/clinkcode/internal/clink/l1grid"
	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
	"github.com/banshee-data/clinkcode/internal/fsutil"
	"github.com/banshee-data/clinkcode/internal/monitoring"
	"github.com/banshee-data/clinkcode/internal/security"
)

// ManifestVersion is the manifest schema written by Save.
const ManifestVersion = 1

// File suffixes of a bundle.
const (
	ManifestExt  = ".json"
	AggregateExt = ".bin"
	RawExt       = ".raw"
)

// ErrUnsupportedFormat is returned for image formats that cannot be
// written losslessly.
var ErrUnsupportedFormat = errors.New("capture: unsupported image format")

// Grid is the aggregate layout recorded in a manifest.
type Grid struct {
	DivisionsX    int `json:"divisions_x"`
	DivisionsY    int `json:"divisions_y"`
	NumTagTypes   int `json:"num_tag_types"`
	ValuesPerCell int `json:"values_per_cell"`
}

// GridOf converts a layout for the manifest.
func GridOf(l l1grid.Layout) Grid {
	return Grid{DivisionsX: l.DivisionsX, DivisionsY: l.DivisionsY, NumTagTypes: l.NumTagTypes, ValuesPerCell: l.ValuesPerCell}
}

// Layout converts back to the aggregate layout.
func (g Grid) Layout() l1grid.Layout {
	return l1grid.Layout{DivisionsX: g.DivisionsX, DivisionsY: g.DivisionsY, NumTagTypes: g.NumTagTypes, ValuesPerCell: g.ValuesPerCell}
}

// Manifest describes one bundle. File names are relative to the manifest.
type Manifest struct {
	Version   int       `json:"version"`
	Seq       uint64    `json:"seq"`
	Captured  time.Time `json:"captured"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Grid      Grid      `json:"grid"`
	Aggregate string    `json:"aggregate"`
	Image     string    `json:"image"`
	// Raw frames only.
	BytesPerRow   int `json:"bytes_per_row,omitempty"`
	BytesPerPixel int `json:"bytes_per_pixel,omitempty"`
	// Codes the frame is expected to contain, when known.
	Codes []int32 `json:"codes,omitempty"`
}

// Bundle is a loaded (or about to be saved) frame.
type Bundle struct {
	Manifest  Manifest
	Aggregate *l1grid.Aggregate
	Pixels    *framebuf.Buffer
}

// Frame wraps the bundle for pipeline.Run. The pixels are immutable once
// loaded, so no lock is needed.
func (b *Bundle) Frame() pipeline.Frame {
	return pipeline.Frame{
		Seq:       b.Manifest.Seq,
		Captured:  b.Manifest.Captured,
		Aggregate: b.Aggregate,
		Pixels:    framebuf.Static{Buf: b.Pixels},
	}
}

// LoadAggregate reads a little-endian aggregate whose size must match
// layout exactly.
func LoadAggregate(fsys fsutil.FileSystem, path string, layout l1grid.Layout) (*l1grid.Aggregate, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregate: %w", err)
	}
	if want := 4 * layout.Len(); len(data) != want {
		return nil, fmt.Errorf("%s: %w: %d bytes, want %d", path, l1grid.ErrLength, len(data), want)
	}
	return l1grid.ReadAggregate(bytes.NewReader(data), layout)
}

// LoadImage decodes a PNG, BMP, TIFF or WebP frame into a packed buffer
// and reports the detected format.
func LoadImage(fsys fsutil.FileSystem, path string) (*framebuf.Buffer, string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return framebuf.FromImage(img), format, nil
}

// LoadRaw wraps a raw pixel dump with the given geometry.
func LoadRaw(fsys fsutil.FileSystem, path string, width, height, bytesPerRow, bytesPerPixel int) (*framebuf.Buffer, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw frame: %w", err)
	}
	buf, err := framebuf.New(data, width, height, bytesPerRow, bytesPerPixel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Load reads the bundle described by the manifest at path.
func Load(fsys fsutil.FileSystem, path string) (*Bundle, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}

	dir := filepath.Dir(path)
	aggPath, err := security.ResolveWithin(dir, m.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: aggregate: %w", path, err)
	}
	imgPath, err := security.ResolveWithin(dir, m.Image)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: image: %w", path, err)
	}
	agg, err := LoadAggregate(fsys, aggPath, m.Grid.Layout())
	if err != nil {
		return nil, err
	}

	var pixels *framebuf.Buffer
	if strings.EqualFold(filepath.Ext(m.Image), RawExt) {
		pixels, err = LoadRaw(fsys, imgPath, m.Width, m.Height, m.BytesPerRow, m.BytesPerPixel)
	} else {
		pixels, _, err = LoadImage(fsys, imgPath)
	}
	if err != nil {
		return nil, err
	}
	if pixels.Width() != m.Width || pixels.Height() != m.Height {
		return nil, fmt.Errorf("%s: image is %dx%d, manifest says %dx%d",
			imgPath, pixels.Width(), pixels.Height(), m.Width, m.Height)
	}
	return &Bundle{Manifest: m, Aggregate: agg, Pixels: pixels}, nil
}

// EncodeImage writes img losslessly as "png", "bmp" or "tiff".
func EncodeImage(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Save writes b as name.bin, name.<format> and name.json under dir and
// returns the manifest path. name is sanitized first. The manifest's
// geometry and file names are filled in from the bundle.
func Save(fsys fsutil.FileSystem, dir, name, format string, b *Bundle) (string, error) {
	if b.Aggregate == nil || b.Pixels == nil {
		return "", errors.New("capture: bundle needs an aggregate and pixels")
	}
	format = strings.ToLower(format)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	name = security.SanitizeFilename(name)
	m := b.Manifest
	m.Version = ManifestVersion
	m.Width = b.Pixels.Width()
	m.Height = b.Pixels.Height()
	m.Grid = GridOf(b.Aggregate.Layout())
	m.Aggregate = name + AggregateExt
	m.Image = name + "." + format
	m.BytesPerRow, m.BytesPerPixel = 0, 0

	var img bytes.Buffer
	if err := EncodeImage(&img, b.Pixels.Image(), format); err != nil {
		return "", err
	}
	if err := fsys.WriteFile(filepath.Join(dir, m.Image), img.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	w, err := fsys.Create(filepath.Join(dir, m.Aggregate))
	if err != nil {
		return "", fmt.Errorf("failed to create aggregate: %w", err)
	}
	if _, err := b.Aggregate.WriteTo(w); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close aggregate: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(dir, name+ManifestExt)
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	monitoring.Logf("[capture] saved %s (%dx%d, %d codes)", path, m.Width, m.Height, len(m.Codes))
	return path, nil
}

// List returns the manifest paths under dir in name order.
func List(fsys fsutil.FileSystem, dir string) ([]string, error) {
	paths, err := fsys.Glob(filepath.Join(dir, "*"+ManifestExt))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return paths, nil
}
