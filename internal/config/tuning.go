package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the path to the canonical decoder defaults file.
// The producer (pixel classifier) must be built from the same values.
const DefaultConfigPath = "config/clinkcode.defaults.json"

// DefaultValidDiagonals are the 6-bit diagonal patterns a marker may carry.
var DefaultValidDiagonals = []int{28, 23, 49, 19, 52, 46, 13, 59}

// DecoderConfig represents the root configuration for the marker decoder.
// Every field is optional; the Get* methods supply defaults. A loaded
// config is treated as immutable and passed explicitly to constructors.
type DecoderConfig struct {
	// Grid aggregate layout (must match the producer)
	GridResolution *int `json:"grid_resolution,omitempty" toml:"grid_resolution"`
	GridDivisionsX *int `json:"grid_divisions_x,omitempty" toml:"grid_divisions_x"` // before resolution scaling
	GridDivisionsY *int `json:"grid_divisions_y,omitempty" toml:"grid_divisions_y"`
	NumTagTypes    *int `json:"num_tag_types,omitempty" toml:"num_tag_types"`
	ValuesPerCell  *int `json:"values_per_cell,omitempty" toml:"values_per_cell"`

	// Frame geometry
	FrameWidth    *int `json:"frame_width,omitempty" toml:"frame_width"`
	FrameHeight   *int `json:"frame_height,omitempty" toml:"frame_height"`
	BytesPerRow   *int `json:"bytes_per_row,omitempty" toml:"bytes_per_row"`
	BytesPerPixel *int `json:"bytes_per_pixel,omitempty" toml:"bytes_per_pixel"`

	// Pairing and validation
	PairingThresholdDivisor *float64 `json:"pairing_threshold_divisor,omitempty" toml:"pairing_threshold_divisor"`
	ValidDiagonals          []int    `json:"valid_diagonals,omitempty" toml:"valid_diagonals"`

	// Output
	DedupeMarkers   *bool `json:"dedupe_markers,omitempty" toml:"dedupe_markers"`
	TraceRejections *bool `json:"trace_rejections,omitempty" toml:"trace_rejections"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDecoderConfig returns a DecoderConfig with all fields set to nil.
func EmptyDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// DefaultDecoderConfig returns a DecoderConfig with every field populated
// with its default value.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		GridResolution:          ptrInt(1),
		GridDivisionsX:          ptrInt(16),
		GridDivisionsY:          ptrInt(9),
		NumTagTypes:             ptrInt(30),
		ValuesPerCell:           ptrInt(8),
		FrameWidth:              ptrInt(1920),
		FrameHeight:             ptrInt(1080),
		BytesPerRow:             ptrInt(7680),
		BytesPerPixel:           ptrInt(4),
		PairingThresholdDivisor: ptrFloat64(1.5),
		ValidDiagonals:          append([]int(nil), DefaultValidDiagonals...),
		DedupeMarkers:           ptrBool(true),
		TraceRejections:         ptrBool(false),
	}
}

// LoadDecoderConfig loads a DecoderConfig from a .json or .toml file.
// Fields omitted from the file retain their defaults via the Get* methods,
// so partial configs are safe.
func LoadDecoderConfig(path string) (*DecoderConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDecoderConfig()
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent
// directories. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *DecoderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/clink/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/clink/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadDecoderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DecoderConfig) Validate() error {
	positive := []struct {
		name string
		v    *int
	}{
		{"grid_resolution", c.GridResolution},
		{"grid_divisions_x", c.GridDivisionsX},
		{"grid_divisions_y", c.GridDivisionsY},
		{"num_tag_types", c.NumTagTypes},
		{"frame_width", c.FrameWidth},
		{"frame_height", c.FrameHeight},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	// The tag enumeration indexes the presence counters.
	if c.NumTagTypes != nil && *c.NumTagTypes < 7 {
		return fmt.Errorf("num_tag_types must be at least 7, got %d", *c.NumTagTypes)
	}
	if c.ValuesPerCell != nil && *c.ValuesPerCell < 8 {
		return fmt.Errorf("values_per_cell must be at least 8, got %d", *c.ValuesPerCell)
	}
	if c.BytesPerPixel != nil && *c.BytesPerPixel < 3 {
		return fmt.Errorf("bytes_per_pixel must be at least 3, got %d", *c.BytesPerPixel)
	}
	if c.GetBytesPerRow() < c.GetFrameWidth()*c.GetBytesPerPixel() {
		return fmt.Errorf("bytes_per_row %d smaller than frame_width*bytes_per_pixel %d",
			c.GetBytesPerRow(), c.GetFrameWidth()*c.GetBytesPerPixel())
	}
	if c.PairingThresholdDivisor != nil && *c.PairingThresholdDivisor <= 0 {
		return fmt.Errorf("pairing_threshold_divisor must be positive, got %f", *c.PairingThresholdDivisor)
	}
	if c.ValidDiagonals != nil {
		if len(c.ValidDiagonals) == 0 {
			return fmt.Errorf("valid_diagonals must not be empty")
		}
		seen := make(map[int]bool, len(c.ValidDiagonals))
		for _, d := range c.ValidDiagonals {
			if d <= 0 || d >= 64 {
				return fmt.Errorf("valid_diagonals entries must be 6-bit non-zero values, got %d", d)
			}
			seen[d] = true
		}
		// A marker turned upside down reads its diagonal reversed, so an
		// entry whose reversal is also listed can never be told apart.
		for _, d := range c.ValidDiagonals {
			r := reverseDiagonal(d)
			if r == d {
				return fmt.Errorf("valid_diagonals entry %d reads the same reversed", d)
			}
			if seen[r] {
				return fmt.Errorf("valid_diagonals entries %d and %d are reversals of each other", d, r)
			}
		}
	}
	return nil
}

// reverseDiagonal returns the 6-bit pattern d read from the other end.
func reverseDiagonal(d int) int {
	r := 0
	for i := 0; i < 6; i++ {
		if d&(1<<i) != 0 {
			r |= 1 << (5 - i)
		}
	}
	return r
}

// GetGridResolution returns the grid_resolution value or the default.
func (c *DecoderConfig) GetGridResolution() int {
	if c.GridResolution == nil {
		return 1
	}
	return *c.GridResolution
}

// GetGridDivisionsX returns the horizontal cell count after resolution scaling.
func (c *DecoderConfig) GetGridDivisionsX() int {
	if c.GridDivisionsX == nil {
		return 16 * c.GetGridResolution()
	}
	return *c.GridDivisionsX * c.GetGridResolution()
}

// GetGridDivisionsY returns the vertical cell count after resolution scaling.
func (c *DecoderConfig) GetGridDivisionsY() int {
	if c.GridDivisionsY == nil {
		return 9 * c.GetGridResolution()
	}
	return *c.GridDivisionsY * c.GetGridResolution()
}

// GetNumTagTypes returns the num_tag_types value or the default.
func (c *DecoderConfig) GetNumTagTypes() int {
	if c.NumTagTypes == nil {
		return 30
	}
	return *c.NumTagTypes
}

// GetValuesPerCell returns the values_per_cell value or the default.
func (c *DecoderConfig) GetValuesPerCell() int {
	if c.ValuesPerCell == nil {
		return 8
	}
	return *c.ValuesPerCell
}

// GetFrameWidth returns the frame_width value or the default.
func (c *DecoderConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1920
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *DecoderConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 1080
	}
	return *c.FrameHeight
}

// GetBytesPerPixel returns the bytes_per_pixel value or the default.
func (c *DecoderConfig) GetBytesPerPixel() int {
	if c.BytesPerPixel == nil {
		return 4
	}
	return *c.BytesPerPixel
}

// GetBytesPerRow returns the bytes_per_row value, defaulting to a tightly
// packed row.
func (c *DecoderConfig) GetBytesPerRow() int {
	if c.BytesPerRow == nil {
		return c.GetFrameWidth() * c.GetBytesPerPixel()
	}
	return *c.BytesPerRow
}

// GetPairingThresholdDivisor returns the pairing_threshold_divisor value or the default.
func (c *DecoderConfig) GetPairingThresholdDivisor() float64 {
	if c.PairingThresholdDivisor == nil {
		return 1.5
	}
	return *c.PairingThresholdDivisor
}

// GetValidDiagonals returns a copy of the diagonal whitelist.
func (c *DecoderConfig) GetValidDiagonals() []int {
	if c.ValidDiagonals == nil {
		return append([]int(nil), DefaultValidDiagonals...)
	}
	return append([]int(nil), c.ValidDiagonals...)
}

// GetDedupeMarkers returns the dedupe_markers value or the default.
func (c *DecoderConfig) GetDedupeMarkers() bool {
	if c.DedupeMarkers == nil {
		return true
	}
	return *c.DedupeMarkers
}

// GetTraceRejections returns the trace_rejections value or the default.
func (c *DecoderConfig) GetTraceRejections() bool {
	if c.TraceRejections == nil {
		return false
	}
	return *c.TraceRejections
}
