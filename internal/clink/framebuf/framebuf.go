// Package framebuf provides bounds-checked read access to a locked camera
// frame. It replaces raw base-address arithmetic with a slice, a row
// stride and declared pixel dimensions.
package framebuf

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
)

// Default geometry of a 1920x1080 BGRA8 capture frame.
const (
	DefaultWidth         = 1920
	DefaultHeight        = 1080
	DefaultBytesPerPixel = 4
	DefaultStride        = DefaultWidth * DefaultBytesPerPixel
)

// ErrShortBuffer is returned when the pixel slice cannot hold the declared
// frame geometry.
var ErrShortBuffer = errors.New("framebuf: pixel slice shorter than frame geometry")

// RGB holds the first three channel bytes of a pixel.
type RGB struct {
	R, G, B uint8
}

// Luminance is the unweighted channel sum used for thresholding (0..765).
func (c RGB) Luminance() int {
	return int(c.R) + int(c.G) + int(c.B)
}

// Sampler reads a pixel at a floating-point image coordinate.
type Sampler interface {
	Sample(x, y float64) (RGB, bool)
}

// Buffer is a read-only view of one frame.
type Buffer struct {
	pix           []byte
	width         int
	height        int
	stride        int
	bytesPerPixel int
}

// New wraps pix. stride is the byte distance between rows and must cover
// width*bytesPerPixel; bytesPerPixel must be at least 3.
func New(pix []byte, width, height, stride, bytesPerPixel int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("framebuf: invalid dimensions %dx%d", width, height)
	}
	if bytesPerPixel < 3 {
		return nil, fmt.Errorf("framebuf: bytes per pixel must be >= 3, got %d", bytesPerPixel)
	}
	if stride < width*bytesPerPixel {
		return nil, fmt.Errorf("framebuf: stride %d smaller than row size %d", stride, width*bytesPerPixel)
	}
	need := (height-1)*stride + width*bytesPerPixel
	if len(pix) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(pix), need)
	}
	return &Buffer{
		pix:           pix,
		width:         width,
		height:        height,
		stride:        stride,
		bytesPerPixel: bytesPerPixel,
	}, nil
}

// Width returns the frame width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the frame height in pixels.
func (b *Buffer) Height() int { return b.height }

// Stride returns the row stride in bytes.
func (b *Buffer) Stride() int { return b.stride }

// Sample rounds (x, y) to the nearest pixel and returns its first three
// channel bytes. ok is false when the rounded pixel lies outside the frame
// or the coordinate is not a number.
func (b *Buffer) Sample(x, y float64) (RGB, bool) {
	fx, fy := math.Round(x), math.Round(y)
	if !(fx >= 0 && fx < float64(b.width) && fy >= 0 && fy < float64(b.height)) {
		return RGB{}, false
	}
	off := int(fy)*b.stride + int(fx)*b.bytesPerPixel
	p := b.pix[off : off+3 : off+3]
	return RGB{R: p[0], G: p[1], B: p[2]}, true
}

// FromImage copies img into a tightly packed 4-byte-per-pixel buffer in
// R, G, B, A order. The image origin is moved to (0, 0).
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Buffer{
		pix:           rgba.Pix,
		width:         bounds.Dx(),
		height:        bounds.Dy(),
		stride:        rgba.Stride,
		bytesPerPixel: 4,
	}
}

// Image returns an RGBA image sharing the buffer's memory when the buffer
// uses 4 bytes per pixel, or a converted copy otherwise.
func (b *Buffer) Image() *image.RGBA {
	if b.bytesPerPixel == 4 {
		return &image.RGBA{Pix: b.pix, Stride: b.stride, Rect: image.Rect(0, 0, b.width, b.height)}
	}
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			src := y*b.stride + x*b.bytesPerPixel
			dst := img.PixOffset(x, y)
			copy(img.Pix[dst:dst+3], b.pix[src:src+3])
			img.Pix[dst+3] = 0xff
		}
	}
	return img
}
