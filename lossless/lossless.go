/*
Package lossless implements a decoder and encoder for the lossless bitmap
format found in SWF DefineBitsLossless records.

A payload starts with a 5 byte header; a format code followed by the width
and height as little-endian 16-bit values. The palette format carries one
more byte holding the number of palette entries minus one. Everything after
that is a zlib stream.

The inflated data for the palette format is the palette itself, three bytes
per entry, followed by one index byte per pixel. The 15-bit format stores a
big-endian 16-bit value per pixel packed as 0RRRRRGGGGGBBBBB and the 24-bit
format stores four bytes per pixel, a reserved byte followed by red, green
and blue. In all three formats each row is padded to a multiple of 4 bytes.
*/
package lossless

import (
	"fmt"
	"image"
	"image/color"
)

const (
	headerSize   = 5
	rowAlignment = 4
	rgbaSize     = 4
	rgbSize      = 3
	maxColors    = 256
	maxDimension = 1<<16 - 1
)

// Format is the format code found in the first byte of a payload.
type Format byte

// Supported format codes.
const (
	ColorMap8 Format = 3
	RGB15     Format = 4
	RGB24     Format = 5
)

func (f Format) String() string {
	switch f {
	case ColorMap8:
		return "colormap8"
	case RGB15:
		return "rgb15"
	case RGB24:
		return "rgb24"
	default:
		return fmt.Sprintf("format(%d)", byte(f))
	}
}

// pixelSize returns the number of bytes each pixel occupies in the inflated
// data.
func (f Format) pixelSize() int {
	switch f {
	case ColorMap8:
		return 1
	case RGB15:
		return 2
	case RGB24:
		return 4
	default:
		return 0
	}
}

// Meta describes the layout of a Bitmap. Stride is the number of bytes
// between the start of consecutive rows and is always Width*4.
type Meta struct {
	Width  int
	Height int
	Stride int
}

// Bitmap is a decoded image. Data holds Stride*Height bytes, each pixel as
// four bytes in R, G, B, A order.
type Bitmap struct {
	Meta Meta
	Data []byte
}

// NewMeta returns the Meta for a width by height bitmap.
func NewMeta(width, height int) Meta {
	return Meta{
		Width:  width,
		Height: height,
		Stride: width * rgbaSize,
	}
}

// NewBitmap returns a zeroed width by height bitmap.
func NewBitmap(width, height int) *Bitmap {
	m := NewMeta(width, height)
	return &Bitmap{
		Meta: m,
		Data: make([]byte, m.Stride*height),
	}
}

// Image returns a copy of the bitmap as an *image.RGBA. As every pixel is
// opaque the premultiplied and straight representations are the same.
func (b *Bitmap) Image() *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, b.Meta.Width, b.Meta.Height))
	for y := 0; y < b.Meta.Height; y++ {
		copy(m.Pix[y*m.Stride:y*m.Stride+b.Meta.Width*rgbaSize], b.Data[y*b.Meta.Stride:])
	}
	return m
}

// FromImage converts m into an opaque Bitmap. Any alpha in m is discarded.
func FromImage(m image.Image) *Bitmap {
	r := m.Bounds()
	b := NewBitmap(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			i := (y-r.Min.Y)*b.Meta.Stride + (x-r.Min.X)*rgbaSize
			b.Data[i+0] = c.R
			b.Data[i+1] = c.G
			b.Data[i+2] = c.B
			b.Data[i+3] = 0xff
		}
	}
	return b
}

// rowStride returns width*pixelSize rounded up to the next multiple of 4.
func rowStride(width, pixelSize int) int {
	return (width*pixelSize + rowAlignment - 1) &^ (rowAlignment - 1)
}
