package lossless

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/klauspost/compress/zlib"
)

// CompressionLevel controls the zlib compression of the pixel data.
type CompressionLevel int

// Compression levels, mirroring image/png.
const (
	DefaultCompression CompressionLevel = 0
	NoCompression      CompressionLevel = -1
	BestSpeed          CompressionLevel = -2
	BestCompression    CompressionLevel = -3
)

func (l CompressionLevel) zlib() int {
	switch l {
	case NoCompression:
		return zlib.NoCompression
	case BestSpeed:
		return zlib.BestSpeed
	case BestCompression:
		return zlib.BestCompression
	default:
		return zlib.DefaultCompression
	}
}

// EncoderOptions controls EncodeWithOptions. The zero value picks the
// format automatically.
type EncoderOptions struct {
	// Format forces the output format. When zero, ColorMap8 is used if the
	// image has no more than 256 colors, otherwise RGB24.
	Format Format

	// Quantize reduces images with more than 256 colors to a palette
	// rather than falling back to RGB24 when Format is zero.
	Quantize bool

	// Level is the zlib compression level used for the pixel data.
	Level CompressionLevel
}

type encoder struct {
	w    io.Writer
	opts *EncoderOptions
	b    *Bitmap

	format  Format
	palette [][rgbSize]byte
	indices []byte
}

// exactPalette builds a palette and per-pixel indices if the bitmap uses no
// more than maxColors distinct colors.
func exactPalette(b *Bitmap) ([][rgbSize]byte, []byte, bool) {
	lookup := make(map[[rgbSize]byte]byte)
	var palette [][rgbSize]byte
	indices := make([]byte, b.Meta.Width*b.Meta.Height)
	for y := 0; y < b.Meta.Height; y++ {
		for x := 0; x < b.Meta.Width; x++ {
			var c [rgbSize]byte
			copy(c[:], b.Data[b.Meta.Stride*y+rgbaSize*x:])
			i, ok := lookup[c]
			if !ok {
				if len(palette) == maxColors {
					return nil, nil, false
				}
				i = byte(len(palette))
				lookup[c] = i
				palette = append(palette, c)
			}
			indices[y*b.Meta.Width+x] = i
		}
	}
	return palette, indices, true
}

func quantizedPalette(b *Bitmap) ([][rgbSize]byte, []byte) {
	m := b.Image()
	r := m.Bounds()

	q := quantize.MedianCutQuantizer{}
	pm := image.NewPaletted(r, q.Quantize(make(color.Palette, 0, maxColors), m))
	draw.Draw(pm, r, m, r.Min, draw.Src)

	palette := make([][rgbSize]byte, len(pm.Palette))
	for i, c := range pm.Palette {
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		palette[i] = [rgbSize]byte{n.R, n.G, n.B}
	}

	indices := make([]byte, b.Meta.Width*b.Meta.Height)
	for y := 0; y < b.Meta.Height; y++ {
		copy(indices[y*b.Meta.Width:], pm.Pix[y*pm.Stride:y*pm.Stride+b.Meta.Width])
	}
	return palette, indices
}

func (e *encoder) strategize() error {
	switch e.opts.Format {
	case 0:
		if p, i, ok := exactPalette(e.b); ok {
			e.format, e.palette, e.indices = ColorMap8, p, i
		} else if e.opts.Quantize {
			e.format = ColorMap8
			e.palette, e.indices = quantizedPalette(e.b)
		} else {
			e.format = RGB24
		}
	case ColorMap8:
		e.format = ColorMap8
		var ok bool
		if e.palette, e.indices, ok = exactPalette(e.b); !ok {
			e.palette, e.indices = quantizedPalette(e.b)
		}
	case RGB15, RGB24:
		e.format = e.opts.Format
	default:
		return errors.New("lossless: unsupported format " + e.opts.Format.String())
	}

	// A palette always has at least one entry
	if e.format == ColorMap8 && len(e.palette) == 0 {
		e.palette = make([][rgbSize]byte, 1)
	}
	return nil
}

func pack15(r, g, b byte) uint16 {
	return uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
}

// pixels returns the uncompressed data with each row padded to the row
// alignment.
func (e *encoder) pixels() []byte {
	width, height := e.b.Meta.Width, e.b.Meta.Height
	stride := rowStride(width, e.format.pixelSize())

	var offset int
	if e.format == ColorMap8 {
		offset = len(e.palette) * rgbSize
	}
	data := make([]byte, offset+stride*height)

	for i, c := range e.palette {
		copy(data[i*rgbSize:], c[:])
	}

	for y := 0; y < height; y++ {
		row := data[offset+stride*y:]
		for x := 0; x < width; x++ {
			s := e.b.Data[e.b.Meta.Stride*y+rgbaSize*x:]
			switch e.format {
			case ColorMap8:
				row[x] = e.indices[y*width+x]
			case RGB15:
				binary.BigEndian.PutUint16(row[2*x:], pack15(s[0], s[1], s[2]))
			case RGB24:
				copy(row[4*x+1:4*x+4], s[:3])
			}
		}
	}
	return data
}

func (e *encoder) encode() error {
	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, e.opts.Level.zlib())
	if err != nil {
		return err
	}
	if _, err := zw.Write(e.pixels()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	hdr := make([]byte, headerSize, headerSize+1)
	hdr[0] = byte(e.format)
	binary.LittleEndian.PutUint16(hdr[1:3], uint16(e.b.Meta.Width))
	binary.LittleEndian.PutUint16(hdr[3:5], uint16(e.b.Meta.Height))
	if e.format == ColorMap8 {
		hdr = append(hdr, byte(len(e.palette)-1))
	}

	if _, err := e.w.Write(hdr); err != nil {
		return err
	}
	_, err = e.w.Write(compressed.Bytes())
	return err
}

// Encode writes m to w as a DefineBitsLossless payload using the default
// options.
func Encode(w io.Writer, m image.Image) error {
	return EncodeWithOptions(w, m, nil)
}

// EncodeWithOptions writes m to w as a DefineBitsLossless payload. The
// format has no alpha channel so all pixels are written as opaque.
func EncodeWithOptions(w io.Writer, m image.Image, opts *EncoderOptions) error {
	r := m.Bounds()
	if r.Dx() > maxDimension || r.Dy() > maxDimension {
		return errors.New("lossless: image is too large")
	}

	e := encoder{
		w:    w,
		opts: opts,
		b:    FromImage(m),
	}
	if e.opts == nil {
		e.opts = new(EncoderOptions)
	}

	if err := e.strategize(); err != nil {
		return err
	}

	return e.encode()
}
