package lossless

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/zlib"
)

// ErrInvalidFormat is returned for any payload that cannot be decoded.
// Errors are wrapped with more detail so use errors.Is to test for it.
var ErrInvalidFormat = errors.New("lossless: invalid format")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}

type header struct {
	format Format
	width  int
	height int
}

func parseHeader(b []byte) (header, []byte, error) {
	if len(b) < headerSize {
		return header{}, nil, invalid("truncated header")
	}
	return header{
		format: Format(b[0]),
		width:  int(binary.LittleEndian.Uint16(b[1:3])),
		height: int(binary.LittleEndian.Uint16(b[3:5])),
	}, b[headerSize:], nil
}

func parseColorCount(b []byte) (int, []byte, error) {
	if len(b) < 1 {
		return 0, nil, invalid("missing palette size")
	}
	return int(b[0]) + 1, b[1:], nil
}

// inflate decompresses b, which must hold no more than size bytes once
// inflated.
func inflate(b []byte, size int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, invalid("zlib: %v", err)
	}
	defer r.Close()

	data, err := ioutil.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return nil, invalid("zlib: %v", err)
	}
	if int64(len(data)) > size {
		return nil, invalid("too much image data, expected %d bytes", size)
	}
	return data, nil
}

// dataSize returns the number of inflated bytes the pixel rows of a format
// occupy.
func dataSize(f Format, width, height int) int64 {
	return int64(rowStride(width, f.pixelSize())) * int64(height)
}

func checkLength(data []byte, stride, height int) error {
	if len(data) < stride*height {
		return invalid("not enough image data, need %d bytes, have %d", stride*height, len(data))
	}
	return nil
}

func decodeColorMap(data []byte, width, height, colorCount int) (*Bitmap, error) {
	if len(data) < colorCount*rgbSize {
		return nil, invalid("not enough palette data for %d colors", colorCount)
	}
	palette := make([][rgbSize]byte, colorCount)
	for i := range palette {
		copy(palette[i][:], data[i*rgbSize:])
	}
	data = data[colorCount*rgbSize:]

	stride := rowStride(width, ColorMap8.pixelSize())
	if err := checkLength(data, stride, height); err != nil {
		return nil, err
	}

	b := NewBitmap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ci := int(data[stride*y+x])
			if ci >= colorCount {
				return nil, invalid("palette index %d out of range at (%d, %d)", ci, x, y)
			}
			c := palette[ci]
			i := b.Meta.Stride*y + rgbaSize*x
			b.Data[i+0] = c[0]
			b.Data[i+1] = c[1]
			b.Data[i+2] = c[2]
			b.Data[i+3] = 0xff
		}
	}
	return b, nil
}

// Each 5-bit component is shifted into the top of the byte, the low bits
// are left as zero.
func unpack15(v uint16) (r, g, b byte) {
	r = byte(v>>10&0x1f) << 3
	g = byte(v>>5&0x1f) << 3
	b = byte(v&0x1f) << 3
	return
}

func decodeRGB15(data []byte, width, height int) (*Bitmap, error) {
	stride := rowStride(width, RGB15.pixelSize())
	if err := checkLength(data, stride, height); err != nil {
		return nil, err
	}

	b := NewBitmap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := stride*y + 2*x
			r, g, bl := unpack15(binary.BigEndian.Uint16(data[o : o+2]))
			i := b.Meta.Stride*y + rgbaSize*x
			b.Data[i+0] = r
			b.Data[i+1] = g
			b.Data[i+2] = bl
			b.Data[i+3] = 0xff
		}
	}
	return b, nil
}

func decodeRGB24(data []byte, width, height int) (*Bitmap, error) {
	stride := rowStride(width, RGB24.pixelSize())
	if err := checkLength(data, stride, height); err != nil {
		return nil, err
	}

	b := NewBitmap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := stride*y + 4*x
			i := b.Meta.Stride*y + rgbaSize*x
			// data[o] is reserved
			b.Data[i+0] = data[o+1]
			b.Data[i+1] = data[o+2]
			b.Data[i+2] = data[o+3]
			b.Data[i+3] = 0xff
		}
	}
	return b, nil
}

// Decode decodes a DefineBitsLossless payload into a Bitmap. Any failure
// returns an error wrapping ErrInvalidFormat and no Bitmap.
func Decode(payload []byte) (*Bitmap, error) {
	h, rest, err := parseHeader(payload)
	if err != nil {
		return nil, err
	}

	switch h.format {
	case ColorMap8:
		colorCount, rest, err := parseColorCount(rest)
		if err != nil {
			return nil, err
		}
		data, err := inflate(rest, int64(colorCount*rgbSize)+dataSize(ColorMap8, h.width, h.height))
		if err != nil {
			return nil, err
		}
		return decodeColorMap(data, h.width, h.height, colorCount)
	case RGB15:
		data, err := inflate(rest, dataSize(RGB15, h.width, h.height))
		if err != nil {
			return nil, err
		}
		return decodeRGB15(data, h.width, h.height)
	case RGB24:
		data, err := inflate(rest, dataSize(RGB24, h.width, h.height))
		if err != nil {
			return nil, err
		}
		return decodeRGB24(data, h.width, h.height)
	default:
		return nil, invalid("unsupported format code %d", byte(h.format))
	}
}

// DecodeConfig returns the format and dimensions of a payload without
// decompressing the pixel data.
func DecodeConfig(payload []byte) (Format, Meta, error) {
	h, rest, err := parseHeader(payload)
	if err != nil {
		return 0, Meta{}, err
	}

	switch h.format {
	case ColorMap8:
		if _, _, err := parseColorCount(rest); err != nil {
			return 0, Meta{}, err
		}
	case RGB15, RGB24:
	default:
		return 0, Meta{}, invalid("unsupported format code %d", byte(h.format))
	}

	return h.format, NewMeta(h.width, h.height), nil
}
