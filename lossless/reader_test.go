package lossless

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

// payload builds a payload from a header, any extra framing bytes and the
// uncompressed data.
func payload(t *testing.T, format Format, width, height int, framing []byte, data []byte) []byte {
	t.Helper()
	p := []byte{byte(format), byte(width), byte(width >> 8), byte(height), byte(height >> 8)}
	p = append(p, framing...)
	return append(p, compress(t, data)...)
}

func TestRowStride(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 4},
		{2, 4},
		{3, 4},
		{4, 4},
		{5, 8},
		{6, 8},
		{7, 8},
		{8, 8},
		{252, 252},
		{253, 256},
		{254, 256},
		{255, 256},
		{256, 256},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rowStride(tt.n, 1), "rowStride(%d, 1)", tt.n)
	}

	assert.Equal(t, 8, rowStride(3, 2))
	assert.Equal(t, 12, rowStride(3, 4))
	assert.Equal(t, 0, rowStride(0, 4))
}

func TestDecodeColorMap(t *testing.T) {
	p := payload(t, ColorMap8, 2, 1, []byte{0}, []byte{10, 20, 30, 0x00, 0x00, 0x00, 0x00})

	b, err := Decode(p)
	require.NoError(t, err)
	assert.Equal(t, Meta{Width: 2, Height: 1, Stride: 8}, b.Meta)
	assert.Equal(t, []byte{10, 20, 30, 255, 10, 20, 30, 255}, b.Data)
}

func TestDecodeColorMapPadding(t *testing.T) {
	// Padding bytes would be out of range if they were treated as indices
	data := []byte{
		0xff, 0x00, 0x00,
		0x00, 0xff, 0x00,
		0, 1, 0, 0xff,
		1, 1, 0, 0xff,
	}
	b, err := Decode(payload(t, ColorMap8, 3, 2, []byte{1}, data))
	require.NoError(t, err)
	assert.Equal(t, Meta{Width: 3, Height: 2, Stride: 12}, b.Meta)
	assert.Equal(t, []byte{
		0xff, 0x00, 0x00, 0xff, 0x00, 0xff, 0x00, 0xff, 0xff, 0x00, 0x00, 0xff,
		0x00, 0xff, 0x00, 0xff, 0x00, 0xff, 0x00, 0xff, 0xff, 0x00, 0x00, 0xff,
	}, b.Data)
}

func TestDecodeColorMapIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		colors int
		index  byte
	}{
		{"one color", 1, 1},
		{"two colors", 2, 2},
		{"maximum index", 16, 0xff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.colors*3)
			data = append(data, 0, tt.index, 0, 0)
			b, err := Decode(payload(t, ColorMap8, 2, 1, []byte{byte(tt.colors - 1)}, data))
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.Nil(t, b)
		})
	}
}

func TestDecodeRGB15(t *testing.T) {
	tests := []struct {
		name  string
		pixel []byte
		want  []byte
	}{
		{"white", []byte{0x7f, 0xff}, []byte{248, 248, 248, 255}},
		{"black", []byte{0x00, 0x00}, []byte{0, 0, 0, 255}},
		{"unused bit", []byte{0x80, 0x00}, []byte{0, 0, 0, 255}},
		{"red", []byte{0x7c, 0x00}, []byte{248, 0, 0, 255}},
		{"green", []byte{0x03, 0xe0}, []byte{0, 248, 0, 255}},
		{"blue", []byte{0x00, 0x1f}, []byte{0, 0, 248, 255}},
		{"low bits", []byte{0x04, 0x21}, []byte{8, 8, 8, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(append([]byte{}, tt.pixel...), 0xaa, 0xaa)
			b, err := Decode(payload(t, RGB15, 1, 1, nil, data))
			require.NoError(t, err)
			assert.Equal(t, Meta{Width: 1, Height: 1, Stride: 4}, b.Meta)
			assert.Equal(t, tt.want, b.Data)
		})
	}
}

func TestDecodeRGB15Rows(t *testing.T) {
	data := []byte{
		0x7f, 0xff, 0x00, 0x00, 0x7c, 0x00, 0xaa, 0xaa,
		0x00, 0x1f, 0x03, 0xe0, 0x00, 0x00, 0xaa, 0xaa,
	}
	b, err := Decode(payload(t, RGB15, 3, 2, nil, data))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		248, 248, 248, 255, 0, 0, 0, 255, 248, 0, 0, 255,
		0, 0, 248, 255, 0, 248, 0, 255, 0, 0, 0, 255,
	}, b.Data)
}

func TestDecodeRGB24(t *testing.T) {
	b, err := Decode(payload(t, RGB24, 1, 1, nil, []byte{0x00, 0x10, 0x20, 0x30}))
	require.NoError(t, err)
	assert.Equal(t, Meta{Width: 1, Height: 1, Stride: 4}, b.Meta)
	assert.Equal(t, []byte{0x10, 0x20, 0x30, 0xff}, b.Data)

	b, err = Decode(payload(t, RGB24, 2, 2, nil, []byte{
		0xff, 1, 2, 3, 0xff, 4, 5, 6,
		0xff, 7, 8, 9, 0xff, 10, 11, 12,
	}))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	}, b.Data)
}

func TestDecodeInvalid(t *testing.T) {
	valid := payload(t, RGB24, 2, 2, nil, make([]byte, 16))

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"truncated header", []byte{5, 1, 0, 1}},
		{"unknown format", payload(t, 2, 1, 1, nil, make([]byte, 4))},
		{"unknown format without data", []byte{0x02, 1, 0, 1, 0}},
		{"format zero", payload(t, 0, 1, 1, nil, make([]byte, 4))},
		{"missing palette size", []byte{3, 1, 0, 1, 0}},
		{"missing zlib stream", []byte{5, 1, 0, 1, 0}},
		{"garbage zlib stream", []byte{5, 1, 0, 1, 0, 0xde, 0xad, 0xbe, 0xef}},
		{"truncated zlib stream", valid[:len(valid)-6]},
		{"bad zlib checksum", append(valid[:len(valid)-1:len(valid)-1], valid[len(valid)-1]^0xff)},
		{"short rgb24 data", payload(t, RGB24, 2, 2, nil, make([]byte, 12))},
		{"short rgb15 data", payload(t, RGB15, 3, 1, nil, make([]byte, 6))},
		{"short palette", payload(t, ColorMap8, 1, 1, []byte{3}, make([]byte, 6))},
		{"short colormap data", payload(t, ColorMap8, 5, 2, []byte{0}, make([]byte, 3+8+4))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Decode(tt.payload)
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.Nil(t, b)
		})
	}
}

func TestDecodeTooMuchData(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"colormap8 extra byte", payload(t, ColorMap8, 1, 1, []byte{0}, make([]byte, 3+4+1))},
		{"rgb15 extra byte", payload(t, RGB15, 1, 1, nil, make([]byte, 4+1))},
		{"rgb24 extra byte", payload(t, RGB24, 1, 1, nil, make([]byte, 4+1))},
		{"rgb24 extra megabyte", payload(t, RGB24, 1, 1, nil, make([]byte, 1<<20))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Decode(tt.payload)
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.Nil(t, b)
		})
	}
}

func TestDecodeShape(t *testing.T) {
	for _, format := range []Format{ColorMap8, RGB15, RGB24} {
		for _, size := range [][2]int{{0, 0}, {0, 3}, {3, 0}, {1, 1}, {5, 7}, {8, 2}} {
			width, height := size[0], size[1]

			var framing, data []byte
			if format == ColorMap8 {
				framing = []byte{0}
				data = make([]byte, 3)
			}
			data = append(data, make([]byte, rowStride(width, format.pixelSize())*height)...)

			b, err := Decode(payload(t, format, width, height, framing, data))
			require.NoError(t, err, "%s %dx%d", format, width, height)
			assert.Equal(t, width*4, b.Meta.Stride)
			assert.Len(t, b.Data, b.Meta.Stride*height)
			for i := 3; i < len(b.Data); i += 4 {
				assert.Equal(t, byte(0xff), b.Data[i])
			}
		}
	}
}

func TestDecodeConfig(t *testing.T) {
	format, meta, err := DecodeConfig([]byte{3, 0x2c, 0x01, 0xc8, 0x00, 0x0f})
	require.NoError(t, err)
	assert.Equal(t, ColorMap8, format)
	assert.Equal(t, Meta{Width: 300, Height: 200, Stride: 1200}, meta)

	format, meta, err = DecodeConfig([]byte{5, 0x01, 0x00, 0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, RGB24, format)
	assert.Equal(t, Meta{Width: 1, Height: 2, Stride: 4}, meta)

	_, _, err = DecodeConfig([]byte{3, 0x01, 0x00, 0x02, 0x00})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = DecodeConfig([]byte{6, 0x01, 0x00, 0x02, 0x00})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = DecodeConfig([]byte{4})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "colormap8", ColorMap8.String())
	assert.Equal(t, "rgb15", RGB15.String())
	assert.Equal(t, "rgb24", RGB24.String())
	assert.Equal(t, "format(2)", Format(2).String())
}
