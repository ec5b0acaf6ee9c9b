package pam

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/bodgit/swfbmp/lossless"
)

// ErrInvalidFormat is returned when the input is not an RGB_ALPHA PAM image.
var ErrInvalidFormat = errors.New("pam: invalid format")

// Largest width or height accepted, the same limit as a payload header
const maxDimension = 1<<16 - 1

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(line), err
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > maxDimension {
		return 0, fmt.Errorf("%w: bad value %q", ErrInvalidFormat, s)
	}
	return v, nil
}

// Decode reads a PAM image from r. Only DEPTH 4, MAXVAL 255 and TUPLTYPE
// RGB_ALPHA images are supported.
func Decode(r io.Reader) (*lossless.Bitmap, error) {
	br := bufio.NewReader(r)

	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if line != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}

	width, height := -1, -1
	var gotDepth, gotMaxVal, gotTuplType bool

	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if line == "" || line[0] == '#' {
			continue
		}
		if line == endHdr {
			break
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: bad header line %q", ErrInvalidFormat, line)
		}

		switch fields[0] {
		case "WIDTH":
			if width, err = parseInt(fields[1]); err != nil {
				return nil, err
			}
		case "HEIGHT":
			if height, err = parseInt(fields[1]); err != nil {
				return nil, err
			}
		case "DEPTH":
			if fields[1] != strconv.Itoa(depth) {
				return nil, fmt.Errorf("%w: unsupported depth %s", ErrInvalidFormat, fields[1])
			}
			gotDepth = true
		case "MAXVAL":
			if fields[1] != strconv.Itoa(maxVal) {
				return nil, fmt.Errorf("%w: unsupported maxval %s", ErrInvalidFormat, fields[1])
			}
			gotMaxVal = true
		case "TUPLTYPE":
			if fields[1] != tuplType {
				return nil, fmt.Errorf("%w: unsupported tupltype %s", ErrInvalidFormat, fields[1])
			}
			gotTuplType = true
		default:
			return nil, fmt.Errorf("%w: unknown header %s", ErrInvalidFormat, fields[0])
		}
	}

	if width < 0 || height < 0 || !gotDepth || !gotMaxVal || !gotTuplType {
		return nil, fmt.Errorf("%w: incomplete header", ErrInvalidFormat)
	}

	// Read no more than the header declares
	n := int64(width) * depth * int64(height)
	data, err := ioutil.ReadAll(io.LimitReader(br, n))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < n {
		return nil, io.ErrUnexpectedEOF
	}

	return &lossless.Bitmap{
		Meta: lossless.NewMeta(width, height),
		Data: data,
	}, nil
}
