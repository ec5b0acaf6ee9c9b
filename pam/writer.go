/*
Package pam implements an encoder and decoder for the RGB_ALPHA flavour of
the Netpbm portable arbitrary map format.

The header is a series of newline terminated ASCII lines starting with the
P7 magic and finishing with ENDHDR, followed by the raw pixel data with four
bytes per pixel.

See http://netpbm.sourceforge.net/doc/pam.html.
*/
package pam

import (
	"fmt"
	"io"

	"github.com/bodgit/swfbmp/lossless"
)

const (
	magic    = "P7"
	depth    = 4
	maxVal   = 255
	tuplType = "RGB_ALPHA"
	endHdr   = "ENDHDR"
)

// Encode writes b to w in PAM format. Errors from w are returned unchanged.
func Encode(w io.Writer, b *lossless.Bitmap) error {
	header := fmt.Sprintf("%s\nWIDTH %d\nHEIGHT %d\nDEPTH %d\nMAXVAL %d\nTUPLTYPE %s\n%s\n",
		magic, b.Meta.Width, b.Meta.Height, depth, maxVal, tuplType, endHdr)

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	for y := 0; y < b.Meta.Height; y++ {
		row := b.Data[y*b.Meta.Stride : y*b.Meta.Stride+b.Meta.Width*depth]
		if _, err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}
