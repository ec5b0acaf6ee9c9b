/*
Package swfbmp is a library for converting the lossless bitmaps found in SWF
DefineBitsLossless records into PAM images, caching the decoded results in a
sqlite database.
*/
package swfbmp

import (
	"io/ioutil"
	"log"

	"github.com/bodgit/swfbmp/lossless"
)

// PayloadExt is the file extension used for raw DefineBitsLossless payloads.
const PayloadExt = ".dbl"

// PAMExt is the file extension used for converted images.
const PAMExt = ".pam"

type Converter struct {
	db     *BitmapDB
	logger *log.Logger
}

// New returns a Converter using the bitmap cache in file.
func New(file string, logger *log.Logger) (*Converter, error) {
	db, err := NewBitmapDB(file)
	if err != nil {
		return nil, err
	}
	return &Converter{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the bitmap cache.
func (c *Converter) Close() error {
	return c.db.Close()
}

// Import adds the payload in file to the bitmap cache.
func (c *Converter) Import(file string) error {
	id, err := c.db.Import(file)
	if err != nil {
		return err
	}
	c.logger.Printf("Imported \"%s\" as %d\n", file, id)
	return nil
}

// Convert decodes the payload in file, using the cache if possible.
func (c *Converter) Convert(file string) (*lossless.Bitmap, error) {
	payload, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}

	b, err := c.db.FindBySHA1(payloadSHA1(payload))
	if err != nil {
		return nil, err
	}
	if b != nil {
		c.logger.Printf("Cache hit for \"%s\"\n", file)
		return b, nil
	}

	_, b, err = c.db.add(payload)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return c.db.FindBySHA1(payloadSHA1(payload))
	}
	return b, nil
}
