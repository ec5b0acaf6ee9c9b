package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/swfbmp"
	"github.com/bodgit/swfbmp/lossless"
	"github.com/bodgit/swfbmp/pam"
	"github.com/urfave/cli/v2"
)

const defaultDB = "swfbmp.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func readImage(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(file), swfbmp.PAMExt) {
		b, err := pam.Decode(f)
		if err != nil {
			return nil, err
		}
		return b.Image(), nil
	}

	m, _, err := image.Decode(f)
	return m, err
}

// writeFile creates file and passes it to fn. The file is removed if fn or
// closing the file fails.
func writeFile(file string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(file)
		}
	}()

	return fn(f)
}

func writeBitmap(file string, b *lossless.Bitmap) error {
	encode := func(w io.Writer) error {
		if strings.EqualFold(filepath.Ext(file), ".png") {
			return png.Encode(w, b.Image())
		}
		return pam.Encode(w, b)
	}

	if file == "" {
		return encode(os.Stdout)
	}
	return writeFile(file, encode)
}

func encodeImage(file string, m image.Image, o *lossless.EncoderOptions) error {
	return writeFile(file, func(w io.Writer) error {
		return lossless.EncodeWithOptions(w, m, o)
	})
}

func main() {
	app := cli.NewApp()

	app.Name = "swfbmp"
	app.Usage = "SWF lossless bitmap conversion utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"SWFBMP_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to database",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "info",
			Usage:       "Show the format and dimensions of payloads",
			Description: "",
			ArgsUsage:   "FILE...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				for _, file := range c.Args().Slice() {
					b, err := ioutil.ReadFile(file)
					if err != nil {
						return cli.NewExitError(err, 1)
					}
					format, meta, err := lossless.DecodeConfig(b)
					if err != nil {
						return cli.NewExitError(fmt.Errorf("%s: %w", file, err), 1)
					}
					fmt.Fprintf(c.App.Writer, "%s: %s %dx%d\n", file, format, meta.Width, meta.Height)
				}

				return nil
			},
		},
		{
			Name:        "decode",
			Usage:       "Decode a payload to PAM or PNG",
			Description: "Writes PAM to standard output unless OUTPUT is given; an OUTPUT ending in .png is written as PNG.",
			ArgsUsage:   "FILE [OUTPUT]",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				payload, err := ioutil.ReadFile(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				b, err := lossless.Decode(payload)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := writeBitmap(c.Args().Get(1), b); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "encode",
			Usage:       "Encode an image as a payload",
			Description: "Reads PNG, GIF, JPEG or PAM images.",
			ArgsUsage:   "IMAGE OUTPUT",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "format",
					Usage: "force format code 3, 4 or 5",
				},
				&cli.BoolFlag{
					Name:  "quantize",
					Usage: "reduce images with more than 256 colors to a palette",
				},
				&cli.IntFlag{
					Name:  "level",
					Usage: "compression level, 0 default, -1 none, -2 fastest, -3 best",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				m, err := readImage(c.Args().Get(0))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := encodeImage(c.Args().Get(1), m, &lossless.EncoderOptions{
					Format:   lossless.Format(c.Int("format")),
					Quantize: c.Bool("quantize"),
					Level:    lossless.CompressionLevel(c.Int("level")),
				}); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "import",
			Usage:       "Decode payloads into the database",
			Description: "",
			ArgsUsage:   "FILE...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				s, err := swfbmp.New(c.String("db"), newLogger(c))
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer s.Close()

				for _, file := range c.Args().Slice() {
					if err := s.Import(file); err != nil {
						return cli.NewExitError(err, 1)
					}
				}

				return nil
			},
		},
		{
			Name:        "scan",
			Usage:       "Scan filesystem and convert payloads to PAM",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				s, err := swfbmp.New(c.String("db"), newLogger(c))
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer s.Close()

				if err := s.Scan(c.Args().First()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
