package swfbmp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/swfbmp/pam"
)

const numWorkers = 10

var errWalkCancelled = errors.New("walk cancelled")

func (c *Converter) findPayloads(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || filepath.Ext(file) != PayloadExt {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errWalkCancelled
			}

			return nil
		})
	}()
	return out, errc, nil
}

func writePAM(file string, c *Converter) error {
	b, err := c.Convert(file)
	if err != nil {
		return err
	}

	f, err := os.Create(strings.TrimSuffix(file, PayloadExt) + PAMExt)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := pam.Encode(f, b); err != nil {
		return err
	}

	return f.Close()
}

func (c *Converter) payloadWorker(cancel context.CancelFunc, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := writePAM(file, c); err != nil {
				c.logger.Printf("Failed to convert \"%s\": %s\n", file, err)
				errc <- err
				cancel()
				// Drain so the walker is never blocked on send
				for range in {
				}
				return
			}
			c.logger.Printf("Converted \"%s\"\n", file)
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	var first error
	for err := range errc {
		// A cancelled walk is only a symptom of a failed worker
		if err != nil && (first == nil || first == errWalkCancelled) {
			first = err
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan walks path and writes a PAM image alongside every payload found.
// The first conversion failure stops the scan and is returned.
func (c *Converter) Scan(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := c.findPayloads(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < numWorkers; i++ {
		errc, err := c.payloadWorker(cancelFunc, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
