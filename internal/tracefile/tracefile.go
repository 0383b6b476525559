// Package tracefile opens trace files for sequential reading. Traces can be
// arbitrarily large and are commonly stored compressed; zstd and gzip streams
// are decoded transparently, picked by file extension.
package tracefile

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type reader struct {
	io.Reader
	close func() error
}

func (r *reader) Close() error { return r.close() }

// Open opens the trace file at path. The returned ReadCloser must be closed
// on every path, including early termination of the consumer.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &reader{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil

	case strings.HasSuffix(path, ".gz"):
		dec, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &reader{Reader: dec, close: func() error {
			derr := dec.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return derr
		}}, nil

	default:
		return f, nil
	}
}
