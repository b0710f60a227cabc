// Package decode provides the format-keyed decoder registry the PCM loader
// dispatches through. Decoding is treated as a pure function from a path to
// a stream of interleaved float32 samples; the engine never sees a partially
// decoded buffer.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnknownFormat is returned when no decoder is registered for an
// extension.
var ErrUnknownFormat = errors.New("decode: no decoder registered for format")

// Source is a decoded audio stream. ReadSamples fills dst with interleaved
// float32 samples in [-1, 1] and returns the count written (not frames).
// io.EOF on the final read with n == 0 signals a finished stream.
type Source interface {
	SampleRate() int
	Channels() int
	ReadSamples(dst []float32) (n int, err error)
	Close() error
}

// Decoder constructs a Source from an input reader.
type Decoder interface {
	Decode(r io.Reader) (Source, error)
}

var registry = map[string]Decoder{}

// Register installs a Decoder for a file extension (without the leading dot,
// lower case, e.g. "wav").
func Register(ext string, d Decoder) {
	registry[ext] = d
}

// Open resolves the decoder for ext, opens path, and decodes it.
func Open(ext, path string) (Source, error) {
	d, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", path, err)
	}

	src, err := d.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode: %s: %w", path, err)
	}
	return &closeFileSource{Source: src, f: f}, nil
}

// closeFileSource ties the backing *os.File's lifetime to the Source's.
type closeFileSource struct {
	Source
	f *os.File
}

func (c *closeFileSource) Close() error {
	err := c.Source.Close()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	return err
}
