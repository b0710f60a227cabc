// Package pcm holds the decoded, interleaved stereo float32 sample buffer
// that every Deck reads from.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"djengine/pkg/decode"
)

// ErrUnsupportedChannels is returned when a decoded source reports a
// channel count other than 1 (mono) or 2 (stereo).
var ErrUnsupportedChannels = errors.New("pcm: only mono or stereo sources are supported")

// Buffer is an immutable, fully decoded interleaved stereo float32 track.
// Once constructed it is never mutated; a Deck may swap its buffer pointer
// wholesale but never edits one in place.
type Buffer struct {
	SampleRate int
	Frames     int64
	Data       []float32 // interleaved L,R,L,R,... length == Frames*2
}

// DurationSeconds returns the buffer's playback duration.
func (b *Buffer) DurationSeconds() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames) / float64(b.SampleRate)
}

// Load decodes the file at path using the decoder registered for its
// extension and returns a fully materialized Buffer. Mono sources are
// upmixed to stereo by channel duplication; sources with more than two
// channels are rejected.
func Load(path string) (*Buffer, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	src, err := decode.Open(ext, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	channels := src.Channels()
	if channels != 1 && channels != 2 {
		return nil, ErrUnsupportedChannels
	}

	const chunk = 1 << 15
	raw := make([]float32, 0, chunk)
	tmp := make([]float32, chunk)
	for {
		n, err := src.ReadSamples(tmp)
		if n > 0 {
			raw = append(raw, tmp[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				return nil, fmt.Errorf("pcm: decode %s: %w", path, err)
			}
			break
		}
	}

	var data []float32
	if channels == 2 {
		data = raw
	} else {
		data = make([]float32, len(raw)*2)
		for i, s := range raw {
			data[i*2] = s
			data[i*2+1] = s
		}
	}

	return &Buffer{
		SampleRate: src.SampleRate(),
		Frames:     int64(len(data) / 2),
		Data:       data,
	}, nil
}
