package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func init() {
	Register("wav", WavDecoder{})
}

// WavDecoder decodes PCM WAV files via go-audio/wav.
type WavDecoder struct{}

func (WavDecoder) Decode(r io.Reader) (Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, fmt.Errorf("decode: wav: reader does not support seeking")
	}
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	dec.ReadInfo()

	return &wavSource{
		dec:      dec,
		channels: int(dec.NumChans),
		rate:     int(dec.SampleRate),
		intBuf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:   make([]int, 4096),
		},
	}, nil
}

type wavSource struct {
	dec      *wav.Decoder
	channels int
	rate     int
	intBuf   *audio.IntBuffer
}

func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if len(s.intBuf.Data) != len(dst) {
		s.intBuf.Data = make([]int, len(dst))
	}

	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("decode: wav: %w", err)
	}

	bits := s.dec.BitDepth
	if bits == 0 {
		bits = 16
	}
	scale := float32(int(1) << (bits - 1))

	for i := 0; i < n; i++ {
		dst[i] = float32(s.intBuf.Data[i]) / scale
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
