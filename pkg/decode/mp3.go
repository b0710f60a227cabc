package decode

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

func init() {
	Register("mp3", Mp3Decoder{})
}

// Mp3Decoder decodes MPEG layer 3 streams via hajimehoshi/go-mp3. The
// decoder always emits 16-bit stereo PCM regardless of the source channel
// layout, so Channels always reports 2.
type Mp3Decoder struct{}

func (Mp3Decoder) Decode(r io.Reader) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode: mp3: %w", err)
	}
	return &mp3Source{dec: dec, raw: make([]byte, 4096)}, nil
}

type mp3Source struct {
	dec *gomp3.Decoder
	raw []byte
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2 // 16-bit samples, 2 bytes each
	if len(s.raw) != need {
		s.raw = make([]byte, need)
	}

	n, err := io.ReadFull(s.dec, s.raw)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("decode: mp3: %w", err)
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(s.raw[i*2]) | int16(s.raw[i*2+1])<<8
		dst[i] = float32(v) / 32768
	}

	if samples == 0 {
		return 0, io.EOF
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return samples, io.EOF
	}
	return samples, nil
}
