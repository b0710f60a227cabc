// Package driver adapts the engine's render callback to a real output
// device via faiface/beep's speaker backend.
package driver

import (
	"fmt"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// RenderFunc fills output (interleaved stereo, len(output) == frames*2)
// with the next frames of mixed audio. It must not block or allocate.
type RenderFunc func(output []float32, frames int)

// Output opens a real-time audio output stream and pulls samples from a
// RenderFunc until Stop is called.
type Output struct {
	sampleRate int
	render     RenderFunc
	scratch    []float32
}

// New returns an Output for the given sample rate. Render must be set via
// Start before playback begins.
func New(sampleRate int) *Output {
	return &Output{sampleRate: sampleRate}
}

// Open initializes the underlying speaker with a buffer sized for
// bufferFrames frames per callback, matching the frame count the render
// callback will be asked to fill.
func (o *Output) Open(bufferFrames int) error {
	sr := beep.SampleRate(o.sampleRate)
	if err := speaker.Init(sr, bufferFrames); err != nil {
		return fmt.Errorf("driver: open: %w", err)
	}
	return nil
}

// Reserve grows the scratch buffer to hold frames frames, so the first
// real Stream call at that buffer size does not allocate. Call this once
// at engine start, before Start registers the streamer with the device.
func (o *Output) Reserve(frames int) {
	need := frames * 2
	if cap(o.scratch) < need {
		o.scratch = make([]float32, need)
	}
}

// Start begins pulling audio from render and writing it to the speaker.
func (o *Output) Start(render RenderFunc) {
	o.render = render
	speaker.Play(&streamer{out: o})
}

// Stop halts playback and releases the speaker's buffer.
func (o *Output) Stop() {
	speaker.Clear()
}

// Close stops playback and tears down the underlying device.
func (o *Output) Close() {
	speaker.Close()
}

// streamer bridges beep.Streamer's [2]float64-per-frame contract to the
// engine's flat interleaved float32 render callback.
type streamer struct {
	out *Output
}

func (s *streamer) Stream(samples [][2]float64) (int, bool) {
	if s.out.render == nil {
		return 0, false
	}

	frames := len(samples)
	need := frames * 2
	if cap(s.out.scratch) < need {
		s.out.scratch = make([]float32, need)
	}
	buf := s.out.scratch[:need]

	s.out.render(buf, frames)

	for i := 0; i < frames; i++ {
		samples[i][0] = float64(buf[i*2])
		samples[i][1] = float64(buf[i*2+1])
	}
	return frames, true
}

func (s *streamer) Err() error { return nil }
