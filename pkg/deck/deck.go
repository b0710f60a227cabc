// Package deck implements a single playback voice: a loaded track, a
// transport state machine, and the tempo/pitch/EQ/gain parameters applied
// to every frame it renders. A Deck is read by exactly one audio callback
// and written by any number of control-plane goroutines; the split is
// enforced with a mutex around the buffer/stretcher pair and atomics for
// the hot transport fields.
package deck

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"djengine/pkg/pcm"
	"djengine/pkg/stretch"
)

// ErrNotLoaded is returned by operations that require a track to be loaded.
var ErrNotLoaded = errors.New("deck: no track loaded")

const (
	MinTempo = 0.5
	MaxTempo = 2.0

	MinPitchSemitones = -12.0
	MaxPitchSemitones = 12.0

	// fast-path bypass thresholds: below these, tempo/pitch are treated
	// as unity and the stretcher is skipped entirely.
	tempoEpsilon = 1e-3
	pitchEpsilon = 0.1

	stretchChunk = 4096
)

// Deck owns one loaded track and its playback parameters.
type Deck struct {
	sampleRate int

	mu        sync.Mutex
	buf       *pcm.Buffer
	stretcher stretch.Stretcher

	playing        atomic.Bool
	trackEnded     atomic.Bool  // set when Read ran off the end of the track
	samplePosition atomic.Int64 // source frames

	volume atomic.Value // float32

	tempo      atomic.Value // float64
	pitch      atomic.Value // float64
	bpm        atomic.Value // float64
	beatOffset atomic.Value // float64

	eqLow  atomic.Value // float32
	eqMid  atomic.Value // float32
	eqHigh atomic.Value // float32
}

// New returns an empty Deck rendering silence at sampleRate.
func New(sampleRate int) *Deck {
	d := &Deck{
		sampleRate: sampleRate,
		stretcher:  stretch.New(),
	}
	d.volume.Store(float32(1.0))
	d.tempo.Store(1.0)
	d.pitch.Store(0.0)
	d.bpm.Store(120.0)
	d.beatOffset.Store(0.0)
	d.eqLow.Store(float32(1.0))
	d.eqMid.Store(float32(1.0))
	d.eqHigh.Store(float32(1.0))
	return d
}

// Load decodes path and installs it as the deck's track, resetting playback
// state and clearing the stretcher.
func (d *Deck) Load(path string) error {
	buf, err := pcm.Load(path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = buf
	d.samplePosition.Store(0)
	d.playing.Store(false)
	d.trackEnded.Store(false)
	d.stretcher.Clear()
	return nil
}

// Unload stops playback and drops the loaded track.
func (d *Deck) Unload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing.Store(false)
	d.trackEnded.Store(false)
	d.samplePosition.Store(0)
	d.buf = nil
	d.stretcher.Clear()
}

// IsLoaded reports whether a non-empty track is installed.
func (d *Deck) IsLoaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf != nil && d.buf.Frames > 0
}

// Buffer returns the deck's loaded track data for analysis (BPM/beat-offset
// detection), or nil if nothing is loaded. The returned *pcm.Buffer is
// immutable and safe to read without further locking.
func (d *Deck) Buffer() *pcm.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}

// SampleRate returns the deck's fixed render sample rate.
func (d *Deck) SampleRate() int {
	return d.sampleRate
}

// Play starts playback. If startFrame is non-negative, the deck's position
// jumps there and the stretcher is cleared before playback begins; pass -1
// to resume from the current position.
func (d *Deck) Play(startFrame int64) {
	if startFrame >= 0 {
		d.samplePosition.Store(startFrame)
		d.mu.Lock()
		d.stretcher.Clear()
		d.mu.Unlock()
	}
	d.trackEnded.Store(false)
	d.playing.Store(true)
}

// Pause halts playback in place. This is a host-initiated stop, not a
// track-ended condition.
func (d *Deck) Pause() {
	d.playing.Store(false)
}

// Stop halts playback and rewinds to the start of the track. This is a
// host-initiated stop, not a track-ended condition.
func (d *Deck) Stop() {
	d.playing.Store(false)
	d.samplePosition.Store(0)
	d.mu.Lock()
	d.stretcher.Clear()
	d.mu.Unlock()
}

// ConsumeTrackEnded reports whether Read ran off the end of the loaded
// track since the last call, clearing the flag. Unlike IsPlaying going
// false, this is only set by genuine exhaustion of the source, never by
// Pause or Stop.
func (d *Deck) ConsumeTrackEnded() bool {
	return d.trackEnded.CompareAndSwap(true, false)
}

// IsPlaying reports whether the deck is currently transporting.
func (d *Deck) IsPlaying() bool {
	return d.playing.Load()
}

// SetPosition seeks to an absolute position in seconds, clamped to the
// track's bounds, and clears the stretcher.
func (d *Deck) SetPosition(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pos := int64(seconds * float64(d.sampleRate))
	if pos < 0 {
		pos = 0
	}
	if d.buf != nil && pos > d.buf.Frames {
		pos = d.buf.Frames
	}
	d.samplePosition.Store(pos)
	d.stretcher.Clear()
}

// GetPosition returns the current playback position in seconds.
func (d *Deck) GetPosition() float64 {
	return float64(d.samplePosition.Load()) / float64(d.sampleRate)
}

// GetDuration returns the loaded track's length in seconds, or 0 if no
// track is loaded.
func (d *Deck) GetDuration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.buf == nil {
		return 0
	}
	return d.buf.DurationSeconds()
}

// GetSamplePosition returns the raw source-frame cursor, used by beatsync.
func (d *Deck) GetSamplePosition() int64 {
	return d.samplePosition.Load()
}

// SetSamplePosition moves the playback cursor directly. forceSync always
// clears the stretcher; otherwise it is only cleared on jumps larger than
// one second, to avoid audible clicks on small corrections.
func (d *Deck) SetSamplePosition(pos int64, forceSync bool) {
	old := d.samplePosition.Load()
	d.samplePosition.Store(pos)

	if !forceSync {
		jump := pos - old
		if jump < 0 {
			jump = -jump
		}
		if jump <= int64(d.sampleRate) {
			return
		}
	}

	d.mu.Lock()
	d.stretcher.Clear()
	d.mu.Unlock()
}

// SetGain sets the linear output gain applied after EQ, clamped to [0, 1].
func (d *Deck) SetGain(gain float32) {
	d.volume.Store(clampF32(gain, 0, 1))
}

// SetTempo sets the playback speed ratio, clamped to [MinTempo, MaxTempo].
func (d *Deck) SetTempo(tempo float64) {
	tempo = clamp(tempo, MinTempo, MaxTempo)
	d.tempo.Store(tempo)
	d.mu.Lock()
	d.stretcher.SetTempo(tempo)
	d.mu.Unlock()
}

// GetTempo returns the current tempo ratio.
func (d *Deck) GetTempo() float64 {
	return d.tempo.Load().(float64)
}

// SetPitch sets the pitch shift in semitones, clamped to
// [MinPitchSemitones, MaxPitchSemitones].
func (d *Deck) SetPitch(semitones float64) {
	semitones = clamp(semitones, MinPitchSemitones, MaxPitchSemitones)
	d.pitch.Store(semitones)
	d.mu.Lock()
	d.stretcher.SetPitchSemitones(semitones)
	d.mu.Unlock()
}

// GetPitch returns the current pitch shift in semitones.
func (d *Deck) GetPitch() float64 {
	return d.pitch.Load().(float64)
}

// SetBPM records the track's tempo for beat-grid and sync calculations. It
// does not itself change playback speed.
func (d *Deck) SetBPM(bpm float64) {
	d.bpm.Store(bpm)
}

// GetBPM returns the recorded BPM.
func (d *Deck) GetBPM() float64 {
	return d.bpm.Load().(float64)
}

// SetBeatOffset records, in seconds, the position of the first beat in the
// track's grid.
func (d *Deck) SetBeatOffset(seconds float64) {
	d.beatOffset.Store(seconds)
}

// GetBeatOffset returns the recorded beat offset in seconds.
func (d *Deck) GetBeatOffset() float64 {
	return d.beatOffset.Load().(float64)
}

const (
	minEQGain = 0.0
	maxEQGain = 2.0
)

// SetEQLow, SetEQMid and SetEQHigh set the three-band EQ gains, clamped to
// [minEQGain, maxEQGain].
func (d *Deck) SetEQLow(gain float32)  { d.eqLow.Store(clampF32(gain, minEQGain, maxEQGain)) }
func (d *Deck) SetEQMid(gain float32)  { d.eqMid.Store(clampF32(gain, minEQGain, maxEQGain)) }
func (d *Deck) SetEQHigh(gain float32) { d.eqHigh.Store(clampF32(gain, minEQGain, maxEQGain)) }

// GetPhase returns the deck's position within its current beat, in
// [0, 1), accounting for the recorded beat offset. Returns 0 if the recorded
// BPM is not positive; a new Deck records 120 BPM until SetBPM is called.
func (d *Deck) GetPhase() float64 {
	bpm := d.GetBPM()
	if bpm <= 0 {
		return 0
	}

	secondsPerBeat := 60.0 / bpm
	samplesPerBeat := int64(secondsPerBeat * float64(d.sampleRate))
	if samplesPerBeat <= 0 {
		return 0
	}

	offsetSamples := int64(d.GetBeatOffset() * float64(d.sampleRate))
	pos := d.samplePosition.Load() - offsetSamples

	samplesIntoBeat := pos % samplesPerBeat
	if samplesIntoBeat < 0 {
		samplesIntoBeat += samplesPerBeat
	}
	return float64(samplesIntoBeat) / float64(samplesPerBeat)
}

// Read fills output (interleaved stereo, len(output) == frames*2) with the
// deck's next frames of audio, applying EQ and gain. It always fills the
// full buffer, zeroing any trailing frames once the track ends or if the
// deck isn't playing. Read must only be called from the audio callback.
//
// Read never blocks: it only tries for the buffer/stretcher mutex, which
// Load and the seek/sync setters can hold for an unbounded time. If the
// lock is held, this deck renders silence for the call rather than stall
// the render path.
func (d *Deck) Read(output []float32, frames int) {
	for i := range output {
		output[i] = 0
	}

	if !d.playing.Load() {
		return
	}

	if !d.mu.TryLock() {
		return
	}
	defer d.mu.Unlock()

	if d.buf == nil || d.buf.Frames == 0 {
		return
	}

	tempo := d.tempo.Load().(float64)
	pitch := d.pitch.Load().(float64)

	if math.Abs(tempo-1.0) < tempoEpsilon && math.Abs(pitch) < pitchEpsilon {
		d.readDirect(output, frames)
		return
	}
	d.readStretched(output, frames)
}

// readDirect bypasses the stretcher entirely, copying source samples
// straight into output. Used whenever tempo and pitch are both
// indistinguishable from unity, eliminating stretcher latency.
func (d *Deck) readDirect(output []float32, frames int) {
	pos := d.samplePosition.Load()
	remaining := d.buf.Frames - pos
	if remaining <= 0 {
		d.playing.Store(false)
		d.trackEnded.Store(true)
		return
	}

	toRead := int64(frames)
	if toRead > remaining {
		toRead = remaining
	}

	src := d.buf.Data[pos*2 : (pos+toRead)*2]
	copy(output, src)
	newPos := d.samplePosition.Add(toRead)

	if newPos >= d.buf.Frames {
		d.playing.Store(false)
		d.trackEnded.Store(true)
	}

	d.applyEQAndGain(output, int(toRead))
}

// readStretched feeds the stretcher from the source buffer until it holds
// at least `frames` output frames, then drains that many into output.
func (d *Deck) readStretched(output []float32, frames int) {
	for d.stretcher.NumSamples() < frames {
		pos := d.samplePosition.Load()
		remaining := d.buf.Frames - pos
		if remaining <= 0 {
			d.playing.Store(false)
			d.trackEnded.Store(true)
			break
		}

		toRead := int64(stretchChunk)
		if toRead > remaining {
			toRead = remaining
		}

		src := d.buf.Data[pos*2 : (pos+toRead)*2]
		d.stretcher.Put(src)
		d.samplePosition.Add(toRead)
	}

	received := d.stretcher.Receive(output)
	if received > 0 {
		d.applyEQAndGain(output, received)
	}
}

// applyEQAndGain applies the (currently band-flat) three-band EQ average
// and linear gain to the first frames frames of buf.
func (d *Deck) applyEQAndGain(buf []float32, frames int) {
	low := d.eqLow.Load().(float32)
	mid := d.eqMid.Load().(float32)
	high := d.eqHigh.Load().(float32)
	avgEQ := (low + mid + high) / 3
	gain := d.volume.Load().(float32) * avgEQ

	n := frames * 2
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] *= gain
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
