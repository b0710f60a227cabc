package analyzer

import (
	"math"
	"testing"

	"djengine/pkg/pcm"
)

const sampleRate = 44100

// syntheticClicks builds a buffer of periodic percussive clicks at the given
// BPM: short bursts of energy spaced exactly 60/bpm seconds apart, which is
// the kind of signal an onset-strength autocorrelator is built to find.
func syntheticClicks(bpm float64, seconds float64) *pcm.Buffer {
	frames := int64(seconds * sampleRate)
	data := make([]float32, frames*2)

	samplesPerBeat := int(60.0 / bpm * sampleRate)
	clickLen := 200

	for beatStart := 0; beatStart < int(frames); beatStart += samplesPerBeat {
		for i := 0; i < clickLen && beatStart+i < int(frames); i++ {
			v := float32(math.Sin(float64(i) * 0.8))
			data[(beatStart+i)*2] = v
			data[(beatStart+i)*2+1] = v
		}
	}

	return &pcm.Buffer{SampleRate: sampleRate, Frames: frames, Data: data}
}

func TestEstimateBPM_RecoversSyntheticTempo(t *testing.T) {
	t.Parallel()

	const wantBPM = 128.0
	buf := syntheticClicks(wantBPM, 8)

	got := EstimateBPM(buf)
	if got == 0 {
		t.Fatal("EstimateBPM returned 0 for a clear periodic signal")
	}

	// Allow generous tolerance: autocorrelation peak-picking over a
	// windowed onset envelope is not exact, and half/double-tempo
	// confusions are a known failure mode of any simple BPM estimator.
	ratio := got / wantBPM
	if !isNear(ratio, 1, 0.05) && !isNear(ratio, 0.5, 0.05) && !isNear(ratio, 2, 0.05) {
		t.Errorf("EstimateBPM = %v, want near %v (or a harmonic of it)", got, wantBPM)
	}
}

func TestEstimateBPM_TooShortReturnsZero(t *testing.T) {
	t.Parallel()

	buf := &pcm.Buffer{SampleRate: sampleRate, Frames: 100, Data: make([]float32, 200)}
	if got := EstimateBPM(buf); got != 0 {
		t.Errorf("EstimateBPM on a too-short buffer = %v, want 0", got)
	}
}

func TestEstimateBPM_NilBufferReturnsZero(t *testing.T) {
	t.Parallel()

	if got := EstimateBPM(nil); got != 0 {
		t.Errorf("EstimateBPM(nil) = %v, want 0", got)
	}
}

func TestDetectBeatOffset_FindsLoudestWindow(t *testing.T) {
	t.Parallel()

	const bpm = 120.0
	frames := int64(4 * sampleRate)
	data := make([]float32, frames*2)

	spikeAt := int64(0.25 * sampleRate) // 250ms in
	for i := int64(0); i < 100; i++ {
		data[(spikeAt+i)*2] = 1
		data[(spikeAt+i)*2+1] = 1
	}

	buf := &pcm.Buffer{SampleRate: sampleRate, Frames: frames, Data: data}
	offset := DetectBeatOffset(buf, bpm)

	wantSeconds := float64(spikeAt) / sampleRate
	if math.Abs(offset-wantSeconds) > 0.02 {
		t.Errorf("DetectBeatOffset = %v, want ~%v", offset, wantSeconds)
	}
}

func TestDetectBeatOffset_ZeroBPMReturnsZero(t *testing.T) {
	t.Parallel()

	buf := &pcm.Buffer{SampleRate: sampleRate, Frames: 1000, Data: make([]float32, 2000)}
	if got := DetectBeatOffset(buf, 0); got != 0 {
		t.Errorf("DetectBeatOffset with bpm=0 = %v, want 0", got)
	}
}

func isNear(v, target, tol float64) bool {
	return math.Abs(v-target) <= tol
}
