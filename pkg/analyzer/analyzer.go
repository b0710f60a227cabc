// Package analyzer estimates BPM and beat offset for a decoded track. It
// operates on a fully materialized pcm.Buffer and never touches the audio
// callback path.
package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"djengine/pkg/pcm"
)

const (
	minBPM = 60.0
	maxBPM = 200.0

	// onsetWindowMs mirrors the ~10ms energy window used for beat-offset
	// detection; the onset envelope used for tempo estimation reuses the
	// same window size so the two analyses agree on grid resolution.
	onsetWindowMs = 10.0
)

// EstimateBPM returns a tempo estimate in beats per minute for buf, or 0 if
// the buffer is too short to analyze. It builds an onset-strength envelope
// from windowed energy, then autocorrelates that envelope via FFT and picks
// the lag with the strongest periodicity in [minBPM, maxBPM].
func EstimateBPM(buf *pcm.Buffer) float64 {
	if buf == nil || buf.Frames < int64(buf.SampleRate) {
		return 0
	}

	mono := downmix(buf)
	envelope := onsetEnvelope(mono, buf.SampleRate)
	if len(envelope) < 4 {
		return 0
	}

	hopRate := float64(buf.SampleRate) / windowSamples(buf.SampleRate)

	corr := autocorrelate(envelope)

	minLag := int(hopRate * 60.0 / maxBPM)
	maxLag := int(hopRate * 60.0 / minBPM)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(corr) {
		maxLag = len(corr) - 1
	}
	if minLag >= maxLag {
		return 0
	}

	bestLag := minLag
	bestVal := corr[minLag]
	for lag := minLag + 1; lag <= maxLag; lag++ {
		if corr[lag] > bestVal {
			bestVal = corr[lag]
			bestLag = lag
		}
	}
	if bestVal <= 0 {
		return 0
	}

	return 60.0 * hopRate / float64(bestLag)
}

// DetectBeatOffset finds the time in seconds of the strongest transient
// within the first two beat periods of buf, following the same
// energy-window scan as the original analyzer.
func DetectBeatOffset(buf *pcm.Buffer, bpm float64) float64 {
	if buf == nil || bpm <= 0 {
		return 0
	}

	sampleRate := buf.SampleRate
	secondsPerBeat := 60.0 / bpm
	samplesPerBeat := int64(secondsPerBeat * float64(sampleRate))
	if samplesPerBeat <= 0 {
		return 0
	}

	searchLen := buf.Frames
	if max := int64(sampleRate) * 10; searchLen > max {
		searchLen = max
	}
	if limit := samplesPerBeat * 2; searchLen > limit {
		searchLen = limit
	}

	windowSize := sampleRate / 100
	if windowSize < 1 {
		windowSize = 1
	}

	var maxEnergy float64
	var maxPos int64

	step := windowSize / 2
	if step < 1 {
		step = 1
	}

	for i := int64(0); i < searchLen; i += int64(step) {
		var energy float64
		for j := 0; j < windowSize; j++ {
			idx := i + int64(j)
			if idx >= buf.Frames {
				break
			}
			l := buf.Data[idx*2]
			r := buf.Data[idx*2+1]
			energy += float64(l*l + r*r)
		}
		if energy > maxEnergy {
			maxEnergy = energy
			maxPos = i
		}
	}

	return float64(maxPos) / float64(sampleRate)
}

func downmix(buf *pcm.Buffer) []float64 {
	mono := make([]float64, buf.Frames)
	for i := int64(0); i < buf.Frames; i++ {
		mono[i] = float64(buf.Data[i*2]+buf.Data[i*2+1]) / 2
	}
	return mono
}

func windowSamples(sampleRate int) float64 {
	w := sampleRate * int(onsetWindowMs) / 1000
	if w < 1 {
		w = 1
	}
	return float64(w)
}

// onsetEnvelope returns the half-wave-rectified frame-to-frame energy
// difference of mono, one value per onsetWindowMs window. Percussive
// transients produce sharp positive spikes in this signal.
func onsetEnvelope(mono []float64, sampleRate int) []float64 {
	win := int(windowSamples(sampleRate))
	nFrames := len(mono) / win
	if nFrames < 2 {
		return nil
	}

	energy := make([]float64, nFrames)
	for f := 0; f < nFrames; f++ {
		var e float64
		start := f * win
		for i := 0; i < win; i++ {
			s := mono[start+i]
			e += s * s
		}
		energy[f] = e
	}

	envelope := make([]float64, nFrames-1)
	for f := 1; f < nFrames; f++ {
		d := energy[f] - energy[f-1]
		if d > 0 {
			envelope[f-1] = d
		}
	}
	return envelope
}

// autocorrelate computes the autocorrelation of x via FFT (Wiener-Khinchin):
// zero-pad to the next power of two, forward transform, multiply by the
// complex conjugate, inverse transform.
func autocorrelate(x []float64) []float64 {
	n := 1
	for n < len(x)*2 {
		n *= 2
	}

	padded := make([]float64, n)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	power := make([]complex128, n)
	for i, c := range spectrum {
		power[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	inv := fft.IFFT(power)
	out := make([]float64, len(x))
	for i := range out {
		out[i] = math.Abs(real(inv[i]))
	}
	return out
}
