package deck

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const testSampleRate = 44100

func writeRampWAV(t *testing.T, frames int) (string, []int16) {
	t.Helper()

	samples := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(i % 1000)
		samples[i*2] = v
		samples[i*2+1] = -v
	}

	buf := new(bytes.Buffer)
	numChannels := uint16(2)
	bits := uint16(16)
	sampleRate := uint32(testSampleRate)
	byteRate := sampleRate * uint32(numChannels) * uint32(bits/8)
	blockAlign := numChannels * (bits / 8)
	dataSize := uint32(len(samples) * 2)
	riffSize := 36 + dataSize

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, numChannels)
	binary.Write(buf, binary.LittleEndian, sampleRate)
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}

	path := filepath.Join(t.TempDir(), "ramp.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path, samples
}

func TestDeck_SilentWhenNotPlaying(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 100)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	out := make([]float32, 20)
	for i := range out {
		out[i] = 42
	}
	d.Read(out, 10)
	for i, v := range out {
		if v != 0 {
			t.Errorf("sample %d = %v, want 0 (not playing)", i, v)
		}
	}
}

func TestDeck_SilentWhenUnloaded(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	d.Play(-1)

	out := make([]float32, 20)
	d.Read(out, 10)
	for i, v := range out {
		if v != 0 {
			t.Errorf("sample %d = %v, want 0 (unloaded)", i, v)
		}
	}
}

func TestDeck_FastPathSampleAccurate(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, samples := writeRampWAV(t, 1000)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d.Play(-1)

	out := make([]float32, 200) // 100 frames
	d.Read(out, 100)

	for i := 0; i < 200; i++ {
		want := float32(samples[i]) / 32768
		if diff := out[i] - want; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("sample %d = %v, want %v (fast-path must be sample-accurate)", i, out[i], want)
		}
	}
}

func TestDeck_CursorNeverExceedsTrackBounds(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 50)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d.Play(-1)

	out := make([]float32, 400)
	for i := 0; i < 5; i++ {
		d.Read(out, 200)
	}

	if pos := d.GetSamplePosition(); pos > 50 {
		t.Errorf("sample position = %d, must never exceed track length 50", pos)
	}
	if d.IsPlaying() {
		t.Error("deck should have stopped at end of track")
	}
}

func TestDeck_SetPositionRoundTrip(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, testSampleRate*2)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	d.SetPosition(1.0)
	if got := d.GetPosition(); got < 0.999 || got > 1.001 {
		t.Errorf("GetPosition() = %v, want ~1.0", got)
	}
}

func TestDeck_SetPositionClampedToBounds(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 100)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	d.SetPosition(-5)
	if d.GetSamplePosition() != 0 {
		t.Errorf("negative seek should clamp to 0, got %d", d.GetSamplePosition())
	}

	d.SetPosition(1000)
	if d.GetSamplePosition() != 100 {
		t.Errorf("seek past end should clamp to track length, got %d", d.GetSamplePosition())
	}
}

func TestDeck_TempoAndPitchClamped(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)

	d.SetTempo(10)
	if d.GetTempo() != MaxTempo {
		t.Errorf("SetTempo(10) = %v, want clamp to %v", d.GetTempo(), MaxTempo)
	}
	d.SetTempo(0.01)
	if d.GetTempo() != MinTempo {
		t.Errorf("SetTempo(0.01) = %v, want clamp to %v", d.GetTempo(), MinTempo)
	}

	d.SetPitch(100)
	if d.GetPitch() != MaxPitchSemitones {
		t.Errorf("SetPitch(100) = %v, want clamp to %v", d.GetPitch(), MaxPitchSemitones)
	}
	d.SetPitch(-100)
	if d.GetPitch() != MinPitchSemitones {
		t.Errorf("SetPitch(-100) = %v, want clamp to %v", d.GetPitch(), MinPitchSemitones)
	}
}

func TestDeck_PhaseIsSawtooth(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	d.SetBPM(120) // 0.5s per beat -> 22050 samples per beat at 44100Hz
	d.SetBeatOffset(0)

	d.SetSamplePosition(0, true)
	if p := d.GetPhase(); p != 0 {
		t.Errorf("phase at beat start = %v, want 0", p)
	}

	d.SetSamplePosition(11025, true) // halfway into the beat
	if p := d.GetPhase(); p < 0.49 || p > 0.51 {
		t.Errorf("phase halfway into beat = %v, want ~0.5", p)
	}

	d.SetSamplePosition(22050, true) // exactly one beat later
	if p := d.GetPhase(); p != 0 {
		t.Errorf("phase one beat later = %v, want 0 (sawtooth wraps)", p)
	}
}

func TestDeck_EQGainsClamped(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)

	d.SetEQLow(-1)
	d.SetEQMid(1e6)
	d.SetEQHigh(1)

	if d.eqLow.Load().(float32) != 0 {
		t.Errorf("SetEQLow(-1) stored %v, want 0", d.eqLow.Load())
	}
	if d.eqMid.Load().(float32) != 2 {
		t.Errorf("SetEQMid(1e6) stored %v, want 2", d.eqMid.Load())
	}
	if d.eqHigh.Load().(float32) != 1 {
		t.Errorf("SetEQHigh(1) stored %v, want 1", d.eqHigh.Load())
	}
}

func TestDeck_ReadRendersSilenceWhenMutexHeld(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 1000)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d.Play(-1)

	// Simulate a concurrent Load/seek holding the buffer mutex: Read must
	// never block on it, and must render silence for the call instead.
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]float32, 20)
	for i := range out {
		out[i] = 42
	}
	d.Read(out, 10)
	for i, v := range out {
		if v != 0 {
			t.Errorf("sample %d = %v, want 0 (mutex held elsewhere)", i, v)
		}
	}
}

func TestDeck_TrackEndedNotSetByPauseOrStop(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 1000)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d.Play(-1)

	out := make([]float32, 20)
	d.Read(out, 10)
	d.Pause()
	if d.ConsumeTrackEnded() {
		t.Error("Pause must not be reported as a track-ended condition")
	}

	d.Play(-1)
	d.Read(out, 10)
	d.Stop()
	if d.ConsumeTrackEnded() {
		t.Error("Stop must not be reported as a track-ended condition")
	}
}

func TestDeck_TrackEndedSetOnExhaustion(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, 50)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d.Play(-1)

	out := make([]float32, 200)
	d.Read(out, 100) // runs off the end of a 50-frame track

	if !d.ConsumeTrackEnded() {
		t.Error("running off the end of the track should set trackEnded")
	}
	if d.ConsumeTrackEnded() {
		t.Error("ConsumeTrackEnded should clear the flag after reading it once")
	}
}

func TestDeck_LoadUnloadLoadDurationRoundTrip(t *testing.T) {
	t.Parallel()

	d := New(testSampleRate)
	path, _ := writeRampWAV(t, testSampleRate)
	if err := d.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	dur1 := d.GetDuration()
	d.Unload()
	if d.GetDuration() != 0 {
		t.Errorf("GetDuration() after Unload = %v, want 0", d.GetDuration())
	}

	if err := d.Load(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	dur2 := d.GetDuration()
	if dur1 != dur2 {
		t.Errorf("duration changed across unload/reload: %v vs %v", dur1, dur2)
	}
}
