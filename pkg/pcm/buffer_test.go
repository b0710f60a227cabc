package pcm

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeTestWAV(t *testing.T, channels int, samples []int16) string {
	t.Helper()

	buf := new(bytes.Buffer)
	numChannels := uint16(channels)
	bits := uint16(16)
	sampleRate := uint32(44100)
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

	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test wav: %v", err)
	}
	return path
}

func TestLoad_StereoPreservesFrameCount(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 100, 200, -100, -200, 0, 300, -300}
	path := writeTestWAV(t, 2, samples)

	buf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantFrames := int64(len(samples) / 2)
	if buf.Frames != wantFrames {
		t.Errorf("Frames = %d, want %d", buf.Frames, wantFrames)
	}
	if buf.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", buf.SampleRate)
	}
	if len(buf.Data) != int(wantFrames)*2 {
		t.Errorf("len(Data) = %d, want %d", len(buf.Data), wantFrames*2)
	}
}

func TestLoad_MonoUpmixedToStereo(t *testing.T) {
	t.Parallel()

	samples := []int16{1000, 2000, 3000}
	path := writeTestWAV(t, 1, samples)

	buf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if buf.Frames != int64(len(samples)) {
		t.Fatalf("Frames = %d, want %d", buf.Frames, len(samples))
	}
	for i := range samples {
		l, r := buf.Data[i*2], buf.Data[i*2+1]
		if l != r {
			t.Errorf("frame %d: left %v != right %v after mono upmix", i, l, r)
		}
	}
}

func TestLoad_DurationMatchesFramesAndRate(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 44100*2) // 1 second stereo
	path := writeTestWAV(t, 2, samples)

	buf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if d := buf.DurationSeconds(); d < 0.99 || d > 1.01 {
		t.Errorf("DurationSeconds() = %v, want ~1.0", d)
	}
}

func TestLoad_UnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "track.xyz")
	if err := os.WriteFile(path, []byte("irrelevant"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown extension")
	}
}
