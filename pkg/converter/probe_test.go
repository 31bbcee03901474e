package converter

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// wavBytes builds a PCM WAV file with numSamples zeroed frames
func wavBytes(sampleRate, channels, bits, numSamples int) []byte {
	blockAlign := channels * bits / 8
	dataSize := numSamples * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestProbeAudio(t *testing.T) {
	info, err := ProbeAudio(bytes.NewReader(wavBytes(44100, 1, 16, 44100*2)))
	if err != nil {
		t.Fatalf("ProbeAudio() error = %v", err)
	}
	if info.SampleRate != 44100 || info.Channels != 1 {
		t.Errorf("ProbeAudio() = %+v", info)
	}
	if !near(info.Duration, 2) {
		t.Errorf("Duration = %v, want 2", info.Duration)
	}
}

func TestProbeAudioInvalid(t *testing.T) {
	if _, err := ProbeAudio(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("ProbeAudio() should reject non-WAV data")
	}
}

func TestProbeDurationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, wavBytes(8000, 1, 16, 4000), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := ProbeDurationFile(path)
	if err != nil {
		t.Fatalf("ProbeDurationFile() error = %v", err)
	}
	if !near(d, 0.5) {
		t.Errorf("ProbeDurationFile() = %v, want 0.5", d)
	}

	if _, err := ProbeDurationFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("ProbeDurationFile() should fail for a missing file")
	}
}
