package converter

import (
	"fmt"
	"io"
	"os"

	"github.com/mjibson/go-dsp/wav"
)

// AudioInfo describes a WAV file header
type AudioInfo struct {
	SampleRate int
	Channels   int
	Samples    int
	Duration   float64 // seconds
}

// ProbeAudio reads a WAV header. Sample data is not decoded.
func ProbeAudio(r io.Reader) (*AudioInfo, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if w.SampleRate == 0 {
		return nil, fmt.Errorf("failed to read WAV header: zero sample rate")
	}
	return &AudioInfo{
		SampleRate: int(w.SampleRate),
		Channels:   int(w.NumChannels),
		Samples:    w.Samples,
		Duration:   w.Duration.Seconds(),
	}, nil
}

// ProbeDurationFile returns the length in seconds of a WAV file
func ProbeDurationFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := ProbeAudio(f)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
