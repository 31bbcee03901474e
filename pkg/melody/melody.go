package melody

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Result holds every intermediate stage of one pipeline run
type Result struct {
	Quantized []int  // mapper output, including any padding frames
	Smoothed  []int  // median filtered sequence, same length as Quantized
	Window    int    // median window in frames, 0 when smoothing was off
	Notes     []Note // segmenter output
}

// Analyze runs the full pipeline and keeps the intermediate sequences
func Analyze(freqs []float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	frames := freqs
	if cfg.PadFrames > 0 {
		frames = make([]float64, cfg.PadFrames+len(freqs))
		copy(frames[cfg.PadFrames:], freqs)
	}

	quantized, err := HzToScale(frames, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to map frequencies: %w", err)
	}

	window := WindowSize(cfg.SmoothDuration, cfg.SampleRate, cfg.HopSize)
	smoothed := MedianFilter(quantized, window)

	return &Result{
		Quantized: quantized,
		Smoothed:  smoothed,
		Window:    window,
		Notes:     Segment(smoothed, cfg),
	}, nil
}

// Transcribe converts a frame sequence in Hz into notes
func Transcribe(freqs []float64, cfg Config) ([]Note, error) {
	res, err := Analyze(freqs, cfg)
	if err != nil {
		return nil, err
	}
	return res.Notes, nil
}

// Summary describes a note list
type Summary struct {
	Count          int     `json:"count"`
	LowestPitch    int     `json:"lowest_pitch"`
	HighestPitch   int     `json:"highest_pitch"`
	MeanPitch      float64 `json:"mean_pitch"`
	MedianPitch    float64 `json:"median_pitch"`
	MeanDuration   float64 `json:"mean_duration"`
	MedianDuration float64 `json:"median_duration"`
	VoicedSeconds  float64 `json:"voiced_seconds"`
	Span           float64 `json:"span"` // first onset to last offset
}

// Summarize computes pitch and duration statistics of notes
func Summarize(notes []Note) Summary {
	if len(notes) == 0 {
		return Summary{}
	}

	pitches := make([]float64, len(notes))
	durations := make([]float64, len(notes))
	for i, n := range notes {
		pitches[i] = float64(n.Pitch)
		durations[i] = n.Duration
	}

	s := Summary{
		Count:         len(notes),
		LowestPitch:   int(floats.Min(pitches)),
		HighestPitch:  int(floats.Max(pitches)),
		MeanPitch:     stat.Mean(pitches, nil),
		MeanDuration:  stat.Mean(durations, nil),
		VoicedSeconds: floats.Sum(durations),
		Span:          notes[len(notes)-1].End() - notes[0].Onset,
	}

	sort.Float64s(pitches)
	sort.Float64s(durations)
	s.MedianPitch = stat.Quantile(0.5, stat.Empirical, pitches, nil)
	s.MedianDuration = stat.Quantile(0.5, stat.Empirical, durations, nil)
	return s
}
