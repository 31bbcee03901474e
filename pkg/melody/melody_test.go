package melody

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func constantHz(hz float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = hz
	}
	return out
}

func TestTranscribeSingleSustainedNote(t *testing.T) {
	notes, err := Transcribe(constantHz(440, 100), DefaultConfig())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("Transcribe() returned %d notes, want 1", len(notes))
	}
	checkNote(t, notes[0], Note{Onset: 0, Duration: 100 * 128 / 44100.0, Pitch: 69})
}

func TestTranscribeAlternatingGlitches(t *testing.T) {
	var freqs []float64
	for i := 0; i < 20; i++ {
		if (i/2)%2 == 0 {
			freqs = append(freqs, 440)
		} else {
			freqs = append(freqs, 0)
		}
	}

	for _, smooth := range []float64{0, DefaultSmoothDuration} {
		cfg := DefaultConfig()
		cfg.SmoothDuration = smooth
		notes, err := Transcribe(freqs, cfg)
		if err != nil {
			t.Fatalf("Transcribe() error = %v", err)
		}
		if len(notes) != 0 {
			t.Errorf("smooth=%v: Transcribe() = %v, want no notes", smooth, notes)
		}
	}
}

func TestTranscribeEmptyAndSilent(t *testing.T) {
	tests := []struct {
		name  string
		freqs []float64
	}{
		{"empty", []float64{}},
		{"nil", nil},
		{"silent", constantHz(0, 500)},
		{"negative unvoiced markers", constantHz(-1, 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes, err := Transcribe(tt.freqs, DefaultConfig())
			if err != nil {
				t.Fatalf("Transcribe() error = %v", err)
			}
			if notes == nil || len(notes) != 0 {
				t.Errorf("Transcribe() = %#v, want empty note list", notes)
			}
		})
	}
}

func TestTranscribeOctaveJump(t *testing.T) {
	freqs := append(constantHz(440, 50), constantHz(880, 50)...)

	notes, err := Transcribe(freqs, DefaultConfig())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("Transcribe() returned %d notes, want 2: %+v", len(notes), notes)
	}

	half := 50 * 128 / 44100.0
	checkNote(t, notes[0], Note{Onset: 0, Duration: half, Pitch: 69})
	checkNote(t, notes[1], Note{Onset: half, Duration: half, Pitch: 81})
	if notes[0].End() > notes[1].Onset+1e-12 {
		t.Errorf("notes overlap: %+v %+v", notes[0], notes[1])
	}
}

func TestTranscribePadFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothDuration = 0
	cfg.PadFrames = 8

	res, err := Analyze(constantHz(440, 100), cfg)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(res.Quantized) != 108 || len(res.Smoothed) != 108 {
		t.Fatalf("sequence lengths = %d/%d, want 108", len(res.Quantized), len(res.Smoothed))
	}
	if len(res.Notes) != 1 {
		t.Fatalf("Analyze() returned %d notes, want 1", len(res.Notes))
	}
	checkNote(t, res.Notes[0], Note{Onset: 8 * 128 / 44100.0, Duration: 100 * 128 / 44100.0, Pitch: 69})
}

func TestAnalyzeReportsWindow(t *testing.T) {
	res, err := Analyze(constantHz(440, 10), DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Window != 87 {
		t.Errorf("Window = %d, want 87", res.Window)
	}
}

func TestTranscribeNonFinite(t *testing.T) {
	freqs := append(constantHz(440, 100), math.NaN())

	if _, err := Transcribe(freqs, DefaultConfig()); !errors.Is(err, ErrNonFiniteFrequency) {
		t.Errorf("Transcribe() error = %v, want ErrNonFiniteFrequency", err)
	}

	cfg := DefaultConfig()
	cfg.NonFinite = NonFiniteUnvoiced
	notes, err := Transcribe(freqs, cfg)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("Transcribe() returned %d notes, want 1", len(notes))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"smoothing disabled", func(c *Config) { c.SmoothDuration = -1 }, true},
		{"zero min duration", func(c *Config) { c.MinDuration = 0 }, true},
		{"negative min duration", func(c *Config) { c.MinDuration = -0.1 }, false},
		{"NaN min duration", func(c *Config) { c.MinDuration = math.NaN() }, false},
		{"infinite min duration", func(c *Config) { c.MinDuration = math.Inf(1) }, false},
		{"infinite smooth duration", func(c *Config) { c.SmoothDuration = math.Inf(1) }, false},
		{"negative infinite smooth duration", func(c *Config) { c.SmoothDuration = math.Inf(-1) }, false},
		{"very long smooth duration", func(c *Config) { c.SmoothDuration = 1e7 }, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, false},
		{"negative hop", func(c *Config) { c.HopSize = -128 }, false},
		{"zero reference", func(c *Config) { c.ReferenceFrequency = 0 }, false},
		{"zero units per octave", func(c *Config) { c.UnitsPerOctave = 0 }, false},
		{"negative padding", func(c *Config) { c.PadFrames = -1 }, false},
		{"bad policy", func(c *Config) { c.NonFinite = NonFinitePolicy(7) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTranscribeRejectsBadConfigBeforeMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HopSize = 0
	_, err := Transcribe([]float64{math.NaN()}, cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Transcribe() error = %v, want ErrInvalidConfig", err)
	}
}

func TestParseNonFinitePolicy(t *testing.T) {
	for in, want := range map[string]NonFinitePolicy{"": NonFiniteReject, "reject": NonFiniteReject, "unvoiced": NonFiniteUnvoiced} {
		got, err := ParseNonFinitePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseNonFinitePolicy(%q) = %v, %v, want %v", in, got, err, want)
		}
		if in != "" && got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := ParseNonFinitePolicy("drop"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseNonFinitePolicy(drop) error = %v, want ErrInvalidConfig", err)
	}
}

// Random melodies with dropouts and jitter must always give ordered,
// non-overlapping notes that respect the minimum duration.
func TestTranscribeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := DefaultConfig()

	for trial := 0; trial < 50; trial++ {
		var freqs []float64
		for len(freqs) < 2000 {
			n := 1 + rng.Intn(120)
			hz := 0.0
			if rng.Float64() > 0.3 {
				hz = 110 * math.Exp2(float64(rng.Intn(36))/12)
			}
			for i := 0; i < n; i++ {
				jitter := 1 + (rng.Float64()-0.5)*0.02
				freqs = append(freqs, hz*jitter)
			}
		}

		cfg.SmoothDuration = []float64{0, 0.05, 0.25}[trial%3]
		res, err := Analyze(freqs, cfg)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(res.Quantized) != len(freqs) || len(res.Smoothed) != len(freqs) {
			t.Fatalf("trial %d: lengths %d/%d, want %d", trial, len(res.Quantized), len(res.Smoothed), len(freqs))
		}

		for i, n := range res.Notes {
			if n.Duration < cfg.MinDuration {
				t.Errorf("trial %d: note %d shorter than minimum: %+v", trial, i, n)
			}
			if n.Pitch == Unvoiced || n.Onset < 0 || n.Duration <= 0 {
				t.Errorf("trial %d: malformed note %+v", trial, n)
			}
			if i > 0 && res.Notes[i-1].End() > n.Onset+1e-9 {
				t.Errorf("trial %d: notes %d and %d overlap", trial, i-1, i)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	notes := []Note{
		{Onset: 0, Duration: 0.5, Pitch: 60},
		{Onset: 0.5, Duration: 0.25, Pitch: 64},
		{Onset: 1, Duration: 1, Pitch: 67},
	}

	s := Summarize(notes)
	if s.Count != 3 || s.LowestPitch != 60 || s.HighestPitch != 67 {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.MedianPitch != 64 || s.MedianDuration != 0.5 {
		t.Errorf("medians = %v, %v, want 64, 0.5", s.MedianPitch, s.MedianDuration)
	}
	if math.Abs(s.MeanPitch-191.0/3) > 1e-9 || math.Abs(s.VoicedSeconds-1.75) > 1e-9 || s.Span != 2 {
		t.Errorf("Summarize() = %+v", s)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero value", empty)
	}
}
