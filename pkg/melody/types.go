// Package melody turns a frame-wise pitch track into a list of quantized notes
package melody

import (
	"errors"
	"fmt"
	"math"
)

// Unvoiced is the quantized value of a frame with no detected pitch
const Unvoiced = 0

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNonFiniteFrequency is returned for NaN or infinite frame values under NonFiniteReject
	ErrNonFiniteFrequency = errors.New("non-finite frequency")
)

// NonFinitePolicy selects how NaN and infinite frame values are treated
type NonFinitePolicy int

const (
	// NonFiniteReject fails the mapping with ErrNonFiniteFrequency
	NonFiniteReject NonFinitePolicy = iota
	// NonFiniteUnvoiced maps the frame to the unvoiced sentinel
	NonFiniteUnvoiced
)

func (p NonFinitePolicy) String() string {
	switch p {
	case NonFiniteReject:
		return "reject"
	case NonFiniteUnvoiced:
		return "unvoiced"
	default:
		return "unknown"
	}
}

// ParseNonFinitePolicy parses "reject" or "unvoiced"
func ParseNonFinitePolicy(s string) (NonFinitePolicy, error) {
	switch s {
	case "", "reject":
		return NonFiniteReject, nil
	case "unvoiced":
		return NonFiniteUnvoiced, nil
	default:
		return NonFiniteReject, fmt.Errorf("%w: unknown non-finite policy %q", ErrInvalidConfig, s)
	}
}

// Note is a single segmented note
type Note struct {
	Onset    float64 `json:"onset"`    // seconds from the first frame
	Duration float64 `json:"duration"` // seconds
	Pitch    int     `json:"pitch"`    // quantized scale value, never Unvoiced
}

// End returns the note offset in seconds
func (n Note) End() float64 {
	return n.Onset + n.Duration
}

// Run is a maximal stretch of frames sharing one quantized value
type Run struct {
	Value  int
	Start  int // index of the first frame
	Length int // number of frames
}

// Config holds the analysis parameters of the pipeline
type Config struct {
	SampleRate         int
	HopSize            int
	SmoothDuration     float64 // seconds, <= 0 disables
	MinDuration        float64 // seconds, inclusive
	ReferenceFrequency float64 // Hz at ReferenceUnit
	ReferenceUnit      int
	UnitsPerOctave     float64
	PadFrames          int // unvoiced frames prepended before mapping
	NonFinite          NonFinitePolicy
}

// Default analysis parameters
const (
	DefaultSampleRate         = 44100
	DefaultHopSize            = 128
	DefaultSmoothDuration     = 0.25
	DefaultMinDuration        = 0.1
	DefaultReferenceFrequency = 440.0
	DefaultReferenceUnit      = 69
	DefaultUnitsPerOctave     = 12.0
)

// DefaultConfig returns a 12-TET MIDI configuration at 44.1 kHz with a 128 sample hop
func DefaultConfig() Config {
	return Config{
		SampleRate:         DefaultSampleRate,
		HopSize:            DefaultHopSize,
		SmoothDuration:     DefaultSmoothDuration,
		MinDuration:        DefaultMinDuration,
		ReferenceFrequency: DefaultReferenceFrequency,
		ReferenceUnit:      DefaultReferenceUnit,
		UnitsPerOctave:     DefaultUnitsPerOctave,
		NonFinite:          NonFiniteReject,
	}
}

// Validate reports the first malformed parameter
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.HopSize <= 0:
		return fmt.Errorf("%w: hop size must be positive, got %d", ErrInvalidConfig, c.HopSize)
	case math.IsNaN(c.MinDuration) || math.IsInf(c.MinDuration, 0) || c.MinDuration < 0:
		return fmt.Errorf("%w: min duration must be a finite value >= 0, got %v", ErrInvalidConfig, c.MinDuration)
	case math.IsNaN(c.SmoothDuration) || math.IsInf(c.SmoothDuration, 0):
		return fmt.Errorf("%w: smooth duration must be finite, got %v", ErrInvalidConfig, c.SmoothDuration)
	case !(c.ReferenceFrequency > 0) || math.IsInf(c.ReferenceFrequency, 0):
		return fmt.Errorf("%w: reference frequency must be positive, got %v", ErrInvalidConfig, c.ReferenceFrequency)
	case !(c.UnitsPerOctave > 0) || math.IsInf(c.UnitsPerOctave, 0):
		return fmt.Errorf("%w: units per octave must be positive, got %v", ErrInvalidConfig, c.UnitsPerOctave)
	case c.PadFrames < 0:
		return fmt.Errorf("%w: pad frames must be >= 0, got %d", ErrInvalidConfig, c.PadFrames)
	case c.NonFinite != NonFiniteReject && c.NonFinite != NonFiniteUnvoiced:
		return fmt.Errorf("%w: unknown non-finite policy %d", ErrInvalidConfig, c.NonFinite)
	}
	return nil
}

// FrameDuration returns the length of one analysis hop in seconds
func (c Config) FrameDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}

// FramesToSeconds converts a frame count to seconds
func (c Config) FramesToSeconds(frames int) float64 {
	return float64(frames) * float64(c.HopSize) / float64(c.SampleRate)
}
