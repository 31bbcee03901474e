package melody

import (
	"fmt"
	"math"
)

// Quantize rounds a continuous scale value to the nearest unit, ties to even
func Quantize(scale float64) int {
	return int(math.RoundToEven(scale))
}

// ScaleValue returns the unrounded scale position of a positive frequency
func (c Config) ScaleValue(hz float64) float64 {
	return float64(c.ReferenceUnit) + c.UnitsPerOctave*math.Log2(hz/c.ReferenceFrequency)
}

// HzToScale maps each frame frequency to a quantized scale value.
// Frames at or below 0 Hz map to Unvoiced. Voiced frames that would round
// to Unvoiced or below are clamped to 1.
func HzToScale(freqs []float64, cfg Config) ([]int, error) {
	out := make([]int, len(freqs))
	for i, f := range freqs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if cfg.NonFinite == NonFiniteUnvoiced {
				out[i] = Unvoiced
				continue
			}
			return nil, fmt.Errorf("%w at frame %d: %v", ErrNonFiniteFrequency, i, f)
		}
		if f <= 0 {
			out[i] = Unvoiced
			continue
		}
		v := Quantize(cfg.ScaleValue(f))
		if v <= Unvoiced {
			v = 1
		}
		out[i] = v
	}
	return out, nil
}

// ScaleToHz returns the frequency at the center of a scale unit
func (c Config) ScaleToHz(unit int) float64 {
	return c.ReferenceFrequency * math.Exp2(float64(unit-c.ReferenceUnit)/c.UnitsPerOctave)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the scientific pitch name of a MIDI note number (60 = C4)
func NoteName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprintf("?%d", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], pitch/12-1)
}
