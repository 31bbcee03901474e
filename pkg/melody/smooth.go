package melody

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MaxWindow bounds the median window so that absurd smoothing durations
// cannot overflow the frame count
const MaxWindow = math.MaxInt32

// WindowSize converts a smoothing duration to an odd median window in frames.
// It returns 0 when smoothing is disabled.
func WindowSize(smoothDuration float64, sampleRate, hopSize int) int {
	if !(smoothDuration > 0) || math.IsInf(smoothDuration, 0) || sampleRate <= 0 || hopSize <= 0 {
		return 0
	}
	frames := math.Round(smoothDuration * float64(sampleRate) / float64(hopSize))
	if frames >= MaxWindow {
		return MaxWindow
	}
	w := int(frames)
	if w%2 == 0 {
		w++
	}
	return w
}

// MedianFilter applies a sliding median of the given window to seq.
// The sequence is zero padded at both edges and unvoiced frames take part
// in the median like any other value. A window of 1 or less returns a copy.
func MedianFilter(seq []int, window int) []int {
	out := make([]int, len(seq))
	if window <= 1 || len(seq) == 0 {
		copy(out, seq)
		return out
	}
	if window%2 == 0 {
		window++
	}
	// A window of 2n+1 already spans the whole sequence from every frame.
	// Wider windows only add padding zeros, which cannot move the median of
	// non-negative scale values off 0.
	if limit := 2*len(seq) + 1; window > limit {
		window = limit
	}

	half := window / 2
	buf := make([]float64, window)
	for i := range seq {
		for k := 0; k < window; k++ {
			j := i - half + k
			if j < 0 || j >= len(seq) {
				buf[k] = 0
			} else {
				buf[k] = float64(seq[j])
			}
		}
		sort.Float64s(buf)
		out[i] = int(stat.Quantile(0.5, stat.Empirical, buf, nil))
	}
	return out
}

// Smooth median filters seq with the window derived from cfg
func Smooth(seq []int, cfg Config) []int {
	return MedianFilter(seq, WindowSize(cfg.SmoothDuration, cfg.SampleRate, cfg.HopSize))
}
