package pitchtrack

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// DefaultMaxFrames caps the frames a CSV track may expand to, about six
// hours at a 128 sample hop and 44.1 kHz
const DefaultMaxFrames = 1 << 23

// maxSparsity is how many frames one timestamped row may stand for before a
// track counts as too sparse to be a frame-wise export
const maxSparsity = 64

// CSV reads "time,frequency" rows as exported by Melodia and Sonic Visualiser.
// A single column is read as one frequency per frame at the configured hop.
type CSV struct {
	SampleRate int // sample rate assumed for the timestamps
	HopSize    int // hop used when the file has no timestamps
	MaxFrames  int // frame limit after timestamp placement, 0 means DefaultMaxFrames
}

// NewCSV creates a CSV codec for 44.1 kHz tracks with a 128 sample hop
func NewCSV() *CSV {
	return &CSV{SampleRate: 44100, HopSize: 128, MaxFrames: DefaultMaxFrames}
}

// Name returns the codec name
func (c *CSV) Name() string { return "csv" }

// Extensions returns the file extensions handled by the codec
func (c *CSV) Extensions() []string { return []string{".csv", ".txt"} }

// Parse reads a track. With timestamps, the hop is inferred from the median
// frame step and each row lands on the frame nearest its timestamp. Frames no
// row covers, including any before the first timestamp, are unvoiced.
func (c *CSV) Parse(data []byte) (*Track, error) {
	if c.SampleRate <= 0 || c.HopSize <= 0 {
		return nil, errors.New("csv codec needs a positive sample rate and hop size")
	}
	limit := c.MaxFrames
	if limit <= 0 {
		limit = DefaultMaxFrames
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var times, freqs []float64
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
		}
		line++

		switch len(rec) {
		case 1:
			f, err := parseFloat(rec[0])
			if err != nil {
				if line == 1 {
					continue // header
				}
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidTrack, line, err)
			}
			freqs = append(freqs, f)
		default:
			t, terr := parseFloat(rec[0])
			f, ferr := parseFloat(rec[1])
			if terr != nil || ferr != nil {
				if line == 1 {
					continue
				}
				return nil, fmt.Errorf("%w: line %d: expected time,frequency", ErrInvalidTrack, line)
			}
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return nil, fmt.Errorf("%w: line %d: timestamp %v is not finite", ErrInvalidTrack, line, t)
			}
			times = append(times, t)
			freqs = append(freqs, f)
		}
	}

	if len(times) > 0 && len(times) != len(freqs) {
		return nil, fmt.Errorf("%w: mixed one and two column rows", ErrInvalidTrack)
	}

	track := &Track{SampleRate: c.SampleRate, HopSize: c.HopSize}
	if len(freqs) > limit {
		return nil, fmt.Errorf("%w: %d frames exceeds the limit of %d", ErrInvalidTrack, len(freqs), limit)
	}
	if len(times) < 2 {
		track.Frequencies = freqs
		return track, nil
	}

	step, err := medianStep(times)
	if err != nil {
		return nil, err
	}
	hop := int(math.Round(step * float64(c.SampleRate)))
	if hop <= 0 {
		return nil, fmt.Errorf("%w: frame step %.6fs is below one sample", ErrInvalidTrack, step)
	}
	track.HopSize = hop

	frames, err := placeRows(times, float64(c.SampleRate)/float64(hop), limit)
	if err != nil {
		return nil, err
	}
	track.Frequencies = make([]float64, frames[len(frames)-1]+1)
	for i, f := range freqs {
		track.Frequencies[frames[i]] = f
	}
	return track, nil
}

// placeRows maps each timestamp to a frame index at the given frame rate.
// Indices strictly increase so rows that round onto the same frame keep
// their order. The implied track length is checked before anything sized
// by it is allocated.
func placeRows(times []float64, frameRate float64, limit int) ([]int, error) {
	if times[0] < 0 {
		return nil, fmt.Errorf("%w: negative timestamp %v", ErrInvalidTrack, times[0])
	}
	last := math.Round(times[len(times)-1] * frameRate)
	if last+1 > float64(limit) {
		return nil, fmt.Errorf("%w: timestamps span more than %d frames", ErrInvalidTrack, limit)
	}
	if n := int(last) + 1; n > 4096 && n > maxSparsity*len(times) {
		return nil, fmt.Errorf("%w: %d rows spread over %d frames", ErrInvalidTrack, len(times), n)
	}

	frames := make([]int, len(times))
	prev := -1
	for i, t := range times {
		idx := int(math.Round(t * frameRate))
		if idx <= prev {
			idx = prev + 1
		}
		frames[i] = idx
		prev = idx
	}
	return frames, nil
}

// Generate writes one "time,frequency" row per frame
func (c *CSV) Generate(track *Track) ([]byte, error) {
	if track == nil {
		return nil, errors.New("nil track")
	}
	if track.SampleRate <= 0 || track.HopSize <= 0 {
		return nil, fmt.Errorf("%w: sample rate and hop size must be positive", ErrInvalidTrack)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, f := range track.Frequencies {
		t := float64(i) * float64(track.HopSize) / float64(track.SampleRate)
		if err := w.Write([]string{
			strconv.FormatFloat(t, 'f', -1, 64),
			strconv.FormatFloat(f, 'f', -1, 64),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func medianStep(times []float64) (float64, error) {
	steps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		d := times[i] - times[i-1]
		if d <= 0 {
			return 0, fmt.Errorf("%w: timestamps must increase (row %d)", ErrInvalidTrack, i+1)
		}
		steps = append(steps, d)
	}
	sort.Float64s(steps)
	return stat.Quantile(0.5, stat.Empirical, steps, nil), nil
}
