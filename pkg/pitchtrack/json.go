package pitchtrack

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// JSON reads tracks of the form {"sample_rate":44100,"hop_size":128,"frequencies":[...]}
type JSON struct {
	SampleRate int // used when the document omits sample_rate
	HopSize    int // used when the document omits hop_size
}

type jsonTrack struct {
	SampleRate  int       `json:"sample_rate,omitempty"`
	HopSize     int       `json:"hop_size,omitempty"`
	Source      string    `json:"source,omitempty"`
	Frequencies []float64 `json:"frequencies"`
}

// NewJSON creates a JSON codec defaulting to 44.1 kHz and a 128 sample hop
func NewJSON() *JSON {
	return &JSON{SampleRate: 44100, HopSize: 128}
}

// Name returns the codec name
func (j *JSON) Name() string { return "json" }

// Extensions returns the file extensions handled by the codec
func (j *JSON) Extensions() []string { return []string{".json"} }

// Parse decodes a JSON track
func (j *JSON) Parse(data []byte) (*Track, error) {
	var doc jsonTrack
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}
	if doc.SampleRate == 0 {
		doc.SampleRate = j.SampleRate
	}
	if doc.HopSize == 0 {
		doc.HopSize = j.HopSize
	}
	if doc.SampleRate < 0 || doc.HopSize < 0 {
		return nil, fmt.Errorf("%w: negative sample rate or hop size", ErrInvalidTrack)
	}
	if doc.Frequencies == nil {
		doc.Frequencies = []float64{}
	}
	return &Track{
		Frequencies: doc.Frequencies,
		SampleRate:  doc.SampleRate,
		HopSize:     doc.HopSize,
		Source:      doc.Source,
	}, nil
}

// Generate encodes a track as JSON
func (j *JSON) Generate(track *Track) ([]byte, error) {
	if track == nil {
		return nil, errors.New("nil track")
	}
	freqs := track.Frequencies
	if freqs == nil {
		freqs = []float64{}
	}
	return json.MarshalIndent(jsonTrack{
		SampleRate:  track.SampleRate,
		HopSize:     track.HopSize,
		Source:      track.Source,
		Frequencies: freqs,
	}, "", "  ")
}
