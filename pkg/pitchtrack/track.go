// Package pitchtrack reads and writes frame-wise f0 tracks produced by an external pitch tracker
package pitchtrack

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidTrack is wrapped by every parse failure
var ErrInvalidTrack = errors.New("invalid pitch track")

// Track is a pitch contour sampled once per analysis hop
type Track struct {
	Frequencies []float64 // Hz per frame, <= 0 for unvoiced frames
	SampleRate  int       // audio sample rate the tracker ran at
	HopSize     int       // samples between frames
	Source      string    // originating audio file, if known
}

// Duration returns the length of the track in seconds
func (t *Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(len(t.Frequencies)) * float64(t.HopSize) / float64(t.SampleRate)
}

// Voiced returns the number of frames with a positive frequency
func (t *Track) Voiced() int {
	n := 0
	for _, f := range t.Frequencies {
		if f > 0 {
			n++
		}
	}
	return n
}

// Codec handles one serialized track format
type Codec interface {
	Name() string
	Extensions() []string
	Parse(data []byte) (*Track, error)
	Generate(track *Track) ([]byte, error)
}

// Registry resolves track codecs that share one analysis rate and hop
type Registry struct {
	codecs []Codec
}

// NewRegistry builds the CSV and JSON codecs for tracks analysed at
// sampleRate with hopSize samples between frames. Those values only apply
// where a file does not carry its own.
func NewRegistry(sampleRate, hopSize int) *Registry {
	return &Registry{codecs: []Codec{
		&CSV{SampleRate: sampleRate, HopSize: hopSize, MaxFrames: DefaultMaxFrames},
		&JSON{SampleRate: sampleRate, HopSize: hopSize},
	}}
}

// Codecs returns the registered codecs
func (r *Registry) Codecs() []Codec {
	return r.codecs
}

// Lookup returns the codec registered under name
func (r *Registry) Lookup(name string) (Codec, error) {
	for _, c := range r.codecs {
		if strings.EqualFold(c.Name(), name) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown pitch track format %q", name)
}

// ForFile picks a codec from a file extension
func (r *Registry) ForFile(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range r.codecs {
		for _, e := range c.Extensions() {
			if e == ext {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("no pitch track format for extension %q", ext)
}

// Codecs returns every supported track codec with default analysis settings
func Codecs() []Codec {
	return NewRegistry(44100, 128).Codecs()
}

// Lookup returns the default codec registered under name
func Lookup(name string) (Codec, error) {
	return NewRegistry(44100, 128).Lookup(name)
}

// ForFile picks a default codec from a file extension
func ForFile(path string) (Codec, error) {
	return NewRegistry(44100, 128).ForFile(path)
}
