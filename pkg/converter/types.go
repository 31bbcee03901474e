// Package converter turns pitch tracks into MIDI files and JAMS annotations
package converter

import (
	"errors"

	"github.com/james-see/pitch2midi/pkg/logging"
	"github.com/james-see/pitch2midi/pkg/melody"
	"github.com/james-see/pitch2midi/pkg/pitchtrack"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidTempo is returned for a non-positive or non-finite BPM
	ErrInvalidTempo = errors.New("tempo must be a positive number of beats per minute")
	// ErrPitchOutOfRange is returned when a note cannot be stored as a MIDI key
	ErrPitchOutOfRange = errors.New("pitch outside the MIDI key range")
	// ErrUnknownFormat is returned when no format matches a file
	ErrUnknownFormat = errors.New("unknown format")
)

// Transcription is the outcome of running the engine on one track
type Transcription struct {
	Track  *pitchtrack.Track
	Config melody.Config // engine config with the track's rate and hop applied
	Window int           // median window in frames
	Notes  []melody.Note
}

// FrameDuration returns the seconds covered by one frame of the track
func (t *Transcription) FrameDuration() float64 {
	return t.Config.FrameDuration()
}

// Summary returns pitch and duration statistics of the notes
func (t *Transcription) Summary() melody.Summary {
	return melody.Summarize(t.Notes)
}

// Options controls file conversion
type Options struct {
	BPM       float64 // tempo used to scale seconds to beats in MIDI output
	JAMS      bool    // also write a .jams file next to a MIDI output
	AudioPath string  // source audio, only read for the annotation's track duration
	Title     string  // annotation title, defaults to the track source or input name
}

// ConversionResult holds the result of a conversion
type ConversionResult struct {
	Data          []byte
	Filename      string
	Sidecar       string // JAMS file written next to a MIDI output, if any
	Format        Format
	Notes         int
	Summary       *melody.Summary // set for pitch track inputs
	Transcription *Transcription  // set for pitch track inputs
}

// Converter runs the transcription pipeline and the exporters
type Converter struct {
	config melody.Config
	midi   *MIDIConverter
	jams   *JAMSConverter
	log    logrus.FieldLogger
}

// New creates a Converter with the given engine configuration
func New(cfg melody.Config) *Converter {
	return &Converter{
		config: cfg,
		midi:   NewMIDIConverter(),
		jams:   NewJAMSConverter(),
		log:    logging.Discard(),
	}
}

// GetConfig returns the engine configuration
func (c *Converter) GetConfig() melody.Config {
	return c.config
}

// SetConfig replaces the engine configuration
func (c *Converter) SetConfig(cfg melody.Config) {
	c.config = cfg
}

// SetLogger sets the logger used for pipeline diagnostics
func (c *Converter) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = logging.Discard()
	}
	c.log = log
}

// MIDI returns the MIDI exporter
func (c *Converter) MIDI() *MIDIConverter {
	return c.midi
}
