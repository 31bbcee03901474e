package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/pitch2midi/pkg/melody"
	"github.com/james-see/pitch2midi/pkg/pitchtrack"
	"github.com/sirupsen/logrus"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatJAMS    Format = "jams"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// IsTrack reports whether f is a pitch track input format
func (f Format) IsTrack() bool {
	return f == FormatCSV || f == FormatJSON
}

// Extension returns the canonical file extension of f
func (f Format) Extension() string {
	switch f {
	case FormatMIDI:
		return ".mid"
	case FormatJAMS:
		return ".jams"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ""
	}
}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".jams":
		return FormatJAMS
	case ".csv", ".txt":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	if trimmed[0] == '{' {
		if bytes.Contains(trimmed, []byte(`"file_metadata"`)) {
			return FormatJAMS
		}
		return FormatJSON
	}

	// Anything else that reads as text is taken for a CSV export
	for _, b := range trimmed {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			return FormatUnknown
		}
	}
	return FormatCSV
}

func detect(path string, data []byte) Format {
	if f := DetectFormat(path); f != FormatUnknown {
		return f
	}
	return DetectFormatFromContent(data)
}

// codec resolves a track codec with the converter's rate and hop as defaults
func (c *Converter) codec(format Format) (pitchtrack.Codec, error) {
	if !format.IsTrack() {
		return nil, fmt.Errorf("%w: %s is not a pitch track format", ErrUnknownFormat, format)
	}
	codec, err := pitchtrack.NewRegistry(c.config.SampleRate, c.config.HopSize).Lookup(string(format))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return codec, nil
}

// ParseTrack decodes a pitch track in the given format
func (c *Converter) ParseTrack(data []byte, format Format) (*pitchtrack.Track, error) {
	codec, err := c.codec(format)
	if err != nil {
		return nil, err
	}
	return codec.Parse(data)
}

// Transcribe runs the engine on a track. The track's sample rate and hop
// override the converter's configuration.
func (c *Converter) Transcribe(track *pitchtrack.Track) (*Transcription, error) {
	if track == nil {
		return nil, errors.New("nil track")
	}

	cfg := c.config
	if track.SampleRate > 0 {
		cfg.SampleRate = track.SampleRate
	}
	if track.HopSize > 0 {
		cfg.HopSize = track.HopSize
	}

	log := c.log.WithFields(logrus.Fields{
		"frames":      len(track.Frequencies),
		"sample_rate": cfg.SampleRate,
		"hop_size":    cfg.HopSize,
	})
	log.Debug("transcribing pitch track")

	res, err := melody.Analyze(track.Frequencies, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	log.WithFields(logrus.Fields{
		"window": res.Window,
		"notes":  len(res.Notes),
	}).Info("segmented pitch track")

	return &Transcription{
		Track:  track,
		Config: cfg,
		Window: res.Window,
		Notes:  res.Notes,
	}, nil
}

// TranscribeData parses and transcribes a serialized track
func (c *Converter) TranscribeData(data []byte, format Format) (*Transcription, error) {
	track, err := c.ParseTrack(data, format)
	if err != nil {
		return nil, err
	}
	return c.Transcribe(track)
}

// TrackToMIDI converts track data to a MIDI file at the given tempo
func (c *Converter) TrackToMIDI(data []byte, format Format, bpm float64) ([]byte, *Transcription, error) {
	t, err := c.TranscribeData(data, format)
	if err != nil {
		return nil, nil, err
	}
	out, err := c.midi.GenerateMIDI(t.Notes, bpm)
	if err != nil {
		return nil, nil, err
	}
	return out, t, nil
}

// TrackToJAMS converts track data to a JAMS annotation. A missing duration
// or title is taken from the track.
func (c *Converter) TrackToJAMS(data []byte, format Format, meta Metadata) ([]byte, *Transcription, error) {
	t, err := c.TranscribeData(data, format)
	if err != nil {
		return nil, nil, err
	}
	out, err := c.transcriptionJAMS(t, meta)
	if err != nil {
		return nil, nil, err
	}
	return out, t, nil
}

func (c *Converter) transcriptionJAMS(t *Transcription, meta Metadata) ([]byte, error) {
	if meta.Duration <= 0 {
		meta.Duration = t.Track.Duration()
	}
	if meta.Title == "" {
		meta.Title = t.Track.Source
	}
	return c.jams.GenerateJAMS(t.Notes, meta)
}

// MIDIToJAMS re-exports the notes of a MIDI file as an annotation
func (c *Converter) MIDIToJAMS(midiData []byte, meta Metadata) ([]byte, error) {
	parsed, err := c.midi.ParseMIDI(midiData)
	if err != nil {
		return nil, err
	}
	if meta.Duration <= 0 && len(parsed.Notes) > 0 {
		meta.Duration = parsed.Notes[len(parsed.Notes)-1].End()
	}
	return c.jams.GenerateJAMS(parsed.Notes, meta)
}

// JAMSToMIDI writes the notes of a JAMS annotation to MIDI at the given tempo
func (c *Converter) JAMSToMIDI(jamsData []byte, bpm float64) ([]byte, error) {
	doc, err := c.jams.ParseJAMS(jamsData)
	if err != nil {
		return nil, err
	}
	return c.midi.GenerateMIDI(doc.Notes, bpm)
}

// ConvertFile converts a file from one format to another. Track inputs are
// transcribed first; the output format follows the output extension.
func (c *Converter) ConvertFile(inputPath, outputPath string, opts Options) (*ConversionResult, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := detect(inputPath, data)
	outputFormat := DetectFormat(outputPath)
	if inputFormat == FormatUnknown {
		return nil, fmt.Errorf("%w: cannot determine input format of %s", ErrUnknownFormat, inputPath)
	}
	if outputFormat != FormatMIDI && outputFormat != FormatJAMS {
		return nil, fmt.Errorf("%w: output must be .mid or .jams, got %s", ErrUnknownFormat, outputPath)
	}

	meta := Metadata{Title: opts.Title}
	if opts.AudioPath != "" {
		d, err := ProbeDurationFile(opts.AudioPath)
		if err != nil {
			return nil, err
		}
		meta.Duration = d
		if meta.Title == "" {
			meta.Title = filepath.Base(opts.AudioPath)
		}
	}
	if meta.Title == "" {
		meta.Title = filepath.Base(inputPath)
	}

	result := &ConversionResult{Filename: outputPath, Format: outputFormat}
	var sidecar []byte

	switch {
	case inputFormat.IsTrack():
		t, err := c.TranscribeData(data, inputFormat)
		if err != nil {
			return nil, err
		}
		if t.Track.Source != "" && opts.Title == "" && opts.AudioPath == "" {
			meta.Title = t.Track.Source
		}
		result.Notes = len(t.Notes)
		result.Transcription = t
		summary := t.Summary()
		result.Summary = &summary

		if outputFormat == FormatMIDI {
			result.Data, err = c.midi.GenerateMIDI(t.Notes, opts.BPM)
			if err == nil && opts.JAMS {
				sidecar, err = c.transcriptionJAMS(t, meta)
			}
		} else {
			result.Data, err = c.transcriptionJAMS(t, meta)
		}
		if err != nil {
			return nil, fmt.Errorf("conversion failed: %w", err)
		}

	case inputFormat == FormatMIDI && outputFormat == FormatJAMS:
		result.Data, err = c.MIDIToJAMS(data, meta)
	case inputFormat == FormatJAMS && outputFormat == FormatMIDI:
		result.Data, err = c.JAMSToMIDI(data, opts.BPM)
	default:
		return nil, fmt.Errorf("unsupported conversion: %s to %s", inputFormat, outputFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	// main output before its sidecar, a failed write leaves no orphan annotation
	if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	if sidecar != nil {
		result.Sidecar = SidecarPath(outputPath)
		if err := os.WriteFile(result.Sidecar, sidecar, 0644); err != nil {
			return nil, fmt.Errorf("failed to write JAMS file: %w", err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"input":   inputPath,
		"output":  outputPath,
		"sidecar": result.Sidecar,
		"bytes":   len(result.Data),
	}).Debug("wrote output")
	return result, nil
}

// SidecarPath returns the .jams path written next to a MIDI output
func SidecarPath(midiPath string) string {
	return strings.TrimSuffix(midiPath, filepath.Ext(midiPath)) + FormatJAMS.Extension()
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"csv -> midi",
		"csv -> jams",
		"json -> midi",
		"json -> jams",
		"midi -> jams",
		"jams -> midi",
	}
}
