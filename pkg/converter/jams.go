package converter

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/james-see/pitch2midi/pkg/melody"
)

// JAMS constants
const (
	JAMSVersion        = "0.3.4"
	JAMSNamespace      = "pitch_midi"
	jamsDataSource     = "pitch2midi"
	jamsAnnotationTool = "pitch2midi (github.com/james-see/pitch2midi)"
)

// Metadata is the file level information of an annotation
type Metadata struct {
	Title    string  // source audio file name
	Duration float64 // track length in seconds
}

type jamsDocument struct {
	Annotations  []jamsAnnotation `json:"annotations"`
	FileMetadata jamsFileMetadata `json:"file_metadata"`
	Sandbox      map[string]any   `json:"sandbox"`
}

type jamsFileMetadata struct {
	Title       string            `json:"title"`
	Artist      string            `json:"artist"`
	Release     string            `json:"release"`
	Duration    float64           `json:"duration"`
	Identifiers map[string]string `json:"identifiers"`
	JAMSVersion string            `json:"jams_version"`
}

type jamsAnnotation struct {
	AnnotationMetadata jamsAnnotationMetadata `json:"annotation_metadata"`
	Namespace          string                 `json:"namespace"`
	Data               []jamsObservation      `json:"data"`
	Sandbox            map[string]any         `json:"sandbox"`
	Time               float64                `json:"time"`
	Duration           *float64               `json:"duration"`
}

type jamsAnnotationMetadata struct {
	Curator         jamsCurator    `json:"curator"`
	Annotator       map[string]any `json:"annotator"`
	Version         string         `json:"version"`
	Corpus          string         `json:"corpus"`
	AnnotationTools string         `json:"annotation_tools"`
	AnnotationRules string         `json:"annotation_rules"`
	Validation      string         `json:"validation"`
	DataSource      string         `json:"data_source"`
}

type jamsCurator struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type jamsObservation struct {
	Time       float64 `json:"time"`
	Duration   float64 `json:"duration"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// JAMSConverter writes note lists as JAMS pitch_midi annotations
type JAMSConverter struct {
	version string
}

// NewJAMSConverter creates a new JAMS converter
func NewJAMSConverter() *JAMSConverter {
	return &JAMSConverter{version: JAMSVersion}
}

// GenerateJAMS creates a JAMS document holding notes with their onsets and
// durations in seconds. Confidence is always 0.
func (j *JAMSConverter) GenerateJAMS(notes []melody.Note, meta Metadata) ([]byte, error) {
	if meta.Duration < 0 {
		return nil, fmt.Errorf("negative track duration %v", meta.Duration)
	}

	data := make([]jamsObservation, 0, len(notes))
	for _, n := range notes {
		data = append(data, jamsObservation{
			Time:     n.Onset,
			Duration: n.Duration,
			Value:    float64(n.Pitch),
		})
	}

	duration := meta.Duration
	doc := jamsDocument{
		Annotations: []jamsAnnotation{{
			AnnotationMetadata: jamsAnnotationMetadata{
				Annotator:       map[string]any{},
				AnnotationTools: jamsAnnotationTool,
				DataSource:      jamsDataSource,
			},
			Namespace: JAMSNamespace,
			Data:      data,
			Sandbox:   map[string]any{},
			Duration:  &duration,
		}},
		FileMetadata: jamsFileMetadata{
			Title:       meta.Title,
			Duration:    meta.Duration,
			Identifiers: map[string]string{},
			JAMSVersion: j.version,
		},
		Sandbox: map[string]any{},
	}

	return json.MarshalIndent(doc, "", "  ")
}

// WriteJAMSFile writes notes to a JAMS file
func (j *JAMSConverter) WriteJAMSFile(notes []melody.Note, meta Metadata, filename string) error {
	data, err := j.GenerateJAMS(notes, meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ParsedJAMS is the pitch_midi content of a JAMS document
type ParsedJAMS struct {
	Metadata Metadata
	Notes    []melody.Note
}

// ParseJAMS reads the first pitch_midi annotation of a JAMS document
func (j *JAMSConverter) ParseJAMS(data []byte) (*ParsedJAMS, error) {
	var doc jamsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JAMS: %w", err)
	}

	for _, a := range doc.Annotations {
		if a.Namespace != JAMSNamespace {
			continue
		}
		parsed := &ParsedJAMS{
			Metadata: Metadata{Title: doc.FileMetadata.Title, Duration: doc.FileMetadata.Duration},
			Notes:    make([]melody.Note, 0, len(a.Data)),
		}
		for _, obs := range a.Data {
			parsed.Notes = append(parsed.Notes, melody.Note{
				Onset:    obs.Time,
				Duration: obs.Duration,
				Pitch:    melody.Quantize(obs.Value),
			})
		}
		return parsed, nil
	}
	return nil, errors.New("no pitch_midi annotation in JAMS document")
}
