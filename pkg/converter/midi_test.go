package converter

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/james-see/pitch2midi/pkg/melody"
)

func TestGenerateMIDIHeader(t *testing.T) {
	data, err := NewMIDIConverter().GenerateMIDI([]melody.Note{{Onset: 0, Duration: 1, Pitch: 69}}, 120)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Errorf("header = %q, want MThd", data[:4])
	}
	if DetectFormatFromContent(data) != FormatMIDI {
		t.Error("generated data not detected as MIDI")
	}
}

func TestGenerateMIDIRoundTrip(t *testing.T) {
	notes := []melody.Note{
		{Onset: 0.25, Duration: 0.5, Pitch: 60},
		{Onset: 0.75, Duration: 0.25, Pitch: 64},
		{Onset: 1.5, Duration: 1.0, Pitch: 67},
	}

	tests := []struct {
		name string
		bpm  float64
	}{
		{"60 bpm keeps seconds as beats", 60},
		{"120 bpm", 120},
		{"odd tempo", 97},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMIDIConverter()
			data, err := m.GenerateMIDI(notes, tt.bpm)
			if err != nil {
				t.Fatalf("GenerateMIDI() error = %v", err)
			}

			parsed, err := m.ParseMIDI(data)
			if err != nil {
				t.Fatalf("ParseMIDI() error = %v", err)
			}
			if math.Abs(parsed.BPM-tt.bpm) > 0.01 {
				t.Errorf("BPM = %v, want %v", parsed.BPM, tt.bpm)
			}
			if parsed.TrackName != "MIDI TRACK" {
				t.Errorf("TrackName = %q", parsed.TrackName)
			}
			if len(parsed.Notes) != len(notes) {
				t.Fatalf("parsed %d notes, want %d", len(parsed.Notes), len(notes))
			}

			tick := 60 / (tt.bpm * float64(m.TicksPerQuarter()))
			for i, n := range parsed.Notes {
				if n.Pitch != notes[i].Pitch {
					t.Errorf("note %d pitch = %d, want %d", i, n.Pitch, notes[i].Pitch)
				}
				if math.Abs(n.Onset-notes[i].Onset) > tick || math.Abs(n.Duration-notes[i].Duration) > 2*tick {
					t.Errorf("note %d = %+v, want %+v", i, n, notes[i])
				}
			}
		})
	}
}

func TestGenerateMIDITempoScaling(t *testing.T) {
	m := NewMIDIConverter()
	// One second at 120 BPM is two beats
	if got := m.SecondsToTicks(1, 120); got != 960 {
		t.Errorf("SecondsToTicks(1, 120) = %d, want 960", got)
	}
	if got := m.SecondsToTicks(0.5, 60); got != 240 {
		t.Errorf("SecondsToTicks(0.5, 60) = %d, want 240", got)
	}
}

func TestGenerateMIDIContiguousNotes(t *testing.T) {
	half := 50 * 128 / 44100.0
	notes := []melody.Note{
		{Onset: 0, Duration: half, Pitch: 69},
		{Onset: half, Duration: half, Pitch: 81},
	}

	m := NewMIDIConverter()
	data, err := m.GenerateMIDI(notes, 93)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}
	parsed, err := m.ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if len(parsed.Notes) != 2 {
		t.Fatalf("parsed %d notes, want 2", len(parsed.Notes))
	}
	if parsed.Notes[0].End() > parsed.Notes[1].Onset+1e-9 {
		t.Errorf("notes overlap after tick rounding: %+v", parsed.Notes)
	}
}

func TestGenerateMIDIEmpty(t *testing.T) {
	m := NewMIDIConverter()
	data, err := m.GenerateMIDI(nil, 120)
	if err != nil {
		t.Fatalf("GenerateMIDI(nil) error = %v", err)
	}
	parsed, err := m.ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if len(parsed.Notes) != 0 {
		t.Errorf("parsed %d notes, want 0", len(parsed.Notes))
	}
}

func TestGenerateMIDIErrors(t *testing.T) {
	m := NewMIDIConverter()
	ok := []melody.Note{{Onset: 0, Duration: 1, Pitch: 60}}

	for _, bpm := range []float64{0, -60, math.NaN(), math.Inf(1)} {
		if _, err := m.GenerateMIDI(ok, bpm); !errors.Is(err, ErrInvalidTempo) {
			t.Errorf("GenerateMIDI(bpm=%v) error = %v, want ErrInvalidTempo", bpm, err)
		}
	}

	high := []melody.Note{{Onset: 0, Duration: 1, Pitch: 128}}
	if _, err := m.GenerateMIDI(high, 120); !errors.Is(err, ErrPitchOutOfRange) {
		t.Errorf("GenerateMIDI() error = %v, want ErrPitchOutOfRange", err)
	}
}

func TestParseMIDIInvalid(t *testing.T) {
	m := NewMIDIConverter()
	for _, data := range [][]byte{nil, []byte("MThd"), []byte("garbage data here")} {
		if _, err := m.ParseMIDI(data); err == nil {
			t.Errorf("ParseMIDI(%q) should fail", data)
		}
	}
}

func TestMIDIConverterSettings(t *testing.T) {
	m := NewMIDIConverter()
	m.SetTrackName("Lead")
	m.SetVelocity(0)

	path := filepath.Join(t.TempDir(), "lead.mid")
	if err := m.WriteMIDIFile([]melody.Note{{Onset: 0, Duration: 0.5, Pitch: 72}}, 100, path); err != nil {
		t.Fatalf("WriteMIDIFile() error = %v", err)
	}
	parsed, err := m.ParseMIDIFile(path)
	if err != nil {
		t.Fatalf("ParseMIDIFile() error = %v", err)
	}
	if parsed.TrackName != "Lead" || len(parsed.Notes) != 1 || parsed.Notes[0].Pitch != 72 {
		t.Errorf("ParseMIDIFile() = %+v", parsed)
	}
}
