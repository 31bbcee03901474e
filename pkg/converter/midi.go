package converter

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/james-see/pitch2midi/pkg/melody"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// MIDIConverter writes note lists as single track Standard MIDI Files and reads them back
type MIDIConverter struct {
	ticksPerQuarter uint16
	channel         uint8
	velocity        uint8
	trackName       string
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 480,
		channel:         0,
		velocity:        100,
		trackName:       "MIDI TRACK",
	}
}

// SetTrackName sets the sequence name written to the track
func (m *MIDIConverter) SetTrackName(name string) {
	m.trackName = name
}

// SetVelocity sets the velocity of every written note
func (m *MIDIConverter) SetVelocity(velocity uint8) {
	if velocity == 0 || velocity > 127 {
		velocity = 100
	}
	m.velocity = velocity
}

// TicksPerQuarter returns the file resolution
func (m *MIDIConverter) TicksPerQuarter() uint16 {
	return m.ticksPerQuarter
}

// SecondsToTicks converts seconds to ticks at the given tempo
func (m *MIDIConverter) SecondsToTicks(seconds, bpm float64) uint32 {
	beats := seconds * (bpm / 60.0)
	return uint32(math.Round(beats * float64(m.ticksPerQuarter)))
}

// GenerateMIDI creates MIDI data from notes. Onsets and durations are scaled
// from seconds to beats at bpm, which is also written as the file tempo.
func (m *MIDIConverter) GenerateMIDI(notes []melody.Note, bpm float64) ([]byte, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTempo, bpm)
	}
	for i, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return nil, fmt.Errorf("%w: note %d has pitch %d", ErrPitchOutOfRange, i, n.Pitch)
		}
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track
	if m.trackName != "" {
		track.Add(0, smf.MetaTrackSequenceName(m.trackName))
	}
	track.Add(0, smf.MetaTempo(bpm))
	track.Add(0, smf.MetaMeter(4, 4))

	var currentTick uint32
	for _, n := range notes {
		on := m.SecondsToTicks(n.Onset, bpm)
		off := m.SecondsToTicks(n.End(), bpm)
		// Rounding can pull an onset in front of the previous offset
		if on < currentTick {
			on = currentTick
		}
		if off <= on {
			off = on + 1
		}

		key := uint8(n.Pitch)
		track.Add(on-currentTick, midi.NoteOn(m.channel, key, m.velocity))
		track.Add(off-on, midi.NoteOff(m.channel, key))
		currentTick = off
	}

	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMIDIFile writes notes to a MIDI file
func (m *MIDIConverter) WriteMIDIFile(notes []melody.Note, bpm float64, filename string) error {
	data, err := m.GenerateMIDI(notes, bpm)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ParsedMIDI is the note content of a MIDI file in seconds
type ParsedMIDI struct {
	Notes           []melody.Note
	BPM             float64
	TicksPerQuarter uint16
	TrackName       string
}

// ParseMIDIFile reads a MIDI file and extracts its notes
func (m *MIDIConverter) ParseMIDIFile(filename string) (*ParsedMIDI, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI extracts notes from MIDI data. Ticks are converted to seconds
// with the first tempo event of the file, 120 BPM when there is none.
func (m *MIDIConverter) ParseMIDI(data []byte) (parsed *ParsedMIDI, err error) {
	// smf can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			parsed, err = nil, fmt.Errorf("failed to parse MIDI: %v", r)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	tpq := m.ticksPerQuarter
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		tpq = mt.Resolution()
	}

	result := &ParsedMIDI{BPM: 120, TicksPerQuarter: tpq}
	tempoSeen := false

	type span struct {
		start, end uint64
		key        uint8
	}
	var spans []span
	open := map[uint8]uint64{}

	for _, track := range s.Tracks {
		var currentTick uint64
		for _, ev := range track {
			currentTick += uint64(ev.Delta)
			msg := ev.Message

			// Tempo meta message (FF 51 03 tt tt tt)
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 && !tempoSeen {
				microsecondsPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if microsecondsPerBeat > 0 {
					result.BPM = 60000000.0 / float64(microsecondsPerBeat)
					tempoSeen = true
				}
				continue
			}

			// Sequence name meta message (FF 03 len text), short names only
			if len(msg) >= 3 && msg[0] == 0xFF && msg[1] == 0x03 {
				if n := int(msg[2]); n < 0x80 && len(msg) >= 3+n && result.TrackName == "" {
					result.TrackName = string(msg[3 : 3+n])
				}
				continue
			}

			var ch, key, vel uint8
			cm := midi.Message(msg)
			switch {
			case cm.GetNoteStart(&ch, &key, &vel):
				open[key] = currentTick
			case cm.GetNoteEnd(&ch, &key):
				start, ok := open[key]
				if !ok {
					continue
				}
				delete(open, key)
				spans = append(spans, span{start: start, end: currentTick, key: key})
			}
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	secondsPerTick := 60.0 / (result.BPM * float64(tpq))
	result.Notes = make([]melody.Note, 0, len(spans))
	for _, sp := range spans {
		result.Notes = append(result.Notes, melody.Note{
			Onset:    float64(sp.start) * secondsPerTick,
			Duration: float64(sp.end-sp.start) * secondsPerTick,
			Pitch:    int(sp.key),
		})
	}
	return result, nil
}
