// Package main is the entry point for the pitch2midi CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/james-see/pitch2midi/pkg/api"
	"github.com/james-see/pitch2midi/pkg/config"
	"github.com/james-see/pitch2midi/pkg/converter"
	"github.com/james-see/pitch2midi/pkg/logging"
	"github.com/james-see/pitch2midi/pkg/melody"
	"github.com/james-see/pitch2midi/pkg/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile    string
	outputFile string
	audioFile  string
	asJSON     bool

	v   = config.NewViper()
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pitch2midi",
	Short: "Transcribe frame-wise pitch tracks into MIDI notes",
	Long: `pitch2midi turns the f0 track of a monophonic recording (one frequency per
analysis hop, as exported by Melodia or any other pitch tracker) into quantized
notes, and writes them as a Standard MIDI File and/or a JAMS annotation.

Examples:
  pitch2midi convert melody.csv -o melody.mid --bpm 96 --jams
  pitch2midi convert melody.csv -o melody.jams --audio song.wav
  pitch2midi notes melody.json --smooth 0 --minduration 0.05
  pitch2midi inspect melody.mid
  pitch2midi tui
  pitch2midi serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Transcribe a pitch track, or convert between MIDI and JAMS",
	Long: `Transcribes a CSV or JSON pitch track into the format named by the output
extension (.mid or .jams). MIDI and JAMS inputs are re-exported without
transcription. Without -o the output is written next to the input as .mid.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var notesCmd = &cobra.Command{
	Use:   "notes <track>",
	Short: "Print the notes transcribed from a pitch track",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotes,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid|file.jams>",
	Short: "Print the notes stored in a MIDI or JAMS file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the effective configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	d := config.Default()

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	pf.Float64("smooth", d.Engine.Smooth, "Median filter duration in seconds, 0 disables")
	pf.Float64("minduration", d.Engine.MinDuration, "Minimum note duration in seconds")
	pf.Int("sample-rate", d.Engine.SampleRate, "Sample rate the pitch tracker ran at")
	pf.Int("hop", d.Engine.HopSize, "Pitch tracker hop size in samples")
	pf.Int("pad-frames", d.Engine.PadFrames, "Unvoiced frames prepended to the track")
	pf.String("non-finite", d.Engine.NonFinite, "NaN/Inf frame handling: reject or unvoiced")
	pf.Float64("bpm", d.MIDI.BPM, "MIDI tempo in beats per minute")
	pf.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	pf.String("log-format", d.Log.Format, "Log format (text, json)")

	bindings := map[string]string{
		"engine.smooth":       "smooth",
		"engine.min_duration": "minduration",
		"engine.sample_rate":  "sample-rate",
		"engine.hop_size":     "hop",
		"engine.pad_frames":   "pad-frames",
		"engine.non_finite":   "non-finite",
		"midi.bpm":            "bpm",
		"log.level":           "log-level",
		"log.format":          "log-format",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (.mid or .jams)")
	convertCmd.Flags().Bool("jams", d.MIDI.JAMS, "Also write a .jams annotation next to MIDI output")
	convertCmd.Flags().StringVar(&audioFile, "audio", "", "Source WAV file, read for the annotation duration")
	_ = v.BindPFlag("midi.jams", convertCmd.Flags().Lookup("jams"))

	// Notes command
	notesCmd.Flags().BoolVar(&asJSON, "json", false, "Print notes and summary as JSON")
	inspectCmd.Flags().BoolVar(&asJSON, "json", false, "Print notes as JSON")

	// serve command
	serveCmd.Flags().IntP("port", "p", d.Server.Port, "Server port")
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	configCmd.AddCommand(configInitCmd, configShowCmd)

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	l, err := logging.New(c.Log.Level, c.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	cfg, log = c, l
	return nil
}

func newConverter() (*converter.Converter, error) {
	mcfg, err := cfg.Melody()
	if err != nil {
		return nil, err
	}
	conv := converter.New(mcfg)
	conv.SetLogger(log)
	conv.MIDI().SetTrackName(cfg.MIDI.TrackName)
	conv.MIDI().SetVelocity(uint8(cfg.MIDI.Velocity))
	return conv, nil
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".mid")
	if filepath.Clean(output) == filepath.Clean(input) {
		output = getOutputPath(input, ".jams")
	}

	conv, err := newConverter()
	if err != nil {
		return err
	}

	fmt.Printf("Converting %s -> %s\n", input, output)
	res, err := conv.ConvertFile(input, output, converter.Options{
		BPM:       cfg.MIDI.BPM,
		JAMS:      cfg.MIDI.JAMS,
		AudioPath: audioFile,
	})
	if err != nil {
		return err
	}

	if t := res.Transcription; t != nil {
		fmt.Printf("%d notes transcribed from %d frames (%.2f ms per frame, window %d)\n",
			res.Notes, len(t.Track.Frequencies), t.FrameDuration()*1000, t.Window)
	}
	if res.Sidecar != "" {
		fmt.Printf("Annotation written to %s\n", res.Sidecar)
	}
	fmt.Println("Conversion complete!")
	return nil
}

func runNotes(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	format := converter.DetectFormat(input)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}
	if !format.IsTrack() {
		return fmt.Errorf("%w: %s is not a pitch track, use inspect for MIDI or JAMS", converter.ErrUnknownFormat, input)
	}

	conv, err := newConverter()
	if err != nil {
		return err
	}
	t, err := conv.TranscribeData(data, format)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(struct {
			Notes   []melody.Note  `json:"notes"`
			Summary melody.Summary `json:"summary"`
			Window  int            `json:"window"`
			Frame   float64        `json:"frame_duration"`
		}{t.Notes, t.Summary(), t.Window, t.FrameDuration()})
	}

	fmt.Printf("%s: %d frames, %d voiced, %.3fs at %d Hz / hop %d (%.2f ms), median window %d\n",
		filepath.Base(input), len(t.Track.Frequencies), t.Track.Voiced(),
		t.Track.Duration(), t.Config.SampleRate, t.Config.HopSize, t.FrameDuration()*1000, t.Window)
	printNotes(t.Notes)
	printSummary(t.Summary())
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	format := converter.DetectFormat(input)
	if format == converter.FormatUnknown {
		format = converter.DetectFormatFromContent(data)
	}

	var notes []melody.Note
	switch format {
	case converter.FormatMIDI:
		parsed, err := converter.NewMIDIConverter().ParseMIDI(data)
		if err != nil {
			return err
		}
		notes = parsed.Notes
		if !asJSON {
			fmt.Printf("%s: MIDI, track %q, %.2f BPM, %d ticks per quarter\n",
				filepath.Base(input), parsed.TrackName, parsed.BPM, parsed.TicksPerQuarter)
		}
	case converter.FormatJAMS:
		parsed, err := converter.NewJAMSConverter().ParseJAMS(data)
		if err != nil {
			return err
		}
		notes = parsed.Notes
		if !asJSON {
			fmt.Printf("%s: JAMS, title %q, duration %.3fs\n",
				filepath.Base(input), parsed.Metadata.Title, parsed.Metadata.Duration)
		}
	default:
		return fmt.Errorf("%w: inspect reads .mid or .jams files", converter.ErrUnknownFormat)
	}

	if asJSON {
		return printJSON(notes)
	}
	printNotes(notes)
	printSummary(melody.Summarize(notes))
	return nil
}

func printJSON(value any) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printNotes(notes []melody.Note) {
	if len(notes) == 0 {
		fmt.Println("No notes.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ONSET", "DURATION", "PITCH", "NAME")
	for i, n := range notes {
		t.Row(
			strconv.Itoa(i+1),
			strconv.FormatFloat(n.Onset, 'f', 3, 64),
			strconv.FormatFloat(n.Duration, 'f', 3, 64),
			strconv.Itoa(n.Pitch),
			melody.NoteName(n.Pitch),
		)
	}
	fmt.Println(t.Render())
}

func printSummary(s melody.Summary) {
	if s.Count == 0 {
		return
	}
	fmt.Printf("Notes: %d  Range: %s-%s  Mean pitch: %.2f  Median duration: %.3fs  Voiced: %.3fs of %.3fs\n",
		s.Count, melody.NoteName(s.LowestPitch), melody.NoteName(s.HighestPitch),
		s.MeanPitch, s.MedianDuration, s.VoicedSeconds, s.Span)
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", cfg.Server.Port)
	return api.StartServer(cfg, log)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Save(cfg, args[0]); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[0])
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Printf("config file: %s\n", orNone(v.ConfigFileUsed()))
	return printJSON(cfg)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
