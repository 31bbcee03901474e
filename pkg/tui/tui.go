// Package tui provides a terminal user interface for pitch2midi
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/pitch2midi/pkg/config"
	"github.com/james-see/pitch2midi/pkg/converter"
	"github.com/james-see/pitch2midi/pkg/logging"
	"github.com/james-see/pitch2midi/pkg/melody"
)

// Piano-roll palette
var (
	keyIvory = lipgloss.Color("#F2EBD3")
	keyEbony = lipgloss.Color("#1C1B22")
	noteCyan = lipgloss.Color("#3FD0C9")
	cueAmber = lipgloss.Color("#F5A623")
	dimSlate = lipgloss.Color("#6B7080")
	failRed  = lipgloss.Color("#E5484D")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(keyEbony).Background(noteCyan).Padding(0, 1)
	itemStyle    = lipgloss.NewStyle().Foreground(keyIvory).PaddingLeft(2)
	cursorStyle  = lipgloss.NewStyle().Foreground(noteCyan).Bold(true).PaddingLeft(2)
	hintStyle    = lipgloss.NewStyle().Foreground(cueAmber).PaddingLeft(4)
	infoStyle    = lipgloss.NewStyle().Foreground(cueAmber)
	mutedStyle   = lipgloss.NewStyle().Foreground(dimSlate)
	okStyle      = lipgloss.NewStyle().Foreground(noteCyan).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(failRed).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(dimSlate).Width(8)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(noteCyan).Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// MenuItem is one conversion offered by the menu. An empty FromFormat quits.
type MenuItem struct {
	Title       string
	Description string
	FromFormat  string // "track", "midi" or "jams"
	ToFormat    string
	JAMS        bool // write a .jams sidecar next to MIDI output
}

var menuItems = []MenuItem{
	{Title: "Track → MIDI", Description: "Transcribe a CSV/JSON pitch track to a MIDI file", FromFormat: "track", ToFormat: "midi"},
	{Title: "Track → MIDI + JAMS", Description: "Transcribe to MIDI and write a JAMS annotation next to it", FromFormat: "track", ToFormat: "midi", JAMS: true},
	{Title: "Track → JAMS", Description: "Transcribe a pitch track to a JAMS pitch_midi annotation", FromFormat: "track", ToFormat: "jams"},
	{Title: "MIDI → JAMS", Description: "Re-export the notes of a MIDI file as JAMS", FromFormat: "midi", ToFormat: "jams"},
	{Title: "JAMS → MIDI", Description: "Render a JAMS pitch_midi annotation to MIDI", FromFormat: "jams", ToFormat: "midi"},
	{Title: "Quit", Description: "Leave pitch2midi"},
}

// allowedTypes returns the file picker filter for an input kind
func allowedTypes(from string) []string {
	switch from {
	case "midi":
		return []string{".mid", ".midi"}
	case "jams":
		return []string{".jams"}
	default:
		return []string{".csv", ".txt", ".json"}
	}
}

// Model is the bubbletea model driving the menu, picker and result screens
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	cfg          config.Config
	selectedFile string
	conversion   MenuItem
	result       *converter.ConversionResult
	err          error
	width        int
	height       int
}

type conversionDoneMsg struct {
	result *converter.ConversionResult
	err    error
}

// New creates a new TUI model. A nil cfg uses the built-in defaults.
func New(cfg *config.Config) Model {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}

	fp := filepicker.New()
	fp.AllowedTypes = allowedTypes("track")
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(noteCyan)

	return Model{
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		cfg:        *cfg,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update routes a message to the handler of the current screen
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// the picker consumes every message while it is open
	if m.state == StateFilePicker {
		return m.updatePicker(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.filePicker.SetHeight(msg.Height - 12)
	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case conversionDoneMsg:
		m.state = StateResult
		m.result, m.err = msg.result, msg.err
	}
	return m, nil
}

func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.state = StateMenu
			return m, nil
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)
	if ok, path := m.filePicker.DidSelectFile(msg); ok {
		m.selectedFile = path
		m.state = StateConverting
		return m, tea.Batch(m.spinner.Tick, m.performConversion())
	}
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.menuIndex = max(m.menuIndex-1, 0)
	case "down", "j":
		m.menuIndex = min(m.menuIndex+1, len(menuItems)-1)
	case "enter":
		item := menuItems[m.menuIndex]
		if item.FromFormat == "" {
			return m, tea.Quit
		}
		m.conversion = item
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = allowedTypes(item.FromFormat)
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.selectedFile = ""
		m.result, m.err = nil, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performConversion() tea.Cmd {
	selected, item, cfg := m.selectedFile, m.conversion, m.cfg
	return func() tea.Msg {
		mcfg, err := cfg.Melody()
		if err != nil {
			return conversionDoneMsg{err: err}
		}
		conv := converter.New(mcfg)
		// the alt screen owns the terminal
		conv.SetLogger(logging.Discard())
		conv.MIDI().SetTrackName(cfg.MIDI.TrackName)
		conv.MIDI().SetVelocity(uint8(cfg.MIDI.Velocity))

		ext := converter.FormatMIDI.Extension()
		if item.ToFormat == "jams" {
			ext = converter.FormatJAMS.Extension()
		}
		out := strings.TrimSuffix(selected, filepath.Ext(selected)) + ext

		res, err := conv.ConvertFile(selected, out, converter.Options{BPM: cfg.MIDI.BPM, JAMS: item.JAMS})
		return conversionDoneMsg{result: res, err: err}
	}
}

// View renders the current screen
func (m Model) View() string {
	var body, help string
	switch m.state {
	case StateMenu:
		body, help = m.viewMenu(), "↑/↓ or j/k: move • enter: choose • q: quit"
	case StateFilePicker:
		body, help = m.viewFilePicker(), "enter: open/select • esc: menu • q: quit"
	case StateConverting:
		body = m.viewConverting()
	case StateResult:
		body, help = m.viewResult(), "enter: menu • q: quit"
	}
	return lipgloss.JoinVertical(lipgloss.Left, banner(), body, mutedStyle.MarginTop(1).Render(help))
}

func (m Model) viewMenu() string {
	lines := []string{headingStyle.Render("CONVERSIONS"), ""}
	for i, item := range menuItems {
		if i != m.menuIndex {
			lines = append(lines, itemStyle.Render("  "+item.Title))
			continue
		}
		lines = append(lines, cursorStyle.Render("♪ "+item.Title), hintStyle.Render(item.Description))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewFilePicker() string {
	heading := headingStyle.Render(fmt.Sprintf("OPEN %s", strings.ToUpper(m.conversion.FromFormat)))
	parts := []string{heading}
	if m.conversion.FromFormat == "track" {
		parts = append(parts, infoStyle.Render(engineLine(m.cfg)))
	}
	parts = append(parts, "", m.filePicker.View())
	return strings.Join(parts, "\n")
}

func (m Model) viewConverting() string {
	return panelStyle.Render(fmt.Sprintf("%s %s  %s → %s",
		m.spinner.View(), filepath.Base(m.selectedFile), m.conversion.FromFormat, m.conversion.ToFormat))
}

func (m Model) viewResult() string {
	if m.err != nil {
		return panelStyle.BorderForeground(failRed).Render(strings.Join([]string{
			headingStyle.Background(failRed).Render("ERROR"),
			"",
			failStyle.Render("✗ " + m.err.Error()),
		}, "\n"))
	}

	lines := []string{
		headingStyle.Render("SUCCESS"),
		"",
		okStyle.Render("✓ " + filepath.Base(m.selectedFile) + " converted"),
		"",
		field("input", filepath.Base(m.selectedFile)),
	}
	if m.result != nil {
		lines = append(lines, field("output", filepath.Base(m.result.Filename)))
		if m.result.Sidecar != "" {
			lines = append(lines, field("jams", filepath.Base(m.result.Sidecar)))
		}
		if t := m.result.Transcription; t != nil {
			lines = append(lines, field("track", trackLine(t)))
		}
		if m.result.Summary != nil {
			lines = append(lines, "", infoStyle.Render(summaryLine(*m.result.Summary)))
		}
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// engineLine lists the settings a track conversion will run with
func engineLine(cfg config.Config) string {
	e := cfg.Engine
	hop := float64(e.HopSize) / float64(e.SampleRate) * 1000
	return fmt.Sprintf("%d Hz • hop %d (%.2f ms) • window %d • min note %.2fs • %.0f BPM",
		e.SampleRate, e.HopSize, hop,
		melody.WindowSize(e.Smooth, e.SampleRate, e.HopSize),
		e.MinDuration, cfg.MIDI.BPM)
}

// trackLine describes the frames a transcription ran on
func trackLine(t *converter.Transcription) string {
	window := "off"
	if t.Window > 1 {
		window = fmt.Sprintf("%d frames", t.Window)
	}
	return fmt.Sprintf("%d frames (%d voiced) • %d Hz / hop %d • %.2f ms per frame • window %s",
		len(t.Track.Frequencies), t.Track.Voiced(),
		t.Config.SampleRate, t.Config.HopSize, t.FrameDuration()*1000, window)
}

func summaryLine(sum melody.Summary) string {
	if sum.Count == 0 {
		return "No notes survived segmentation"
	}
	return fmt.Sprintf("%d notes  %s–%s  %.2fs voiced  median %.3fs",
		sum.Count,
		melody.NoteName(sum.LowestPitch),
		melody.NoteName(sum.HighestPitch),
		sum.VoicedSeconds,
		sum.MedianDuration)
}

func banner() string {
	logo := `
 ┌─┐┬┌┬┐┌─┐┬ ┬  ┌─┐  ┌┬┐┬┌┬┐┬
 ├─┘│ │ │  ├─┤  ┌─┘  │││││ │││
 ┴  ┴ ┴ └─┘┴ ┴  └─┘  ┴ ┴┴─┴┘┴
`
	return lipgloss.NewStyle().Foreground(noteCyan).Render(logo)
}

// Run starts the TUI application
func Run(cfg *config.Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
