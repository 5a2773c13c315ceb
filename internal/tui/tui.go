// Package tui provides a Bubble Tea terminal user interface for
// air-download.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/download"
	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	// events carries manager progress and transfer updates into the
	// Bubble Tea loop.
	events chan tea.Msg

	// Run outcome
	results []download.ExamResult

	// Current transfer
	transferLabel string
	written       int64
	total         int64

	// Options
	mrnSearch      bool
	accessionsOnly bool
	verbose        bool

	width  int
	height int
}

// NewModel creates a new TUI model using the given settings for the
// AIR endpoint, credentials, and output location.
func NewModel(settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "Accession number, e.g. 12345678"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan tea.Msg, 64),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent for each manager progress event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// TransferMsg reports cumulative archive bytes written.
	TransferMsg struct {
		Label   string
		Written int64
		Total   int64
	}

	// RunDoneMsg is sent when the whole run finishes.
	RunDoneMsg struct {
		Results []download.ExamResult
		Err     error
	}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateRunning
				return m, tea.Batch(m.startRun(), m.waitForEvent(), m.spinner.Tick)
			}

		case "m":
			if m.state == StateInput {
				m.mrnSearch = !m.mrnSearch
			}

		case "a":
			if m.state == StateInput {
				m.accessionsOnly = !m.accessionsOnly
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new run
				m.state = StateInput
				m.logs = nil
				m.results = nil
				m.err = nil
				m.transferLabel = ""
				m.written = 0
				m.total = 0
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.events = make(chan tea.Msg, 64)
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if msg.Event.Level != download.LevelVerbose || m.verbose {
			m.logs = append(m.logs, LogEntry{
				Message: msg.Event.Message,
				Level:   msg.Event.Level,
			})
			// Keep only the last 10 logs
			if len(m.logs) > 10 {
				m.logs = m.logs[len(m.logs)-10:]
			}
		}
		cmds = append(cmds, m.waitForEvent())

	case TransferMsg:
		m.transferLabel = msg.Label
		m.written = msg.Written
		m.total = msg.Total
		if msg.Total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(msg.Written)/float64(msg.Total)))
		}
		cmds = append(cmds, m.waitForEvent())

	case RunDoneMsg:
		m.results = msg.Results
		if msg.Err != nil && m.ctx.Err() == nil {
			m.state = StateError
			m.err = msg.Err
		} else if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// waitForEvent returns a command that delivers the next manager event.
func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		return <-ch
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("AIR Download"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Retrieve imaging exams from the AIR portal"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	label := "Enter accession number:"
	if m.mrnSearch {
		label = "Enter patient ID (MRN):"
	}
	b.WriteString(subtitleStyle.Render(label))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	check := func(on bool) string {
		if on {
			return "[×]"
		}
		return "[ ]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Search by MRN instead of accession (m)\n", check(m.mrnSearch)))
	b.WriteString(fmt.Sprintf("  %s Accessions report only, no download (a)\n", check(m.accessionsOnly)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", check(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output path: %s", m.settings.Output)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if m.transferLabel == "" {
		b.WriteString(subtitleStyle.Render("Searching and negotiating archives..."))
	} else {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Downloading %s", m.transferLabel)))
	}
	b.WriteString("\n\n")

	if m.transferLabel != "" {
		if m.total > 0 {
			b.WriteString(m.progress.View())
		} else {
			b.WriteString(infoStyle.Render(fmt.Sprintf("%.2f MB received", float64(m.written)/1024/1024)))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var downloaded, skipped, failed int
	var bytes int64
	for _, res := range m.results {
		switch {
		case res.Err != nil:
			failed++
		case res.Skipped:
			skipped++
		default:
			downloaded++
			bytes += res.Bytes
		}
	}

	return boxStyle.Render(fmt.Sprintf(
		"Run complete\n\n"+
			"Downloaded: %d (%.2f MB)\n"+
			"Skipped:    %d\n"+
			"Failed:     %d",
		downloaded, float64(bytes)/1024/1024, skipped, failed,
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • m: mrn search • a: report only • v: verbose • esc: quit"
	case StateRunning:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// startRun logs in and executes the download run in the background,
// feeding events into the model's channel.
func (m *Model) startRun() tea.Cmd {
	value := m.textInput.Value()
	settings := *m.settings
	settings.AccessionsOnly = m.accessionsOnly
	ctx := m.ctx
	events := m.events

	criteria := model.SearchCriteria{}
	if m.mrnSearch {
		criteria.PatientID = value
	} else {
		criteria.AccessionNumber = value
	}

	return func() tea.Msg {
		manager := download.NewManager(&settings, func(event download.ProgressEvent) {
			select {
			case events <- ProgressMsg{Event: event}:
			case <-ctx.Done():
			}
		})
		manager.SetTransferFunc(func(label string, written, total int64) {
			select {
			case events <- TransferMsg{Label: label, Written: written, Total: total}:
			default:
				// Drop byte updates rather than stall the stream.
			}
		})

		if err := manager.Login(ctx); err != nil {
			return RunDoneMsg{Err: err}
		}

		results, err := manager.Run(ctx, criteria)
		return RunDoneMsg{Results: results, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
