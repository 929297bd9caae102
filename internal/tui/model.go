package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg shows a one-line notice in the footer.
type StatusMsg string

// ErrorMsg shows a one-line notice in the footer, styled as an error.
type ErrorMsg string

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Source is what the dashboard reads on every tick.
type Source interface {
	Display() []stats.SeriesView
	State() string
	Elapsed() time.Duration
	Recording() bool
	// ToggleRecording starts or stops a recording and returns a notice for
	// the footer.
	ToggleRecording() (string, error)
}

// Config holds TUI configuration.
type Config struct {
	Endpoint    string
	MetricsAddr string
	Source      Source
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	endpoint    string
	metricsAddr string
	source      Source

	// Current state
	series       []stats.SeriesView
	state        string
	elapsed      time.Duration
	recording    bool
	status       string
	statusIsErr  bool
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		endpoint:    cfg.Endpoint,
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		state:       "idle",
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			return m.toggleRecording(), nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m = m.refresh()
		return m, tickCmd()

	case StatusMsg:
		m.status = string(msg)
		m.statusIsErr = false
		return m, nil

	case ErrorMsg:
		m.status = string(msg)
		m.statusIsErr = true
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) refresh() Model {
	if m.source != nil {
		m.series = m.source.Display()
		m.state = m.source.State()
		m.elapsed = m.source.Elapsed()
		m.recording = m.source.Recording()
	}
	m.lastUpdate = time.Now()
	return m
}

func (m Model) toggleRecording() Model {
	if m.source == nil {
		return m
	}
	notice, err := m.source.ToggleRecording()
	if err != nil {
		m.status = err.Error()
		m.statusIsErr = true
	} else {
		m.status = notice
		m.statusIsErr = false
	}
	m.recording = m.source.Recording()
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.detailedView {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Reading returns the current value of metric, or 0 before the first tick.
func (m Model) Reading(metric stats.Metric) float64 {
	if v, ok := m.view(metric); ok {
		return v.Current
	}
	return 0
}

func (m Model) view(metric stats.Metric) (stats.SeriesView, bool) {
	for _, v := range m.series {
		if v.Metric == metric {
			return v, true
		}
	}
	return stats.SeriesView{}, false
}

// Values returns the live window of metric.
func (m Model) Values(metric stats.Metric) []float64 {
	v, ok := m.view(metric)
	if !ok {
		return nil
	}
	values := make([]float64, len(v.Points))
	for i, p := range v.Points {
		values[i] = p.Value
	}
	return values
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatBitrate formats kbit/s, switching to Mbit/s above 1000.
func formatBitrate(kbps float64) string {
	if kbps >= 1000 {
		return fmt.Sprintf("%.2f Mbit/s", kbps/1000)
	}
	return fmt.Sprintf("%.0f kbit/s", kbps)
}

// formatResolution formats a frame size, or "-" before the first frame.
func formatResolution(w, h float64) string {
	if w == 0 || h == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0fx%.0f", w, h)
}
