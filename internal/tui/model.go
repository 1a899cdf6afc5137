package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// EventMsg wraps one progress event from the stream.
type EventMsg domain.ProgressEvent

// StreamClosedMsg signals that the event channel was closed.
type StreamClosedMsg struct{}

const logLines = 8

// Model is the Bubble Tea model rendering a live pipeline run.
type Model struct {
	events   <-chan domain.ProgressEvent
	spinner  spinner.Model
	bar      progress.Model
	viewport viewport.Model
	log      []string
	current  int
	total    int
	done     bool
	failed   bool
	errMsg   string
	results  []domain.FileResult
	ready    bool
}

// New creates a model consuming events from the given channel.
func New(events <-chan domain.ProgressEvent) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		events:   events,
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient()),
		viewport: viewport.New(0, 0),
	}
}

// Failed reports whether the run ended in an error event.
func (m Model) Failed() bool { return m.failed }

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan domain.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg(ev)
	}
}

// Update handles stream, key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.bar.Width = max(20, msg.Width-8)
		_, rh := resultBoxStyle.GetFrameSize()
		reserved := logLines + 5 // header, bar, spacers, status
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case EventMsg:
		ev := domain.ProgressEvent(msg)
		m.apply(ev)
		m.viewport.SetContent(m.renderResults())
		if m.done {
			return m, nil
		}
		return m, waitForEvent(m.events)
	case StreamClosedMsg:
		if !m.done {
			m.failed = true
			m.errMsg = "stream ended before a completion event"
		}
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *Model) apply(ev domain.ProgressEvent) {
	if ev.Current > 0 {
		m.current = ev.Current
	}
	if ev.Total > 0 {
		m.total = ev.Total
	}
	line := ev.Message
	if line == "" {
		line = ev.Step
	}
	if ev.Error != "" && ev.Type != domain.EventError {
		line = errStyle.Render(line + " (" + ev.Error + ")")
	}
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
	switch ev.Type {
	case domain.EventCompletion:
		m.done = true
		m.results = ev.Results
	case domain.EventError:
		m.done = true
		m.failed = true
		m.errMsg = ev.Error
	}
}

// View renders the progress header, event log and result view.
func (m Model) View() string {
	if !m.ready {
		return "Connecting..."
	}
	header := headerStyle.Render("docqa")
	var bar string
	if m.total > 0 {
		bar = m.bar.ViewAs(float64(m.current) / float64(m.total))
	}
	var status string
	switch {
	case m.failed:
		status = errStyle.Render("Failed: " + m.errMsg)
	case m.done:
		status = okStyle.Render("Done. Press q to quit.")
	default:
		status = m.spinner.View() + fmt.Sprintf(" %d/%d", m.current, m.total)
	}
	logView := logStyle.Render(strings.Join(m.log, "\n"))
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + bar + "\n" + logView + "\n" + results + "\n" + status
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	var b strings.Builder
	for _, fr := range m.results {
		b.WriteString(fileStyle.Render(fr.Filename))
		b.WriteString("\n")
		for _, a := range fr.Answers {
			b.WriteString(fmt.Sprintf("  %s [%s, %.2f]\n", queryStyle.Render(a.Query), a.QueryType, a.Confidence))
			for _, line := range strings.Split(a.Answer, "\n") {
				b.WriteString("    " + line + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	fileStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	queryStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	logStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
