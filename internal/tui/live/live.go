package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pixload/internal/scenario"
	"pixload/internal/tui/components"
	"pixload/internal/tui/styles"
)

// doneMsg ends the program once the run reaches its terminal state.
type doneMsg struct{}

// Model is the live dashboard for one in-flight scenario run. It consumes
// scenario.Update samples and quits on its own when the run summarizes.
type Model struct {
	ScenarioName string
	Updates      chan scenario.Update

	Progress    progress.Model
	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	last     scenario.Update
	lastReqs uint64
	lastAt   time.Time

	width int
}

func NewModel(name string, updates chan scenario.Update) Model {
	return Model{
		ScenarioName: name,
		Updates:      updates,
		Progress:     progress.New(progress.WithDefaultGradient()),
		RpsLine:      components.NewSparkline(40, "Throughput (req/s)", styles.Active),
		LatencyLine:  components.NewSparkline(40, "Latency p90 (ms)", styles.Warn),
		lastAt:       time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.Updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scenario.Update:
		now := time.Now()
		dt := now.Sub(m.lastAt).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}
		rps := float64(msg.Requests-m.lastReqs) / dt
		m.RpsLine.Add(rps)
		m.LatencyLine.Add(msg.P90Ms)

		m.last = msg
		m.lastReqs = msg.Requests
		m.lastAt = now

		pct := 0.0
		if msg.Total > 0 {
			pct = float64(msg.Elapsed) / float64(msg.Total)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		return m, tea.Batch(m.Progress.SetPercent(pct), m.waitForUpdate())

	case doneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.Progress.Width = msg.Width - 4
		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("pixload · " + m.ScenarioName + " · " + m.last.State.String()))
	s.WriteString("\n\n")

	errStyle := styles.Active
	if m.last.ErrorRate > 0.05 {
		errStyle = styles.Error
	} else if m.last.ErrorRate > 0.01 {
		errStyle = styles.Warn
	}

	col1 := fmt.Sprintf("REQ: %d\nWORKERS: %d", m.last.Requests, m.last.Active)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", m.last.ErrorRate*100, m.last.Failed)
	col3 := fmt.Sprintf("ELAPSED: %s\nTOTAL: %s",
		m.last.Elapsed.Round(time.Second), m.last.Total.Round(time.Second))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errStyle.Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	s.WriteString(styles.Box.Width(width).Render(fmt.Sprintf(
		"P50: %.1f ms  |  P90: %.1f ms  |  P99: %.1f ms  |  Max: %.0f ms",
		m.last.P50Ms, m.last.P90Ms, m.last.P99Ms, m.last.MaxMs,
	)))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n" + styles.Subtle.Render("q to stop early"))

	return s.String()
}
