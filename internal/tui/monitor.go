// SPDX-License-Identifier: MIT
//
// Package tui renders a live view of a running detector.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stomp/internal/stomp"
)

// RefreshInterval is how often the monitor polls the detector.
const RefreshInterval = 250 * time.Millisecond

// historySize bounds the accepted-stomp list.
const historySize = 64

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E8A33D")).
			Bold(true)
)

type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
}

type snapshotMsg stomp.Snapshot

// stompEntry is one line of the history: the session count after the
// stomp and when it landed.
type stompEntry struct {
	n  uint64
	at time.Time
}

// Monitor is the Bubble Tea model showing detector figures and the most
// recent accepted stomps.
type Monitor struct {
	snapshot func() stomp.Snapshot
	title    string

	current  stomp.Snapshot
	history  []stompEntry // Newest first.
	viewport viewport.Model
	ready    bool
}

// NewMonitor returns a monitor polling snapshot. title names the session
// in the header.
func NewMonitor(title string, snapshot func() stomp.Snapshot) Monitor {
	return Monitor{snapshot: snapshot, title: title}
}

func (m Monitor) poll() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return snapshotMsg(m.snapshot())
	})
}

// Init takes the first snapshot immediately.
func (m Monitor) Init() tea.Cmd {
	return func() tea.Msg { return snapshotMsg(m.snapshot()) }
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(msg.Height-12, 1))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(msg.Height-12, 1)
		}
		m.viewport.SetContent(m.renderHistory())

	case snapshotMsg:
		snap := stomp.Snapshot(msg)
		if !snap.LastStomp.IsZero() && (len(m.history) == 0 || !snap.LastStomp.Equal(m.history[0].at)) {
			m.history = append([]stompEntry{{n: snap.Accepted, at: snap.LastStomp}}, m.history...)
			if len(m.history) > historySize {
				m.history = m.history[:historySize]
			}
		}
		if snap.Accepted == 0 {
			m.history = m.history[:0]
		}
		m.current = snap
		if m.ready {
			m.viewport.SetContent(m.renderHistory())
		}
		cmds = append(cmds, m.poll())

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Monitor) View() string {
	if !m.ready {
		return "Initializing..."
	}
	help := infoStyle.Render(fmt.Sprintf("%s: %s • %s: %s",
		keys.Up.Help().Key+" "+keys.Down.Help().Key, "scroll",
		keys.Quit.Help().Key, keys.Quit.Help().Desc))

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s",
		titleStyle.Render(m.title), m.renderFigures(), m.viewport.View(), help)
}

func (m Monitor) renderFigures() string {
	s := m.current
	var sb strings.Builder

	state := s.State.String()
	if s.State == stomp.Detecting {
		state = highlightStyle.Render(state)
	}
	fmt.Fprintf(&sb, "State:      %s\n", state)
	fmt.Fprintf(&sb, "Stomps:     %s\n", highlightStyle.Render(fmt.Sprintf("%d", s.Accepted)))
	fmt.Fprintf(&sb, "Elapsed:    %s\n", s.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Rate:       %.0f/h\n", s.RatePerHour)
	fmt.Fprintf(&sb, "Tempo:      %s (%d intervals)\n", s.Tempo, s.Kicks)
	fmt.Fprintf(&sb, "Cooldown:   %s\n", s.Cooldown.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Threshold:  %.2f g\n", s.Threshold)
	if s.Dropped > 0 || s.Failed > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("Reports:    %d dropped, %d failed", s.Dropped, s.Failed)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Monitor) renderHistory() string {
	if len(m.history) == 0 {
		return "No stomps yet."
	}
	var sb strings.Builder
	for _, e := range m.history {
		fmt.Fprintf(&sb, "%4d  %s\n", e.n, e.at.Format("15:04:05.000"))
	}
	return sb.String()
}

// Run starts the monitor on the alternate screen and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, title string, snapshot func() stomp.Snapshot) error {
	p := tea.NewProgram(NewMonitor(title, snapshot), tea.WithAltScreen())

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	_, err := p.Run()
	return err
}
