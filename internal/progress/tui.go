package progress

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"garnet-sweep/internal/sweep"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// viewMsg carries a fresh projection to the model.
type viewMsg struct{ View }

const (
	minStatusWidth = 16
	minReasonWidth = 20
	chromeLines    = 6
)

// TUISink renders the live view full screen with bubbletea. Quitting the
// UI interrupts the process, which stops dispatching new jobs.
type TUISink struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUISink starts the bubbletea program.
func NewTUISink(title string, schema sweep.Schema) *TUISink {
	s := &TUISink{done: make(chan struct{})}
	s.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(title, schema), tea.WithAltScreen())
	s.program = p
	go func() {
		_, _ = p.Run()
		close(s.done)
		if s.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return s
}

// Render implements Sink.
func (s *TUISink) Render(v View) error {
	s.program.Send(viewMsg{v})
	return nil
}

// Close shuts down the program and waits for the terminal to be restored.
func (s *TUISink) Close() error {
	s.sendSignal.Store(false)
	if s.program != nil {
		s.program.Send(tea.Quit())
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}

type tuiModel struct {
	title      string
	schema     sweep.Schema
	view       View
	table      table.Model
	width      int
	height     int
	onlyFailed bool
	help       bool
}

func newTUIModel(title string, schema sweep.Schema) tuiModel {
	m := tuiModel{title: title, schema: schema, width: 100, height: 30}
	m.table = table.New(table.WithColumns(m.columns()), table.WithFocused(true))
	m.resize()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()
	case viewMsg:
		m.view = msg.View
		m.refresh()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.onlyFailed = !m.onlyFailed
			m.refresh()
		case "?", "h":
			m.help = true
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m tuiModel) columns() []table.Column {
	axes := len(m.schema.Axes)
	cols := make([]table.Column, 0, axes+2)
	fixed := minStatusWidth
	axisWidth := 10
	if axes > 0 {
		axisWidth = (m.width - fixed - minReasonWidth) / axes
		if axisWidth < 6 {
			axisWidth = 6
		}
	}
	for _, c := range m.schema.Axes {
		cols = append(cols, table.Column{Title: columnTitle(c), Width: axisWidth})
	}
	reason := m.width - fixed - axisWidth*axes - 2*(axes+2)
	if reason < minReasonWidth {
		reason = minReasonWidth
	}
	return append(cols,
		table.Column{Title: "STATUS", Width: minStatusWidth},
		table.Column{Title: "REASON", Width: reason},
	)
}

func (m *tuiModel) resize() {
	m.table.SetRows(nil)
	m.table.SetColumns(m.columns())
	m.table.SetWidth(m.width)
	h := m.height - chromeLines
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}

func (m *tuiModel) refresh() {
	cols := m.table.Columns()
	reasonWidth := 0
	if len(cols) > 0 {
		reasonWidth = cols[len(cols)-1].Width
	}
	rows := make([]table.Row, 0, len(m.view.Pending))
	for _, r := range m.view.Pending {
		if m.onlyFailed && r.Status != sweep.StatusFailed {
			continue
		}
		rows = append(rows, table.Row(rowCells(r, len(m.schema.Axes), reasonWidth)))
	}
	m.table.SetRows(rows)
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	title := m.title
	if title == "" {
		title = "sweep"
	}
	pct := m.view.Percent()
	barWidth := m.width - 40
	if barWidth < 10 {
		barWidth = 10
	}
	header := fmt.Sprintf("%s  %d/%d  %s",
		titleStyle.Render(title), m.view.Completed, m.view.Total, m.view.Elapsed.Round(time.Second))
	bar := fmt.Sprintf("%s %5.1f%%", progressBar(pct, barWidth), pct)
	list := "Not yet successful:"
	if m.onlyFailed {
		list = "Failed:"
	}
	sections := []string{
		header,
		bar,
		countsLine(m.view, true),
		list,
		m.table.View(),
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderBottom() string {
	filterColor := lipgloss.Color("9")
	if m.onlyFailed {
		filterColor = lipgloss.Color("10")
	}
	filterIndicator := lipgloss.NewStyle().Foreground(filterColor).Render("●")
	state := "running"
	if m.view.Done {
		state = "finished"
	}
	return dimStyle.Render(fmt.Sprintf("%s | q quit | f failed only ", state)) + filterIndicator + dimStyle.Render(" | ? help")
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q       quit (stops dispatching new jobs)",
		" f       toggle failed rows only",
		" j/k     scroll one row",
		" pgup/dn scroll a page",
		" h/?     toggle this help view",
	}
	return strings.Join(lines, "\n")
}
