package progress

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"garnet-sweep/internal/sweep"
)

var (
	statusColors = map[sweep.Status]lipgloss.Color{
		sweep.StatusWaiting:        lipgloss.Color("8"),
		sweep.StatusRunning:        lipgloss.Color("11"),
		sweep.StatusReadingMetrics: lipgloss.Color("14"),
		sweep.StatusSuccess:        lipgloss.Color("10"),
		sweep.StatusFailed:         lipgloss.Color("9"),
	}
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// StatusStyle returns the display style of a status.
func StatusStyle(s sweep.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(statusColors[s])
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

func countsLine(v View, styled bool) string {
	parts := make([]string, 0, len(sweep.Statuses))
	for _, s := range sweep.Statuses {
		n := v.Counts[s]
		if n == 0 {
			continue
		}
		part := fmt.Sprintf("%s=%d", strings.ToLower(string(s)), n)
		if styled {
			part = StatusStyle(s).Render(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

func progressBar(pct float64, width int) string {
	if width < 1 {
		width = 1
	}
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}
