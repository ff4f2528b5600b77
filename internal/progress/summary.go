package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"garnet-sweep/internal/sweep"
)

const maxReasonWidth = 60

// Summary renders the final report: counts per status followed by every
// row that did not succeed.
func Summary(v View) string {
	var b strings.Builder
	title := v.Title
	if title == "" {
		title = "sweep"
	}
	fmt.Fprintf(&b, "%s  %d/%d jobs finished (%.1f%%) in %s\n",
		titleStyle.Render(title), v.Completed, v.Total, v.Percent(), v.Elapsed.Round(time.Second))

	counts := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("STATUS", "JOBS").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == 0 && row >= 0 && row < len(sweep.Statuses) {
				return s.Inherit(StatusStyle(sweep.Statuses[row]))
			}
			return s
		})
	for _, s := range sweep.Statuses {
		counts.Row(string(s), strconv.Itoa(v.Counts[s]))
	}
	b.WriteString(counts.Render())
	b.WriteString("\n")

	if len(v.Pending) == 0 {
		return b.String()
	}
	headers := make([]string, 0, len(v.Schema.Axes)+2)
	for _, c := range v.Schema.Axes {
		headers = append(headers, columnTitle(c))
	}
	headers = append(headers, "STATUS", "REASON")
	statusCol := len(v.Schema.Axes)
	pending := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col == statusCol && row >= 0 && row < len(v.Pending) {
				return s.Inherit(StatusStyle(v.Pending[row].Status))
			}
			return s
		})
	for _, r := range v.Pending {
		pending.Row(rowCells(r, len(v.Schema.Axes), maxReasonWidth)...)
	}
	b.WriteString(pending.Render())
	b.WriteString("\n")
	return b.String()
}

func columnTitle(c sweep.Column) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

func rowCells(r sweep.Row, axes, reasonWidth int) []string {
	cells := make([]string, 0, axes+2)
	for i := 0; i < axes; i++ {
		if i < len(r.Identity) {
			cells = append(cells, r.Identity[i])
		} else {
			cells = append(cells, "")
		}
	}
	return append(cells, string(r.Status), clip(r.Reason, reasonWidth))
}
