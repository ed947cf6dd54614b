// Package report renders engine results for terminals.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"

	"fieldops-nav/internal/engine"
	"fieldops-nav/internal/nav"
	"fieldops-nav/internal/signal"
)

const defaultWidth = 100

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true)

	directionColors = map[string]lipgloss.Color{
		"FRONT": lipgloss.Color("10"),
		"RIGHT": lipgloss.Color("11"),
		"LEFT":  lipgloss.Color("11"),
		"BACK":  lipgloss.Color("9"),
	}
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or a default when unknown.
func Width(f *os.File) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
		return w
	}
	return defaultWidth
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// History renders journal records as a table. The record column is cut to
// fit width.
func History(w io.Writer, log string, recs []engine.Record, width int) error {
	if width <= 0 {
		width = defaultWidth
	}
	recWidth := width - 16
	if recWidth < 20 {
		recWidth = 20
	}
	t := newTable("seq", "record")
	for _, r := range recs {
		b, err := json.Marshal(r.Record)
		if err != nil {
			return err
		}
		t.Row(strconv.FormatUint(r.Seq, 10), truncate.StringWithTail(string(b), uint(recWidth), "…"))
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(fmt.Sprintf("%s (%d)", log, len(recs))), t.Render())
	return err
}

// Summary renders per-source signal statistics.
func Summary(w io.Writer, sums []engine.SourceSummary) error {
	t := newTable("source", "readings", "avg dBm", "min", "max", "strength", "bars", "last seen")
	for _, s := range sums {
		t.Row(
			truncate.StringWithTail(s.SourceID, 24, "…"),
			strconv.Itoa(s.Readings),
			fmt.Sprintf("%.1f", s.AvgRSSI),
			fmt.Sprintf("%.0f", s.MinRSSI),
			fmt.Sprintf("%.0f", s.MaxRSSI),
			s.Strength,
			signal.Bars(s.AvgRSSI),
			s.LastSeen.Format(time.RFC3339),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Navigation renders a resolved direction.
func Navigation(w io.Writer, res nav.Result) error {
	dir := string(res.Direction)
	style := titleStyle.Foreground(directionColors[dir])
	t := newTable("direction", "bearing", "distance", "heading", "diff")
	t.Row(
		style.Render(dir),
		fmt.Sprintf("%.1f°", res.Bearing),
		fmt.Sprintf("%.2f m", res.DistanceMeters),
		fmt.Sprintf("%.1f°", res.Heading),
		fmt.Sprintf("%+.1f°", res.HeadingDiff),
	)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Conversion renders a signal conversion on one line.
func Conversion(w io.Writer, c engine.Conversion) error {
	_, err := fmt.Fprintf(w, "%d dBm = %d%%  %s  %s\n", c.DBM, c.Percent, c.Bars, c.Strength)
	return err
}
