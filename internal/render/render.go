// Package render formats assessments and ledger summaries for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pocketpilot/internal/budget"
	"pocketpilot/internal/core"
	"pocketpilot/internal/ledger"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	goodStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	badStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	bodyStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Width(72).
			PaddingLeft(2)
)

// Table is a bordered text table. The first column is left aligned and the
// rest right aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// Separator is a row value that draws a horizontal rule.
var Separator = []string{"---"}

// Title renders a centered title bar in a bordered box.
func Title(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders t with box drawing borders.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		for _, row := range t.Rows {
			if !isSeparator(row) {
				numCols = len(row)
				break
			}
		}
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		for i, h := range t.Headers {
			widths[i] = max(widths[i], lipgloss.Width(h))
		}
		for _, row := range t.Rows {
			if isSeparator(row) {
				continue
			}
			for i, cell := range row {
				if i < numCols {
					widths[i] = max(widths[i], lipgloss.Width(cell))
				}
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + padRight(h, widths[i]) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		if isSeparator(row) {
			rule("├", "┼", "┤")
			continue
		}

		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			var padded string
			if i == 0 {
				padded = " " + padRight(cell, widths[i]) + " "
			} else {
				padded = " " + padLeft(cell, widths[i]) + " "
			}
			b.WriteString(valueStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╰", "┴", "╯")
	return b.String()
}

// Assessment renders a finished workflow run: the expense table, the
// condition taken and the combined advice text.
func Assessment(a budget.Assessment) string {
	s := a.State
	var b strings.Builder

	b.WriteString(Title("POCKETPILOT  Budget assessment"))
	b.WriteString("\n\n")

	rows := make([][]string, 0, s.Expenses.Len()+5)
	for _, it := range s.Expenses.Items() {
		rows = append(rows, []string{core.Capitalize(it.Category), core.FormatCurrency(it.Amount)})
	}
	rows = append(rows,
		Separator,
		[]string{"Total expenses", core.FormatCurrency(s.TotalExpenses())},
		[]string{"Income", core.FormatCurrency(s.Income)},
		Separator,
		[]string{"Savings", core.FormatCurrency(s.Savings)},
	)
	b.WriteString(RenderTable(Table{
		Title:   "Monthly budget",
		Headers: []string{"Category", "Amount"},
		Rows:    rows,
	}))
	b.WriteString("\n")

	status := goodStyle.Render("on track")
	if a.Condition == core.Overspending {
		status = badStyle.Render("overspending")
	}
	fmt.Fprintf(&b, "  %s %s  %s\n\n",
		mutedStyle.Render("Condition:"), status,
		dimStyle.Render(fmt.Sprintf("(%s via %s, %s)", a.Outcome, a.Provider, a.Duration.Round(time.Millisecond))))

	b.WriteString(bodyStyle.Render(s.Advice))
	b.WriteString("\n")
	return b.String()
}

// Summary renders ledger statistics.
func Summary(s ledger.Summary) string {
	var b strings.Builder

	window := "all time"
	if !s.Since.IsZero() {
		window = "since " + s.Since.Format("2006-01-02 15:04")
	}
	b.WriteString(Title("POCKETPILOT  Outcomes " + window))
	b.WriteString("\n\n")

	if s.Total == 0 {
		b.WriteString("  " + warnStyle.Render("No assessments recorded yet.") + "\n")
		return b.String()
	}

	b.WriteString(RenderTable(Table{
		Rows: [][]string{
			{"Assessments", fmt.Sprintf("%d", s.Total)},
			{"Mean duration", fmt.Sprintf("%.0f ms", s.MeanDurationMs)},
		},
	}))
	b.WriteString("\n")

	for _, group := range []struct {
		title  string
		header string
		counts map[string]int
	}{
		{"By condition", "Condition", s.ByCondition},
		{"By generator outcome", "Outcome", s.ByOutcome},
		{"By provider", "Provider", s.ByProvider},
	} {
		b.WriteString(RenderTable(Table{
			Title:   group.title,
			Headers: []string{group.header, "Count", "Share"},
			Rows:    countRows(group.counts, s.Total),
		}))
		b.WriteString("\n")
	}
	return b.String()
}

// countRows orders counts descending, breaking ties by key.
func countRows(counts map[string]int, total int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		share := 0.0
		if total > 0 {
			share = float64(counts[k]) / float64(total) * 100
		}
		rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k]), fmt.Sprintf("%.1f%%", share)})
	}
	return rows
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == "---"
}

func padRight(s string, w int) string {
	if n := w - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func padLeft(s string, w int) string {
	if n := w - lipgloss.Width(s); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}
