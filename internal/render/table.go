package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const maxTitleWidth = 50

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// CheckRow is one validator result for display.
type CheckRow struct {
	Name     string
	Severity string // "pass", "warning", or "blocking"
	Detail   string
}

// severityColor maps a check severity to a terminal color.
func severityColor(severity string) lipgloss.Color {
	switch severity {
	case "pass":
		return lipgloss.Color("10")
	case "warning":
		return lipgloss.Color("11")
	case "blocking":
		return lipgloss.Color("9")
	default:
		return lipgloss.Color("15")
	}
}

func severityLabel(severity string) string {
	switch severity {
	case "pass":
		return "pass"
	case "warning":
		return "warn"
	case "blocking":
		return "FAIL"
	default:
		return severity
	}
}

// ChecksTable renders validator results as a bordered table, falling back to
// plain columns when colors are disabled.
func ChecksTable(rows []CheckRow) string {
	if len(rows) == 0 {
		return ""
	}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-40s %-6s %s\n", "Check", "Result", "Detail")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 80))
		for _, r := range rows {
			fmt.Fprintf(&b, "%-40s %-6s %s\n", r.Name, severityLabel(r.Severity), r.Detail)
		}
		return b.String()
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.Name, severityLabel(r.Severity), r.Detail})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Check", "Result", "Detail").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return s.Foreground(severityColor(rows[row].Severity))
			}
			return s
		})

	return t.Render()
}

// CountRow is one category count for display.
type CountRow struct {
	Category string
	Count    int
	Note     string
}

// CountsTable renders category counts (extraction analysis, snapshot
// contents) as a table.
func CountsTable(title string, rows []CountRow) string {
	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("-", len(title)))
		for _, r := range rows {
			fmt.Fprintf(&b, "%-28s %6d  %s\n", r.Category, r.Count, r.Note)
		}
		return b.String()
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.Category, fmt.Sprintf("%d", r.Count), r.Note})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Category", "Count", "Notes").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if col == 1 {
				return s.Foreground(lipgloss.Color("12"))
			}
			return s
		})

	header := StyledText(title, lipgloss.NewStyle().Bold(true))
	return header + "\n" + t.Render()
}

// Truncate shortens a string to maxLen runes, appending an ellipsis if
// truncated.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Age renders a timestamp as a humanized relative time, e.g. "3 days ago".
func Age(t time.Time) string {
	return humanize.Time(t)
}

// TitleLine renders an issue heading for the inspect listing.
func TitleLine(iid int, title, state string, updated time.Time) string {
	text := fmt.Sprintf("#%-5d %-9s %s (%s)", iid, state, Truncate(title, maxTitleWidth), Age(updated))
	if !ColorsEnabled() {
		return text
	}
	stateColor := lipgloss.Color("10")
	if state != "opened" {
		stateColor = lipgloss.Color("13")
	}
	return fmt.Sprintf("%s %s %s %s",
		lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Render(fmt.Sprintf("#%-5d", iid)),
		lipgloss.NewStyle().Foreground(stateColor).Render(fmt.Sprintf("%-9s", state)),
		lipgloss.NewStyle().Bold(true).Render(Truncate(title, maxTitleWidth)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("("+Age(updated)+")"),
	)
}
