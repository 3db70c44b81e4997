package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// maxCellWidth truncates long cells (URLs, previews) in text tables.
const maxCellWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// renderTable lays rows out in left-aligned columns separated by two
// spaces. Empty cells stay blank.
func renderTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = truncate(cell, maxCellWidth)
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow(&b, header, widths, headerStyle)
	for _, row := range rows {
		writeRow(&b, row, widths, lipgloss.NewStyle())
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int, style lipgloss.Style) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = style.Width(widths[i]).Render(cell)
	}
	b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
	b.WriteByte('\n')
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
