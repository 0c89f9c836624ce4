package format

import (
	"strings"
)

// RenderText renders a table as aligned monospace text for terminal output.
func RenderText(table *Table) string {
	if table == nil || len(table.Columns) == 0 {
		return ""
	}

	widths := make([]int, len(table.Columns))
	for i, column := range table.Columns {
		widths[i] = len(column)
	}
	rendered := make([][]string, len(table.Rows))
	for r, row := range table.Rows {
		cells := make([]string, len(table.Columns))
		for c := range table.Columns {
			cell := ""
			if c < len(row) {
				cell = renderValue(row[c])
			}
			cells[c] = cell
			if len(cell) > widths[c] {
				widths[c] = len(cell)
			}
		}
		rendered[r] = cells
	}

	var builder strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				builder.WriteString("  ")
			}
			builder.WriteString(cell)
			builder.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		builder.WriteString("\n")
	}

	writeRow(table.Columns)
	separators := make([]string, len(table.Columns))
	for i, width := range widths {
		separators[i] = strings.Repeat("-", width)
	}
	writeRow(separators)
	for _, cells := range rendered {
		writeRow(cells)
	}
	return builder.String()
}
