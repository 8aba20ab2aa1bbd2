package util

import (
	"fmt"
	"io"
	"strings"
)

// TableColumn represents a column in a table
type TableColumn struct {
	Header string
	Key    string // key to extract from data map
	Width  int    // calculated width
}

// RenderTable renders a table with dynamic column width calculation.
// Values may carry ANSI color codes; padding is computed on the visible text.
func RenderTable(w io.Writer, columns []TableColumn, data []map[string]interface{}) {
	if len(data) == 0 {
		fmt.Fprintln(w, "No data to display")
		return
	}

	for i := range columns {
		columns[i].Width = getDisplayWidth(columns[i].Header)
		for _, row := range data {
			if value, exists := row[columns[i].Key]; exists {
				if width := getDisplayWidth(fmt.Sprintf("%v", value)); width > columns[i].Width {
					columns[i].Width = width
				}
			}
		}
	}

	headerParts := make([]string, 0, len(columns))
	separatorParts := make([]string, 0, len(columns))
	for _, col := range columns {
		headerParts = append(headerParts, padStringToWidth(col.Header, col.Width))
		separatorParts = append(separatorParts, strings.Repeat("-", col.Width))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(headerParts, "  "), " "))
	fmt.Fprintln(w, strings.Join(separatorParts, "  "))

	for _, row := range data {
		rowParts := make([]string, 0, len(columns))
		for _, col := range columns {
			value := ""
			if v, exists := row[col.Key]; exists {
				value = fmt.Sprintf("%v", v)
			}
			rowParts = append(rowParts, padStringToWidth(value, col.Width))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(rowParts, "  "), " "))
	}
}

// removeANSICodes removes ANSI escape codes from a string for width calculation
func removeANSICodes(s string) string {
	for {
		start := strings.Index(s, "\033[")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "m")
		if end == -1 {
			break
		}
		s = s[:start] + s[start+end+1:]
	}
	return s
}

// getDisplayWidth calculates the display width of a string, accounting for ANSI codes and Unicode characters
func getDisplayWidth(s string) int {
	return len([]rune(removeANSICodes(s)))
}

// padStringToWidth pads a string to a specific width, accounting for ANSI codes
func padStringToWidth(s string, width int) string {
	displayWidth := getDisplayWidth(s)
	if displayWidth >= width {
		return s
	}
	return s + strings.Repeat(" ", width-displayWidth)
}
