// Package tabular parses the tab-or-comma-delimited text files produced
// by spreadsheet exports: UTF-8 with a BOM, first row headers, remaining
// rows mapped positionally.
package tabular

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Rows reads every data row, discarding the header row and any blank
// lines. Tab is preferred as delimiter; a row without tabs falls back to
// commas.
func Rows(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]string
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			first = false
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitRow(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func splitRow(line string) []string {
	sep := "\t"
	if !strings.Contains(line, "\t") {
		sep = ","
	}
	cells := strings.Split(line, sep)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// SanitizeNumber strips every character except digits and dots before
// parsing, so cells like "1,250.00 SAR" survive the round trip.
func SanitizeNumber(cell string) string {
	var b strings.Builder
	for _, r := range cell {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Cell returns the i-th cell or the empty string when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
