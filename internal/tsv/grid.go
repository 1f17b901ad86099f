package tsv

import (
	"errors"
	"strings"
)

// ErrCarriageReturnOnly is returned when the input uses carriage returns with
// no line feeds anywhere. Any row/column split of such text is meaningless,
// so parsing refuses to produce a grid.
var ErrCarriageReturnOnly = errors.New("carriage-return-only line endings")

// Grid is the parsed header/row representation of a tabular file. Headers
// keep file order; Rows keep file order and drive 1-based line numbers in
// issues (header excluded). Individual rows may legitimately differ in length
// from Headers — that mismatch is a reportable condition, not a parse error.
type Grid struct {
	Headers []string
	Rows    [][]string
}

// ParseGrid splits raw text into a grid. Lines end at "\n" with an optional
// preceding "\r"; cells are separated by single tabs. The first line is the
// header row.
func ParseGrid(contents string) (Grid, error) {
	if strings.ContainsRune(contents, '\r') && !strings.ContainsRune(contents, '\n') {
		return Grid{}, ErrCarriageReturnOnly
	}

	lines := strings.Split(contents, "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		rows = append(rows, strings.Split(line, "\t"))
	}

	return Grid{Headers: rows[0], Rows: rows[1:]}, nil
}

// isEmptyRow reports whether a row is structurally empty: a single cell that
// is blank or whitespace. Such rows (typically a trailing newline) are
// skipped by every positional check.
func isEmptyRow(row []string) bool {
	if len(row) == 0 {
		return true
	}
	return len(row) == 1 && strings.TrimSpace(row[0]) == ""
}

// columnIndex returns the position of the named header, or -1.
func (g Grid) columnIndex(name string) int {
	for i, header := range g.Headers {
		if header == name {
			return i
		}
	}
	return -1
}
