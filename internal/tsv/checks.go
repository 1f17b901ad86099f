package tsv

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Specialized row checkers. Each consumes the full grid plus the file
// descriptor, appends to the returned slice, and carries no state between
// files.

var acqTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
}

// checkAcqTime validates the acq_time column of a scans file against the
// yyyy-mm-ddThh:mm:ss format (optional fractional seconds). Blank and n/a
// cells are acceptable.
func checkAcqTime(file File, grid Grid) []Issue {
	col := grid.columnIndex("acq_time")
	if col < 0 {
		return nil
	}

	var issues []Issue
	for i, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		value := row[col]
		if value == "" || value == "n/a" {
			continue
		}
		if parsesAsAcqTime(value) {
			continue
		}
		issue := newIssue(file, CodeAcqTimeFormat)
		issue.Line = i + 1
		issue.Evidence = value
		issue.Reason = "acq_time must use the yyyy-mm-ddThh:mm:ss format"
		issues = append(issues, issue)
	}
	return issues
}

func parsesAsAcqTime(value string) bool {
	for _, layout := range acqTimeLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// checkAge flags participant ages of 89 or higher, which identify the
// participant and must be binned before sharing.
func checkAge(file File, grid Grid) []Issue {
	col := grid.columnIndex("age")
	if col < 0 {
		return nil
	}

	var issues []Issue
	for i, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		age, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			continue
		}
		if age < 89 {
			continue
		}
		issue := newIssue(file, CodeImplausibleAge)
		issue.Line = i + 1
		issue.Evidence = row[col]
		issue.Reason = "age of 89 or higher must be recoded to protect participant identity"
		issues = append(issues, issue)
	}
	return issues
}

// checkStatusColumn validates the optional status column of a channels file:
// each value must be good, bad, or n/a.
func checkStatusColumn(file File, grid Grid) []Issue {
	col := grid.columnIndex("status")
	if col < 0 {
		return nil
	}

	var issues []Issue
	for i, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		switch row[col] {
		case "good", "bad", "n/a", "":
			continue
		}
		issue := newIssue(file, CodeInvalidStatusValue)
		issue.Line = i + 1
		issue.Evidence = row[col]
		issue.Reason = fmt.Sprintf("status must be one of good, bad, n/a (found %q)", row[col])
		issues = append(issues, issue)
	}
	return issues
}
