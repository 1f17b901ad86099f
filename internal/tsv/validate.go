package tsv

import (
	"errors"
	"fmt"
	"strings"
)

// Result is delivered synchronously, exactly once per call. ParticipantIDs is
// nil when the file is not a participants/phenotype table or lacks the
// participant_id column — callers must distinguish nil ("not extractable")
// from an empty list ("extractable, zero participants"). StimulusPaths is
// empty when the file has no stimulus references.
type Result struct {
	Issues         []Issue
	ParticipantIDs []string
	StimulusPaths  []string
}

// Validate runs every applicable rule set over one tabular file. It consumes
// the raw text plus the dataset's full file list (used only for existence
// tests of referenced paths) and never mutates either. Detected problems
// become issues; nothing here aborts or ranks severity.
func Validate(file File, contents string, dataset []File) Result {
	grid, err := ParseGrid(contents)
	if err != nil && errors.Is(err, ErrCarriageReturnOnly) {
		issue := newIssue(file, CodeInconsistentLineEndings)
		issue.Reason = "file contains carriage returns with no line feeds"
		return Result{Issues: []Issue{issue}, StimulusPaths: []string{}}
	}

	issues := checkRows(file, grid)

	role := classifyRole(file)
	var participants []string
	stimuli := []string{}

	switch role {
	case RoleEvents:
		if issue, ok := checkHeader(file, grid, "onset", 0, CodeEventsOnsetColumn, false); !ok {
			issues = append(issues, issue)
		}
		if issue, ok := checkHeader(file, grid, "duration", 1, CodeEventsDurationColumn, true); !ok {
			issues = append(issues, issue)
		}
		var stimIssues []Issue
		stimIssues, stimuli = checkStimuli(file, grid, dataset)
		issues = append(issues, stimIssues...)

	case RoleChannelsMEG, RoleChannelsEEG:
		issues = append(issues, checkHeaders(file, grid, CodeChannelsColumns, "name", "type", "units")...)

	case RoleChannelsIEEG:
		issues = append(issues, checkHeaders(file, grid, CodeIEEGChannelsColumns, "name", "type", "units", "low_cutoff", "high_cutoff")...)

	case RoleElectrodesEEG:
		issues = append(issues, checkHeaders(file, grid, CodeEEGElectrodesColumns, "name", "x", "y", "z")...)

	case RoleElectrodesIEEG:
		issues = append(issues, checkHeaders(file, grid, CodeIEEGElectrodesColumns, "name", "x", "y", "z", "size")...)

	case RoleParticipants:
		if grid.columnIndex("participant_id") < 0 {
			issue := newIssue(file, CodeParticipantIDColumn)
			issue.Evidence = strings.Join(grid.Headers, "\t")
			issue.Reason = "a participant_id column is required"
			issues = append(issues, issue)
		} else {
			participants = extractParticipants(grid)
		}

	case RoleScans:
		if grid.columnIndex("filename") < 0 {
			issue := newIssue(file, CodeFilenameColumn)
			issue.Evidence = strings.Join(grid.Headers, "\t")
			issue.Reason = "a filename column is required"
			issues = append(issues, issue)
		}
	}

	issues = append(issues, checkUnits(file, grid)...)

	switch {
	case role.isChannels():
		issues = append(issues, checkStatusColumn(file, grid)...)
	case role == RoleScans:
		issues = append(issues, checkAcqTime(file, grid)...)
	case role == RoleParticipants && file.Name == "participants.tsv":
		issues = append(issues, checkAge(file, grid)...)
	}

	return Result{Issues: issues, ParticipantIDs: participants, StimulusPaths: stimuli}
}

// checkRows is the generic structural and value pass. Each of the three
// conditions fires at most once per file so systemic problems do not flood
// the output, and the gates are independent: a row can mismatch the header
// length and contain empty cells at the same time. Scanning stops once all
// gates have fired.
func checkRows(file File, grid Grid) []Issue {
	var issues []Issue
	var mismatchSeen, emptySeen, sentinelSeen bool

	for i, row := range grid.Rows {
		if isEmptyRow(row) {
			continue
		}

		if !mismatchSeen && len(row) != len(grid.Headers) {
			mismatchSeen = true
			issue := newIssue(file, CodeColumnCountMismatch)
			issue.Line = i + 1
			issue.Evidence = strings.Join(row, "\t")
			issue.Reason = fmt.Sprintf("row has %d columns, header has %d", len(row), len(grid.Headers))
			issues = append(issues, issue)
		}

		for j, cell := range row {
			if !emptySeen && cell == "" {
				emptySeen = true
				issue := newIssue(file, CodeEmptyCell)
				issue.Line = i
				issue.Evidence = strings.Join(row, "\t")
				issue.Reason = fmt.Sprintf("column %d is empty; empty cells must be coded as n/a", j+1)
				issues = append(issues, issue)
			}
			if !sentinelSeen && isBadMissingValue(cell) {
				sentinelSeen = true
				issue := newIssue(file, CodeBadMissingValue)
				issue.Line = i + 1
				issue.Evidence = cell
				issue.Reason = fmt.Sprintf("missing values must be coded as n/a (found %q)", cell)
				issues = append(issues, issue)
			}
			if emptySeen && sentinelSeen {
				break
			}
		}

		if mismatchSeen && emptySeen && sentinelSeen {
			break
		}
	}
	return issues
}

// isBadMissingValue matches the common wrong spellings of the n/a sentinel.
func isBadMissingValue(cell string) bool {
	switch cell {
	case "NA", "na", "nan", "NaN":
		return true
	}
	return false
}

// checkHeader verifies that the header at the given 0-based position equals
// the expected name. The returned issue's evidence is the full header line;
// its character offset locates the actual header token within the first data
// row (best effort — not meaningful when headers are absent entirely).
func checkHeader(file File, grid Grid, expected string, position int, code int, trimmed bool) (Issue, bool) {
	if position < len(grid.Headers) {
		actual := grid.Headers[position]
		if trimmed {
			actual = strings.TrimSpace(actual)
		}
		if actual == expected {
			return Issue{}, true
		}
	}

	issue := newIssue(file, code)
	issue.Evidence = strings.Join(grid.Headers, "\t")
	issue.Reason = fmt.Sprintf("column %d must be named %q", position+1, expected)
	if position < len(grid.Headers) && len(grid.Rows) > 0 {
		issue.Character = strings.Index(strings.Join(grid.Rows[0], "\t"), grid.Headers[position])
	}
	return issue, false
}

// checkHeaders applies checkHeader to an ordered prefix of required names,
// all sharing one violation code.
func checkHeaders(file File, grid Grid, code int, expected ...string) []Issue {
	var issues []Issue
	for position, name := range expected {
		if issue, ok := checkHeader(file, grid, name, position, code, false); !ok {
			issues = append(issues, issue)
		}
	}
	return issues
}

// checkStimuli cross-references an events file's stim_file column against the
// dataset file list. Every first-seen stimulus name contributes
// /stimuli/<name> to the returned path list whether or not it exists; names
// missing from the dataset additionally produce an issue.
func checkStimuli(file File, grid Grid, dataset []File) ([]Issue, []string) {
	paths := []string{}
	col := grid.columnIndex("stim_file")
	if col < 0 {
		return nil, paths
	}

	present := make(map[string]struct{}, len(dataset))
	for _, f := range dataset {
		present[f.RelativePath] = struct{}{}
	}

	var issues []Issue
	seen := make(map[string]struct{})
	for i, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		name := row[col]
		if name == "" || name == "n/a" || name == "stim_file" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		path := "/stimuli/" + name
		paths = append(paths, path)
		if _, ok := present[path]; ok {
			continue
		}

		issue := newIssue(file, CodeStimulusFileMissing)
		issue.Line = i + 1
		issue.Character = strings.Index(strings.Join(row, "\t"), name)
		issue.Evidence = path
		issue.Reason = fmt.Sprintf("stimulus file %q declared but not found in the dataset", name)
		issues = append(issues, issue)
	}
	return issues, paths
}

// extractParticipants reads the participant_id column, stripping the sub-
// prefix and excluding the emptyroom sentinel. Returns nil when the column
// is absent.
func extractParticipants(grid Grid) []string {
	col := grid.columnIndex("participant_id")
	if col < 0 {
		return nil
	}

	ids := []string{}
	for _, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		id := strings.TrimPrefix(row[col], "sub-")
		if id == "emptyroom" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// checkUnits submits every data row's units cell to the SI-unit validator.
// It runs whenever a units column exists, independent of file role.
func checkUnits(file File, grid Grid) []Issue {
	col := grid.columnIndex("units")
	if col < 0 {
		return nil
	}

	var issues []Issue
	for i, row := range grid.Rows {
		if isEmptyRow(row) || col >= len(row) {
			continue
		}
		ok, evidence := CheckUnit(row[col])
		if ok {
			continue
		}
		issue := newIssue(file, CodeInvalidUnit)
		issue.Line = i + 1
		issue.Evidence = evidence
		issue.Reason = "units must be valid SI unit symbols"
		issues = append(issues, issue)
	}
	return issues
}
