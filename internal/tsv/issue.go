package tsv

import "encoding/json"

// Issue codes form a closed, stable enumeration. Downstream messaging and
// severity profiles key off these values, so they must not be renumbered.
const (
	CodeEventsOnsetColumn       = 20
	CodeEventsDurationColumn    = 21
	CodeColumnCountMismatch     = 22
	CodeEmptyCell               = 23
	CodeBadMissingValue         = 24
	CodeParticipantIDColumn     = 48
	CodeStimulusFileMissing     = 52
	CodeImplausibleAge          = 56
	CodeFilenameColumn          = 68
	CodeInconsistentLineEndings = 70
	CodeChannelsColumns         = 71
	CodeIEEGChannelsColumns     = 72
	CodeIEEGElectrodesColumns   = 73
	CodeAcqTimeFormat           = 84
	CodeEEGElectrodesColumns    = 96
	CodeInvalidUnit             = 124
	CodeInvalidStatusValue      = 125
)

// File identifies a dataset member under validation. RelativePath is rooted
// at the dataset root and starts with "/".
type File struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
}

// Issue is one detected violation. Line is 1-based with 0 meaning unset;
// Character is a 0-based offset with -1 meaning unset. Issues are never
// mutated after construction.
type Issue struct {
	File      File
	Code      int
	Line      int
	Character int
	Evidence  string
	Reason    string
}

func newIssue(file File, code int) Issue {
	return Issue{File: file, Code: code, Character: -1}
}

// MarshalJSON omits the optional line and character fields when unset so
// reports never carry sentinel values.
func (i Issue) MarshalJSON() ([]byte, error) {
	out := struct {
		File      File   `json:"file"`
		Code      int    `json:"code"`
		Line      int    `json:"line,omitempty"`
		Character *int   `json:"character,omitempty"`
		Evidence  string `json:"evidence,omitempty"`
		Reason    string `json:"reason,omitempty"`
	}{
		File:     i.File,
		Code:     i.Code,
		Line:     i.Line,
		Evidence: i.Evidence,
		Reason:   i.Reason,
	}
	if i.Character >= 0 {
		char := i.Character
		out.Character = &char
	}
	return json.Marshal(out)
}
