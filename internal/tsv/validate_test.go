package tsv

import (
	"reflect"
	"testing"
)

func issuesWithCode(issues []Issue, code int) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Code == code {
			out = append(out, issue)
		}
	}
	return out
}

func TestValidate_CarriageReturnOnly(t *testing.T) {
	file := File{Name: "sub-01_task-x_events.tsv", RelativePath: "/sub-01/func/sub-01_task-x_events.tsv"}
	res := Validate(file, "onset\tduration\r1\t2\r", nil)

	if len(res.Issues) != 1 {
		t.Fatalf("issues=%d, want exactly 1", len(res.Issues))
	}
	if res.Issues[0].Code != CodeInconsistentLineEndings {
		t.Fatalf("code=%d, want %d", res.Issues[0].Code, CodeInconsistentLineEndings)
	}
	if res.ParticipantIDs != nil {
		t.Fatalf("participants=%v, want nil", res.ParticipantIDs)
	}
	if len(res.StimulusPaths) != 0 {
		t.Fatalf("stimuli=%v, want empty", res.StimulusPaths)
	}
}

func TestValidate_CleanGrid(t *testing.T) {
	file := File{Name: "sub-01_beh.tsv", RelativePath: "/sub-01/beh/sub-01_beh.tsv"}
	res := Validate(file, "trial\tresponse\n1\tleft\n2\tright\n", nil)
	if len(res.Issues) != 0 {
		t.Fatalf("issues=%v, want none", res.Issues)
	}
}

func TestValidate_ColumnMismatchOncePerFile(t *testing.T) {
	file := File{Name: "sub-01_beh.tsv", RelativePath: "/sub-01/beh/sub-01_beh.tsv"}
	res := Validate(file, "a\tb\n1\n2\n3\t4\t5\n", nil)

	got := issuesWithCode(res.Issues, CodeColumnCountMismatch)
	if len(got) != 1 {
		t.Fatalf("mismatch issues=%d, want exactly 1", len(got))
	}
	if got[0].Line != 1 {
		t.Fatalf("line=%d, want 1 (first occurrence wins)", got[0].Line)
	}
	if got[0].Evidence != "1" {
		t.Fatalf("evidence=%q", got[0].Evidence)
	}
}

func TestValidate_EmptyCellAndSentinelIndependent(t *testing.T) {
	file := File{Name: "sub-01_beh.tsv", RelativePath: "/sub-01/beh/sub-01_beh.tsv"}
	res := Validate(file, "a\tb\nNA\t\nnan\t\n", nil)

	empty := issuesWithCode(res.Issues, CodeEmptyCell)
	sentinel := issuesWithCode(res.Issues, CodeBadMissingValue)
	if len(empty) != 1 {
		t.Fatalf("empty-cell issues=%d, want exactly 1", len(empty))
	}
	if len(sentinel) != 1 {
		t.Fatalf("sentinel issues=%d, want exactly 1", len(sentinel))
	}
	// Empty-cell issues carry the owning row's 0-based index.
	if empty[0].Line != 0 {
		t.Fatalf("empty-cell line=%d, want 0", empty[0].Line)
	}
	if sentinel[0].Line != 1 || sentinel[0].Evidence != "NA" {
		t.Fatalf("sentinel issue=%+v", sentinel[0])
	}
}

func TestValidate_EventsHeaders(t *testing.T) {
	file := File{Name: "task-x_events.tsv", RelativePath: "/task-x_events.tsv"}

	res := Validate(file, "onset\tduration\n1\t2\n", nil)
	if len(issuesWithCode(res.Issues, CodeEventsOnsetColumn)) != 0 ||
		len(issuesWithCode(res.Issues, CodeEventsDurationColumn)) != 0 {
		t.Fatalf("issues=%v, want no header issues", res.Issues)
	}

	res = Validate(file, "time\tduration\n1\t2\n", nil)
	onset := issuesWithCode(res.Issues, CodeEventsOnsetColumn)
	if len(onset) != 1 {
		t.Fatalf("onset issues=%d, want exactly 1", len(onset))
	}
	if len(issuesWithCode(res.Issues, CodeEventsDurationColumn)) != 0 {
		t.Fatalf("duration issue fired despite valid column: %v", res.Issues)
	}
	if onset[0].Evidence != "time\tduration" {
		t.Fatalf("evidence=%q, want header line", onset[0].Evidence)
	}
}

func TestValidate_EventsHeadersBothMissing(t *testing.T) {
	file := File{Name: "task-x_events.tsv", RelativePath: "/task-x_events.tsv"}
	res := Validate(file, "time\tlength\n1\t2\n", nil)
	if len(issuesWithCode(res.Issues, CodeEventsOnsetColumn)) != 1 ||
		len(issuesWithCode(res.Issues, CodeEventsDurationColumn)) != 1 {
		t.Fatalf("issues=%v, want both header codes", res.Issues)
	}
}

func TestValidate_ChannelsHeaders(t *testing.T) {
	eeg := File{Name: "sub-01_channels.tsv", RelativePath: "/sub-01/eeg/sub-01_channels.tsv"}
	res := Validate(eeg, "name\ttype\tvolume\nCz\tEEG\t1\n", nil)
	got := issuesWithCode(res.Issues, CodeChannelsColumns)
	if len(got) != 1 {
		t.Fatalf("channels issues=%d, want 1", len(got))
	}

	ieeg := File{Name: "sub-01_channels.tsv", RelativePath: "/sub-01/ieeg/sub-01_channels.tsv"}
	res = Validate(ieeg, "name\ttype\tunits\nLA1\tECOG\tµV\n", nil)
	got = issuesWithCode(res.Issues, CodeIEEGChannelsColumns)
	if len(got) != 2 {
		t.Fatalf("ieeg issues=%d, want 2 (low_cutoff and high_cutoff missing)", len(got))
	}
}

func TestValidate_ElectrodesHeaders(t *testing.T) {
	eeg := File{Name: "sub-01_electrodes.tsv", RelativePath: "/sub-01/eeg/sub-01_electrodes.tsv"}
	res := Validate(eeg, "name\tx\ty\tz\nCz\t0\t0\t0\n", nil)
	if len(issuesWithCode(res.Issues, CodeEEGElectrodesColumns)) != 0 {
		t.Fatalf("issues=%v, want none", res.Issues)
	}

	ieeg := File{Name: "sub-01_electrodes.tsv", RelativePath: "/sub-01/ieeg/sub-01_electrodes.tsv"}
	res = Validate(ieeg, "name\tx\ty\tz\nLA1\t0\t0\t0\n", nil)
	if len(issuesWithCode(res.Issues, CodeIEEGElectrodesColumns)) != 1 {
		t.Fatalf("issues=%v, want size column issue", res.Issues)
	}
}

func TestValidate_ParticipantExtraction(t *testing.T) {
	file := File{Name: "participants.tsv", RelativePath: "/participants.tsv"}
	res := Validate(file, "participant_id\tage\nsub-01\t30\nsub-emptyroom\t0\n", nil)

	if !reflect.DeepEqual(res.ParticipantIDs, []string{"01"}) {
		t.Fatalf("participants=%v, want [01]", res.ParticipantIDs)
	}
	if len(issuesWithCode(res.Issues, CodeParticipantIDColumn)) != 0 {
		t.Fatalf("issues=%v", res.Issues)
	}
}

func TestValidate_ParticipantColumnMissing(t *testing.T) {
	file := File{Name: "participants.tsv", RelativePath: "/participants.tsv"}
	res := Validate(file, "subject\tage\ns01\t30\n", nil)

	if len(issuesWithCode(res.Issues, CodeParticipantIDColumn)) != 1 {
		t.Fatalf("issues=%v, want participant_id issue", res.Issues)
	}
	if res.ParticipantIDs != nil {
		t.Fatalf("participants=%v, want nil (not extractable)", res.ParticipantIDs)
	}
}

func TestValidate_PhenotypeRequiresParticipantID(t *testing.T) {
	file := File{Name: "measures.tsv", RelativePath: "/phenotype/measures.tsv"}
	res := Validate(file, "participant_id\tscore\nsub-01\t12\n", nil)
	if len(res.Issues) != 0 {
		t.Fatalf("issues=%v, want none", res.Issues)
	}
	if !reflect.DeepEqual(res.ParticipantIDs, []string{"01"}) {
		t.Fatalf("participants=%v", res.ParticipantIDs)
	}
}

func TestValidate_StimulusCrossReference(t *testing.T) {
	file := File{Name: "task-x_events.tsv", RelativePath: "/task-x_events.tsv"}
	contents := "onset\tduration\tstim_file\n1\t2\tcat.png\n3\t4\tcat.png\n5\t6\tdog.png\n7\t8\tn/a\n"
	dataset := []File{{Name: "dog.png", RelativePath: "/stimuli/dog.png"}}

	res := Validate(file, contents, dataset)

	missing := issuesWithCode(res.Issues, CodeStimulusFileMissing)
	if len(missing) != 1 {
		t.Fatalf("missing-stimulus issues=%d, want 1", len(missing))
	}
	if missing[0].Line != 1 || missing[0].Evidence != "/stimuli/cat.png" {
		t.Fatalf("issue=%+v", missing[0])
	}
	if !reflect.DeepEqual(res.StimulusPaths, []string{"/stimuli/cat.png", "/stimuli/dog.png"}) {
		t.Fatalf("stimuli=%v", res.StimulusPaths)
	}
}

func TestValidate_ScansFilenameColumn(t *testing.T) {
	file := File{Name: "sub-01_scans.tsv", RelativePath: "/sub-01/sub-01_scans.tsv"}

	res := Validate(file, "filename\tacq_time\nfunc/bold.nii.gz\t2017-05-03T06:45:45\n", nil)
	if len(res.Issues) != 0 {
		t.Fatalf("issues=%v, want none", res.Issues)
	}

	res = Validate(file, "path\tacq_time\nfunc/bold.nii.gz\tyesterday\n", nil)
	if len(issuesWithCode(res.Issues, CodeFilenameColumn)) != 1 {
		t.Fatalf("issues=%v, want filename issue", res.Issues)
	}
	if len(issuesWithCode(res.Issues, CodeAcqTimeFormat)) != 1 {
		t.Fatalf("issues=%v, want acq_time issue", res.Issues)
	}
}

func TestValidate_UnitsPassRunsForAnyRole(t *testing.T) {
	file := File{Name: "sub-01_whatever.tsv", RelativePath: "/sub-01/misc/sub-01_whatever.tsv"}
	res := Validate(file, "name\tunits\nthing\tvolts\n", nil)

	got := issuesWithCode(res.Issues, CodeInvalidUnit)
	if len(got) != 1 {
		t.Fatalf("unit issues=%d, want 1", len(got))
	}
	if got[0].Line != 1 {
		t.Fatalf("line=%d, want 1", got[0].Line)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	file := File{Name: "task-x_events.tsv", RelativePath: "/task-x_events.tsv"}
	contents := "time\tduration\tstim_file\n1\t\tcat.png\nNA\t2\tn/a\n"

	first := Validate(file, contents, nil)
	second := Validate(file, contents, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}
