package tsv

import "testing"

func TestCheckAcqTime(t *testing.T) {
	file := File{Name: "sub-01_scans.tsv", RelativePath: "/sub-01/sub-01_scans.tsv"}
	grid := Grid{
		Headers: []string{"filename", "acq_time"},
		Rows: [][]string{
			{"func/sub-01_bold.nii.gz", "2017-05-03T06:45:45"},
			{"anat/sub-01_T1w.nii.gz", "2017-05-03T06:45:45.123456"},
			{"anat/sub-01_T2w.nii.gz", "n/a"},
			{"func/sub-01_rest.nii.gz", "05/03/2017"},
		},
	}
	issues := checkAcqTime(file, grid)
	if len(issues) != 1 {
		t.Fatalf("issues=%d, want 1", len(issues))
	}
	if issues[0].Code != CodeAcqTimeFormat || issues[0].Line != 4 || issues[0].Evidence != "05/03/2017" {
		t.Fatalf("issue=%+v", issues[0])
	}
}

func TestCheckAge(t *testing.T) {
	file := File{Name: "participants.tsv", RelativePath: "/participants.tsv"}
	grid := Grid{
		Headers: []string{"participant_id", "age"},
		Rows: [][]string{
			{"sub-01", "34"},
			{"sub-02", "89"},
			{"sub-03", "n/a"},
			{"sub-04", "90.5"},
		},
	}
	issues := checkAge(file, grid)
	if len(issues) != 2 {
		t.Fatalf("issues=%d, want 2", len(issues))
	}
	if issues[0].Code != CodeImplausibleAge || issues[0].Line != 2 {
		t.Fatalf("first issue=%+v", issues[0])
	}
	if issues[1].Line != 4 {
		t.Fatalf("second issue=%+v", issues[1])
	}
}

func TestCheckStatusColumn(t *testing.T) {
	file := File{Name: "sub-01_channels.tsv", RelativePath: "/sub-01/eeg/sub-01_channels.tsv"}
	grid := Grid{
		Headers: []string{"name", "type", "units", "status"},
		Rows: [][]string{
			{"Cz", "EEG", "µV", "good"},
			{"Pz", "EEG", "µV", "bad"},
			{"Fz", "EEG", "µV", "n/a"},
			{"Oz", "EEG", "µV", "ok"},
		},
	}
	issues := checkStatusColumn(file, grid)
	if len(issues) != 1 {
		t.Fatalf("issues=%d, want 1", len(issues))
	}
	if issues[0].Code != CodeInvalidStatusValue || issues[0].Line != 4 || issues[0].Evidence != "ok" {
		t.Fatalf("issue=%+v", issues[0])
	}
}

func TestCheckStatusColumn_NoColumn(t *testing.T) {
	file := File{Name: "sub-01_channels.tsv", RelativePath: "/sub-01/meg/sub-01_channels.tsv"}
	grid := Grid{Headers: []string{"name", "type", "units"}, Rows: [][]string{{"MEG001", "MEGGRAD", "T"}}}
	if issues := checkStatusColumn(file, grid); len(issues) != 0 {
		t.Fatalf("issues=%v, want none", issues)
	}
}
