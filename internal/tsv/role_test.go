package tsv

import "testing"

func TestClassifyRole(t *testing.T) {
	cases := []struct {
		name string
		rel  string
		want Role
	}{
		{"sub-01_task-x_events.tsv", "/sub-01/func/sub-01_task-x_events.tsv", RoleEvents},
		{"sub-01_channels.tsv", "/sub-01/meg/sub-01_channels.tsv", RoleChannelsMEG},
		{"sub-01_channels.tsv", "/sub-01/eeg/sub-01_channels.tsv", RoleChannelsEEG},
		{"sub-01_channels.tsv", "/sub-01/ieeg/sub-01_channels.tsv", RoleChannelsIEEG},
		{"sub-01_channels.tsv", "/sub-01/func/sub-01_channels.tsv", RoleOther},
		{"sub-01_electrodes.tsv", "/sub-01/eeg/sub-01_electrodes.tsv", RoleElectrodesEEG},
		{"sub-01_electrodes.tsv", "/sub-01/ieeg/sub-01_electrodes.tsv", RoleElectrodesIEEG},
		{"participants.tsv", "/participants.tsv", RoleParticipants},
		{"measures.tsv", "/phenotype/measures.tsv", RoleParticipants},
		{"sub-01_scans.tsv", "/sub-01/sub-01_scans.tsv", RoleScans},
		{"README", "/README", RoleOther},
		{"sub-01_bold.json", "/sub-01/func/sub-01_bold.json", RoleOther},
	}
	for _, tc := range cases {
		got := classifyRole(File{Name: tc.name, RelativePath: tc.rel})
		if got != tc.want {
			t.Fatalf("classifyRole(%s %s)=%s, want %s", tc.name, tc.rel, got, tc.want)
		}
	}
}
