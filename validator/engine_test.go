package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/neurotab-labs/neurotab-go/internal/severity"
	"github.com/neurotab-labs/neurotab-go/internal/tsv"
)

func buildSnapshotArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		contents := files[name]
		if err := tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(contents)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func archiveOpener(archive []byte) objectOpener {
	return func(ctx context.Context, objectKey string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(archive)), nil
	}
}

func inventoryOf(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for name := range files {
		out = append(out, "/"+name)
	}
	sort.Strings(out)
	return out
}

func testInputs(files map[string]string) validationInputs {
	return validationInputs{
		Snapshot: snapshotInfo{
			SnapshotID: "snap-1",
			DatasetID:  "ds-1",
			Ordinal:    1,
			ObjectKey:  "ds-1/snap-1/snapshot.tar.gz",
		},
		Profile:   severity.DefaultProfile(),
		Inventory: inventoryOf(files),
	}
}

func TestValidatePassWithWarnings(t *testing.T) {
	files := map[string]string{
		"participants.tsv":                       "participant_id\tage\nsub-01\t25\nsub-02\t30\n",
		"sub-01/eeg/sub-01_task-rest_events.tsv": "onset\tduration\nNA\t1.0\n",
		"README":                                 "not tabular\n",
	}
	archive := buildSnapshotArchive(t, files)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := validate(context.Background(), now, "tester", "val-1", testInputs(files), archiveOpener(archive))

	if report.Status != "pass" {
		t.Fatalf("status=%q, want pass", report.Status)
	}
	if report.Summary.FilesChecked != 2 {
		t.Fatalf("files_checked=%d, want 2", report.Summary.FilesChecked)
	}
	if report.Summary.ErrorCount != 0 {
		t.Fatalf("error_count=%d, want 0", report.Summary.ErrorCount)
	}
	if report.Summary.WarningCount != 1 {
		t.Fatalf("warning_count=%d, want 1", report.Summary.WarningCount)
	}
	if len(report.Summary.FailingFiles) != 0 {
		t.Fatalf("failing_files=%v, want none", report.Summary.FailingFiles)
	}
	if !reflect.DeepEqual(report.Participants, []string{"01", "02"}) {
		t.Fatalf("participants=%v, want [01 02]", report.Participants)
	}

	var eventsResult *fileResult
	for i := range report.Files {
		if report.Files[i].RelativePath == "/sub-01/eeg/sub-01_task-rest_events.tsv" {
			eventsResult = &report.Files[i]
		}
	}
	if eventsResult == nil {
		t.Fatal("events file missing from report")
	}
	if len(eventsResult.Issues) != 1 {
		t.Fatalf("issues=%d, want 1", len(eventsResult.Issues))
	}
	issue := eventsResult.Issues[0]
	if issue.Code != tsv.CodeBadMissingValue {
		t.Fatalf("code=%d, want %d", issue.Code, tsv.CodeBadMissingValue)
	}
	if issue.Severity != severity.Warning {
		t.Fatalf("severity=%q, want warning", issue.Severity)
	}
	if issue.Line != 1 {
		t.Fatalf("line=%d, want 1", issue.Line)
	}
}

func TestValidateFailOnHeaderErrors(t *testing.T) {
	files := map[string]string{
		"participants.tsv":                       "participant_id\tage\nsub-01\t25\n",
		"sub-02/eeg/sub-02_task-rest_events.tsv": "duration\tonset\n1.0\t0.5\n",
	}
	archive := buildSnapshotArchive(t, files)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := validate(context.Background(), now, "tester", "val-2", testInputs(files), archiveOpener(archive))

	if report.Status != "fail" {
		t.Fatalf("status=%q, want fail", report.Status)
	}
	if report.Summary.ErrorCount != 2 {
		t.Fatalf("error_count=%d, want 2", report.Summary.ErrorCount)
	}
	want := []string{"/sub-02/eeg/sub-02_task-rest_events.tsv"}
	if !reflect.DeepEqual(report.Summary.FailingFiles, want) {
		t.Fatalf("failing_files=%v, want %v", report.Summary.FailingFiles, want)
	}
}

func TestValidateFailOnMissingStimulus(t *testing.T) {
	files := map[string]string{
		"sub-01/eeg/sub-01_task-rest_events.tsv": "onset\tduration\tstim_file\n0.5\t1.0\ttone.wav\n",
	}
	archive := buildSnapshotArchive(t, files)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := validate(context.Background(), now, "tester", "val-3", testInputs(files), archiveOpener(archive))

	if report.Status != "fail" {
		t.Fatalf("status=%q, want fail", report.Status)
	}
	if len(report.Files) != 1 || len(report.Files[0].Issues) != 1 {
		t.Fatalf("unexpected results: %+v", report.Files)
	}
	issue := report.Files[0].Issues[0]
	if issue.Code != tsv.CodeStimulusFileMissing {
		t.Fatalf("code=%d, want %d", issue.Code, tsv.CodeStimulusFileMissing)
	}
	if issue.Severity != severity.Error {
		t.Fatalf("severity=%q, want error", issue.Severity)
	}
	if issue.Character == nil {
		t.Fatal("character offset missing")
	}
	if !reflect.DeepEqual(report.StimulusPaths, []string{"/stimuli/tone.wav"}) {
		t.Fatalf("stimulus_paths=%v", report.StimulusPaths)
	}
}

func TestValidateProfileOverrideEscalates(t *testing.T) {
	files := map[string]string{
		"sub-01/eeg/sub-01_task-rest_events.tsv": "onset\tduration\nNA\t1.0\n",
	}
	archive := buildSnapshotArchive(t, files)

	in := testInputs(files)
	in.ProfileID = "prof-1"
	in.ProfileName = "strict"
	in.Profile = severity.Profile{
		Schema:  severity.ProfileSchemaV1,
		Default: severity.Error,
		Overrides: []severity.Override{
			{Code: tsv.CodeBadMissingValue, Severity: severity.Error},
		},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := validate(context.Background(), now, "tester", "val-4", in, archiveOpener(archive))

	if report.Status != "fail" {
		t.Fatalf("status=%q, want fail", report.Status)
	}
	if report.Profile.ProfileID != "prof-1" || report.Profile.Name != "strict" {
		t.Fatalf("profile info=%+v", report.Profile)
	}
}

func TestValidateObjectUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opener := func(ctx context.Context, objectKey string) (io.ReadCloser, error) {
		return nil, errors.New("connection refused")
	}
	report := validate(context.Background(), now, "tester", "val-5", testInputs(nil), opener)

	if report.Status != "error" {
		t.Fatalf("status=%q, want error", report.Status)
	}
	if report.Error != "snapshot object unavailable" {
		t.Fatalf("error=%q", report.Error)
	}
}

func TestValidateRejectsNotGzip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := validate(context.Background(), now, "tester", "val-6", testInputs(nil), archiveOpener([]byte("plain text")))

	if report.Status != "error" {
		t.Fatalf("status=%q, want error", report.Status)
	}
	if report.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestNormalizeMemberPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"participants.tsv", "/participants.tsv"},
		{"./sub-01/eeg/file.tsv", "/sub-01/eeg/file.tsv"},
		{"../outside.tsv", ""},
		{"/abs.tsv", ""},
		{".", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := normalizeMemberPath(tc.in); got != tc.want {
			t.Errorf("normalizeMemberPath(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyIssueCharacter(t *testing.T) {
	profile := severity.DefaultProfile()

	withOffset := classifyIssue(tsv.Issue{Code: tsv.CodeStimulusFileMissing, Character: 4}, profile)
	if withOffset.Character == nil || *withOffset.Character != 4 {
		t.Fatalf("character=%v, want 4", withOffset.Character)
	}

	withoutOffset := classifyIssue(tsv.Issue{Code: tsv.CodeBadMissingValue, Character: -1}, profile)
	if withoutOffset.Character != nil {
		t.Fatalf("character=%v, want nil", withoutOffset.Character)
	}
}
