package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/neurotab-labs/neurotab-go/internal/severity"
	"github.com/neurotab-labs/neurotab-go/internal/tsv"
)

const validationReportSchemaV1 = "neurotab.validation_report.v1"

// Tabular files larger than this are reported as errors rather than loaded.
const maxTabularFileBytes = 32 << 20

type validationReport struct {
	Schema        string        `json:"schema"`
	ValidationID  string        `json:"validation_id"`
	Snapshot      snapshotInfo  `json:"snapshot"`
	Profile       profileInfo   `json:"profile"`
	Status        string        `json:"status"`
	ValidatedAt   time.Time     `json:"validated_at"`
	ValidatedBy   string        `json:"validated_by"`
	Summary       reportSummary `json:"summary"`
	Files         []fileResult  `json:"files"`
	Participants  []string      `json:"participants,omitempty"`
	StimulusPaths []string      `json:"stimulus_paths,omitempty"`
	Error         string        `json:"error,omitempty"`
	ProfileYAML   string        `json:"profile_yaml,omitempty"`
}

type snapshotInfo struct {
	SnapshotID    string `json:"snapshot_id"`
	DatasetID     string `json:"dataset_id"`
	Ordinal       int64  `json:"ordinal"`
	ObjectKey     string `json:"object_key"`
	ContentSHA256 string `json:"content_sha256"`
	SizeBytes     int64  `json:"size_bytes"`
	FileCount     int    `json:"file_count"`
	TabularCount  int    `json:"tabular_count"`
}

type profileInfo struct {
	ProfileID string `json:"profile_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

type reportSummary struct {
	FilesChecked int      `json:"files_checked"`
	IssuesTotal  int      `json:"issues_total"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	FailingFiles []string `json:"failing_files,omitempty"`
}

type fileResult struct {
	Name         string        `json:"name"`
	RelativePath string        `json:"relative_path"`
	Issues       []reportIssue `json:"issues"`
}

type reportIssue struct {
	Code      int    `json:"code"`
	Severity  string `json:"severity"`
	Line      int    `json:"line,omitempty"`
	Character *int   `json:"character,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type validationInputs struct {
	Snapshot    snapshotInfo
	ProfileID   string
	ProfileName string
	Profile     severity.Profile
	ProfileYAML string
	Inventory   []string
}

type objectOpener func(ctx context.Context, objectKey string) (io.ReadCloser, error)

// validate streams the snapshot archive, runs the tabular checks over every
// .tsv member against the full file inventory, and classifies each finding
// with the severity profile.
func validate(ctx context.Context, now time.Time, validatedBy string, validationID string, in validationInputs, openObject objectOpener) validationReport {
	report := validationReport{
		Schema:       validationReportSchemaV1,
		ValidationID: validationID,
		Snapshot:     in.Snapshot,
		Profile:      profileInfo{ProfileID: in.ProfileID, Name: in.ProfileName},
		ValidatedAt:  now.UTC(),
		ValidatedBy:  validatedBy,
		ProfileYAML:  in.ProfileYAML,
	}

	obj, err := openObject(ctx, in.Snapshot.ObjectKey)
	if err != nil {
		report.Status = "error"
		report.Error = "snapshot object unavailable"
		report.Files = []fileResult{}
		return report
	}
	defer obj.Close()

	datasetFiles := make([]tsv.File, 0, len(in.Inventory))
	for _, rel := range in.Inventory {
		datasetFiles = append(datasetFiles, tsv.File{
			Name:         path.Base(rel),
			RelativePath: rel,
		})
	}

	results, participants, stimuli, err := checkArchive(obj, datasetFiles, in.Profile)
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
		report.Files = []fileResult{}
		return report
	}

	var (
		issuesTotal  int
		errorCount   int
		warningCount int
		failingFiles []string
	)
	for _, fr := range results {
		issuesTotal += len(fr.Issues)
		failing := false
		for _, issue := range fr.Issues {
			if issue.Severity == severity.Error {
				errorCount++
				failing = true
				continue
			}
			warningCount++
		}
		if failing {
			failingFiles = append(failingFiles, fr.RelativePath)
		}
	}

	report.Files = results
	report.Participants = participants
	report.StimulusPaths = stimuli
	report.Summary = reportSummary{
		FilesChecked: len(results),
		IssuesTotal:  issuesTotal,
		ErrorCount:   errorCount,
		WarningCount: warningCount,
		FailingFiles: failingFiles,
	}
	if errorCount > 0 {
		report.Status = "fail"
	} else {
		report.Status = "pass"
	}
	return report
}

func checkArchive(r io.Reader, datasetFiles []tsv.File, profile severity.Profile) ([]fileResult, []string, []string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	results := make([]fileResult, 0)
	participantSet := make(map[string]struct{})
	stimulusSet := make(map[string]struct{})

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel := normalizeMemberPath(hdr.Name)
		if rel == "" || !strings.HasSuffix(rel, ".tsv") {
			continue
		}
		if hdr.Size > maxTabularFileBytes {
			return nil, nil, nil, fmt.Errorf("tabular file too large: %s", rel)
		}

		contents, err := io.ReadAll(io.LimitReader(tr, maxTabularFileBytes))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read %s: %w", rel, err)
		}

		file := tsv.File{Name: path.Base(rel), RelativePath: rel}
		result := tsv.Validate(file, string(contents), datasetFiles)
		for _, id := range result.ParticipantIDs {
			participantSet[id] = struct{}{}
		}
		for _, p := range result.StimulusPaths {
			stimulusSet[p] = struct{}{}
		}

		issues := make([]reportIssue, 0, len(result.Issues))
		for _, issue := range result.Issues {
			issues = append(issues, classifyIssue(issue, profile))
		}
		results = append(results, fileResult{
			Name:         file.Name,
			RelativePath: file.RelativePath,
			Issues:       issues,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RelativePath < results[j].RelativePath
	})

	participants := make([]string, 0, len(participantSet))
	for id := range participantSet {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	stimuli := make([]string, 0, len(stimulusSet))
	for p := range stimulusSet {
		stimuli = append(stimuli, p)
	}
	sort.Strings(stimuli)

	return results, participants, stimuli, nil
}

func classifyIssue(issue tsv.Issue, profile severity.Profile) reportIssue {
	out := reportIssue{
		Code:     issue.Code,
		Severity: profile.Classify(issue.Code),
		Line:     issue.Line,
		Evidence: issue.Evidence,
		Reason:   issue.Reason,
	}
	if issue.Character >= 0 {
		char := issue.Character
		out.Character = &char
	}
	return out
}

func normalizeMemberPath(name string) string {
	cleaned := path.Clean(strings.TrimPrefix(strings.TrimSpace(name), "./"))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return ""
	}
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") {
		return ""
	}
	return "/" + cleaned
}
