package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neurotab-labs/neurotab-go/internal/severity"
	"github.com/neurotab-labs/neurotab-go/internal/tsv"
)

// issueLine is one NDJSON record on stdout.
type issueLine struct {
	File      string `json:"file"`
	Code      int    `json:"code"`
	Severity  string `json:"severity"`
	Line      int    `json:"line,omitempty"`
	Character *int   `json:"character,omitempty"`
	Evidence  string `json:"evidence,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func main() {
	var (
		datasetDir  = flag.String("dataset", "", "Path to the dataset directory (required)")
		profilePath = flag.String("profile", "", "Severity profile YAML (optional; built-in defaults otherwise)")
	)
	flag.Parse()

	dir := strings.TrimSpace(*datasetDir)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "usage: neurotab -dataset <dir> [-profile <file.yaml>]")
		os.Exit(2)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		die("open dataset", fmt.Errorf("%s is not a directory", dir))
	}

	profile := severity.DefaultProfile()
	if strings.TrimSpace(*profilePath) != "" {
		raw, err := os.ReadFile(*profilePath)
		if err != nil {
			die("read profile", err)
		}
		profile, err = severity.ParseProfile(raw)
		if err != nil {
			die("parse profile", err)
		}
	}

	files, tabular, err := scanDataset(dir)
	if err != nil {
		die("scan dataset", err)
	}

	enc := json.NewEncoder(os.Stdout)
	var errorCount, warningCount int
	for _, rel := range tabular {
		contents, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(rel, "/"))))
		if err != nil {
			die("read "+rel, err)
		}

		file := tsv.File{Name: path.Base(rel), RelativePath: rel}
		result := tsv.Validate(file, string(contents), files)
		for _, issue := range result.Issues {
			line := issueLine{
				File:     rel,
				Code:     issue.Code,
				Severity: profile.Classify(issue.Code),
				Line:     issue.Line,
				Evidence: issue.Evidence,
				Reason:   issue.Reason,
			}
			if issue.Character >= 0 {
				char := issue.Character
				line.Character = &char
			}
			if line.Severity == severity.Error {
				errorCount++
			} else {
				warningCount++
			}
			if err := enc.Encode(line); err != nil {
				die("write issue", err)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "checked %d tabular files: %d errors, %d warnings\n", len(tabular), errorCount, warningCount)
	if errorCount > 0 {
		os.Exit(1)
	}
}

// scanDataset walks the dataset directory once, returning the full file list
// ("/"-rooted, forward slashes) plus the sorted subset of .tsv paths.
func scanDataset(dir string) ([]tsv.File, []string, error) {
	var files []tsv.File
	var tabular []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		slash := "/" + filepath.ToSlash(rel)
		files = append(files, tsv.File{Name: d.Name(), RelativePath: slash})
		if strings.HasSuffix(slash, ".tsv") {
			tabular = append(tabular, slash)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Strings(tabular)
	return files, tabular, nil
}

func die(step string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", step, err)
	os.Exit(1)
}
