package severity

import (
	"strings"
	"testing"

	"github.com/neurotab-labs/neurotab-go/internal/tsv"
)

func TestParseProfile(t *testing.T) {
	input := `
schema: neurotab.severity_profile.v1
default: error
overrides:
  - code: 24
    severity: warning
  - code: 84
    severity: warning
`
	profile, err := ParseProfile([]byte(input))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if profile.Default != Error {
		t.Fatalf("default = %q, want error", profile.Default)
	}
	if len(profile.Overrides) != 2 {
		t.Fatalf("overrides = %d, want 2", len(profile.Overrides))
	}
	if profile.Overrides[0].Code != 24 || profile.Overrides[0].Severity != Warning {
		t.Fatalf("unexpected first override: %+v", profile.Overrides[0])
	}
}

func TestParseProfileRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "wrong schema",
			input: "schema: neurotab.severity_profile.v2\n",
			want:  "profile.schema",
		},
		{
			name:  "bad default",
			input: "schema: neurotab.severity_profile.v1\ndefault: fatal\n",
			want:  "profile.default",
		},
		{
			name:  "bad severity",
			input: "schema: neurotab.severity_profile.v1\noverrides:\n  - code: 24\n    severity: info\n",
			want:  "overrides[0].severity",
		},
		{
			name:  "non positive code",
			input: "schema: neurotab.severity_profile.v1\noverrides:\n  - code: 0\n    severity: error\n",
			want:  "overrides[0].code",
		},
		{
			name:  "duplicate code",
			input: "schema: neurotab.severity_profile.v1\noverrides:\n  - code: 24\n    severity: error\n  - code: 24\n    severity: warning\n",
			want:  "duplicate 24",
		},
		{
			name:  "not yaml",
			input: "{schema: [",
			want:  "decode profile",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tc.input)); err == nil {
				t.Fatalf("expected error")
			} else if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want substring %q", err.Error(), tc.want)
			}
		})
	}
}

func TestClassifyDefaults(t *testing.T) {
	profile := DefaultProfile()

	warnings := []int{tsv.CodeBadMissingValue, tsv.CodeImplausibleAge, tsv.CodeInvalidUnit}
	for _, code := range warnings {
		if got := profile.Classify(code); got != Warning {
			t.Fatalf("Classify(%d) = %q, want warning", code, got)
		}
	}

	errors := []int{tsv.CodeColumnCountMismatch, tsv.CodeEmptyCell, tsv.CodeInconsistentLineEndings, tsv.CodeEventsOnsetColumn}
	for _, code := range errors {
		if got := profile.Classify(code); got != Error {
			t.Fatalf("Classify(%d) = %q, want error", code, got)
		}
	}
}

func TestClassifyOverridesAndDefault(t *testing.T) {
	profile := Profile{
		Schema:  ProfileSchemaV1,
		Default: Warning,
		Overrides: []Override{
			{Code: tsv.CodeEmptyCell, Severity: Error},
		},
	}
	if err := profile.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := profile.Classify(tsv.CodeEmptyCell); got != Error {
		t.Fatalf("override Classify = %q, want error", got)
	}
	if got := profile.Classify(tsv.CodeColumnCountMismatch); got != Warning {
		t.Fatalf("default Classify = %q, want warning", got)
	}
}
