// Package severity maps issue codes to severity levels. The validation core
// only detects and reports; ranking a finding as error or warning is a
// deployment decision expressed as a profile, either the built-in default or
// a YAML document supplied by the operator.
package severity

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neurotab-labs/neurotab-go/internal/tsv"
)

const ProfileSchemaV1 = "neurotab.severity_profile.v1"

const (
	Error   = "error"
	Warning = "warning"
)

type Profile struct {
	Schema    string     `json:"schema" yaml:"schema"`
	Default   string     `json:"default,omitempty" yaml:"default,omitempty"`
	Overrides []Override `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

type Override struct {
	Code     int    `json:"code" yaml:"code"`
	Severity string `json:"severity" yaml:"severity"`
}

// Findings whose codes flag data quality rather than structural validity
// default to warnings; everything else is an error.
var defaultWarnings = map[int]struct{}{
	tsv.CodeBadMissingValue: {},
	tsv.CodeImplausibleAge:  {},
	tsv.CodeInvalidUnit:     {},
}

func DefaultProfile() Profile {
	return Profile{Schema: ProfileSchemaV1}
}

// ParseProfile decodes and validates a YAML severity profile.
func ParseProfile(input []byte) (Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(input, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Schema) != ProfileSchemaV1 {
		return fmt.Errorf("profile.schema must be %q", ProfileSchemaV1)
	}
	if p.Default != "" && !isSeverity(p.Default) {
		return fmt.Errorf("profile.default unsupported: %q", p.Default)
	}

	seen := make(map[int]struct{}, len(p.Overrides))
	for i, override := range p.Overrides {
		if override.Code <= 0 {
			return fmt.Errorf("profile.overrides[%d].code must be positive", i)
		}
		if _, ok := seen[override.Code]; ok {
			return fmt.Errorf("profile.overrides[%d].code must be unique (duplicate %d)", i, override.Code)
		}
		seen[override.Code] = struct{}{}
		if !isSeverity(override.Severity) {
			return fmt.Errorf("profile.overrides[%d].severity unsupported: %q", i, override.Severity)
		}
	}
	return nil
}

// Classify returns the severity for an issue code: an override when present,
// the profile default when set, otherwise the built-in table.
func (p Profile) Classify(code int) string {
	for _, override := range p.Overrides {
		if override.Code == code {
			return override.Severity
		}
	}
	if p.Default != "" {
		return p.Default
	}
	if _, ok := defaultWarnings[code]; ok {
		return Warning
	}
	return Error
}

func isSeverity(value string) bool {
	return value == Error || value == Warning
}
