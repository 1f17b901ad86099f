package tsv

import "testing"

func TestCheckUnit(t *testing.T) {
	valid := []string{"V", "mV", "µV", "uV", "s", "ms", "Hz", "kHz", "°C", "n/a", "1"}
	for _, unit := range valid {
		if ok, evidence := CheckUnit(unit); !ok {
			t.Fatalf("CheckUnit(%q) invalid: %s", unit, evidence)
		}
	}

	invalid := []string{"volts", "Volt", "mVolts", "", "N/A", "hz"}
	for _, unit := range invalid {
		ok, evidence := CheckUnit(unit)
		if ok {
			t.Fatalf("CheckUnit(%q) unexpectedly valid", unit)
		}
		if evidence == "" {
			t.Fatalf("CheckUnit(%q) returned no evidence", unit)
		}
	}
}
