package tsv

import "fmt"

// SI base and derived unit symbols accepted in a units column, plus the
// dimensionless marker and the n/a sentinel.
var unitRoots = []string{
	"m", "g", "s", "A", "K", "mol", "cd",
	"rad", "sr", "Hz", "N", "Pa", "J", "W", "C", "V", "F",
	"ohm", "Ω", "S", "Wb", "T", "H", "°C", "lm", "lx", "Bq", "Gy", "Sv", "kat",
}

var unitPrefixes = []string{
	"da", "h", "k", "M", "G", "T", "P", "E", "Z", "Y",
	"d", "c", "m", "µ", "u", "n", "p", "f", "a", "z", "y",
}

var validUnits = buildUnitSet()

func buildUnitSet() map[string]struct{} {
	set := make(map[string]struct{}, len(unitRoots)*(len(unitPrefixes)+1)+2)
	set["n/a"] = struct{}{}
	set["1"] = struct{}{}
	for _, root := range unitRoots {
		set[root] = struct{}{}
		for _, prefix := range unitPrefixes {
			set[prefix+root] = struct{}{}
		}
	}
	return set
}

// CheckUnit reports whether the cell value is a recognized SI-derived unit
// token. When it is not, the second return value carries human-readable
// evidence for the issue.
func CheckUnit(unit string) (bool, string) {
	if _, ok := validUnits[unit]; ok {
		return true, ""
	}
	return false, fmt.Sprintf("%q is not a recognized SI unit symbol", unit)
}
