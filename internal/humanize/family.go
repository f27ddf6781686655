// Package humanize is the unit formatting table the spec treats as an
// external collaborator: a half-dozen-line lookup from a byte count to
// a display string, parameterized by the unit family CLI flag.
package humanize

import "fmt"

// Family selects binary vs. decimal prefixes and bytes vs. bits, mirroring
// the four-way UnitFamily enum in the original implementation
// (original_source/src/cli.rs).
type Family uint8

const (
	BinBytes Family = iota
	BinBits
	SiBytes
	SiBits
)

// Parse maps a CLI flag value to a Family, returning false for anything
// else so the caller can report a usage error (exit code 2).
func Parse(s string) (Family, bool) {
	switch s {
	case "bin-bytes":
		return BinBytes, true
	case "bin-bits":
		return BinBits, true
	case "si-bytes":
		return SiBytes, true
	case "si-bits":
		return SiBits, true
	default:
		return 0, false
	}
}

var binPrefixes = [...]string{"", "Ki", "Mi", "Gi", "Ti", "Pi"}
var siPrefixes = [...]string{"", "k", "M", "G", "T", "P"}

// Rate formats a byte count observed over one second as a rate string,
// e.g. "1.2 Mbit/s" or "840 KiB/s", according to f.
func (f Family) Rate(bytesPerSecond uint64) string {
	return f.format(bytesPerSecond) + "/s"
}

// Total formats a cumulative byte count with no implied time unit.
func (f Family) Total(bytes uint64) string {
	return f.format(bytes)
}

func (f Family) format(n uint64) string {
	unit := "B"
	value := float64(n)
	prefixes := binPrefixes
	base := 1024.0

	switch f {
	case BinBits:
		unit = "bit"
		value *= 8
	case SiBytes:
		prefixes = siPrefixes
		base = 1000.0
	case SiBits:
		unit = "bit"
		value *= 8
		prefixes = siPrefixes
		base = 1000.0
	}

	idx := 0
	for value >= base && idx < len(prefixes)-1 {
		value /= base
		idx++
	}

	if idx == 0 {
		return fmt.Sprintf("%.0f %s%s", value, prefixes[idx], unit)
	}
	return fmt.Sprintf("%.1f %s%s", value, prefixes[idx], unit)
}
