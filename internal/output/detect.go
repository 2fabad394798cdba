package output

import (
	"os"

	"golang.org/x/term"
)

// isTerminal is swapped in tests.
var isTerminal = func(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// DetectFormat returns flagFormat when set, else json on a terminal and
// jsonl otherwise.
func DetectFormat(stdout *os.File, flagFormat Format) Format {
	if flagFormat != "" {
		return flagFormat
	}
	if isTerminal(stdout) {
		return FormatJSON
	}
	return FormatJSONL
}
