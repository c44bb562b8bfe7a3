// Package util provides small string helpers shared by the host-facing code.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg unwraps a quoted host argument.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

var fileNameReplacer = strings.NewReplacer(
	" ", "_", ":", "_", "/", "_", `\`, "_",
	"*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// SafeFileName makes s usable as a file name on every OS.
func SafeFileName(s string) string {
	s = fileNameReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "unnamed"
	}
	return s
}
