package common

import (
	"regexp"
	"strings"
)

// ansiRegex matches ANSI escape sequences (colors, cursor movement, etc.)
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape codes from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// CleanResponse strips terminal escapes and surrounding whitespace from a
// device response. Interactive SSH shells decorate their output, raw
// sockets do not.
func CleanResponse(s string) string {
	return strings.TrimSpace(StripANSI(s))
}
