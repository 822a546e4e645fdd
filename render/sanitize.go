package render

import (
	"regexp"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\-.]`)
	dotRuns     = regexp.MustCompile(`\.{2,}`)
	dashRuns    = regexp.MustCompile(`[_-]{2,}`)
)

// Sanitize turns a value into a safe file-name fragment. Anything that is
// not a string, or that sanitizes to nothing, becomes "unknown". The result
// never contains "/", "\" or "..".
func Sanitize(v any) string {
	s, ok := v.(string)
	if !ok {
		return "unknown"
	}

	s = unsafeChars.ReplaceAllString(s, "_")
	s = dotRuns.ReplaceAllString(s, ".")
	s = dashRuns.ReplaceAllStringFunc(s, func(run string) string { return run[:1] })
	s = strings.Trim(s, "_.-")

	if s == "" {
		return "unknown"
	}
	return s
}
