// Package locator finds Granola note links in message text.
package locator

import (
	"regexp"
	"strings"
)

const Host = "notes.granola.ai"

// Slack wraps links as <url> or <url|label>, so '|' ends a match as well.
var granolaURL = regexp.MustCompile(`https?://` + regexp.QuoteMeta(Host) + `/[^\s<>"'|]+`)

// Locate returns the first Granola URL found in text without trailing sentence punctuation.
func Locate(text string) (string, bool) {
	match := strings.TrimRight(granolaURL.FindString(text), ".,;:!?)")
	return match, match != ""
}

// Contains reports whether text carries a Granola link at all.
func Contains(text string) bool {
	_, ok := Locate(text)
	return ok
}

// Normalize drops the query string and fragment. Scheme, host and path are kept as is.
func Normalize(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		return url[:i]
	}
	return url
}
