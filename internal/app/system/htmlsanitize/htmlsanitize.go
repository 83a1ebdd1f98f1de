// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag; the element content of script/style is dropped.
var strict = bluemonday.StrictPolicy()

// PlainText strips all markup from s and returns the remaining text with
// entities decoded and runs of whitespace collapsed to single spaces.
// Use it for user-supplied values that end up in stored names and tags.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(strict.Sanitize(s))), " ")
}

// PlainTexts applies PlainText to each value and drops the ones that end up
// empty. Duplicates (case-insensitive) keep their first spelling.
func PlainTexts(vals []string) []string {
	out := make([]string, 0, len(vals))
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		p := PlainText(v)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// IsPlainText reports whether s contains no HTML tags.
func IsPlainText(s string) bool {
	i := strings.IndexByte(s, '<')
	return i < 0 || !strings.Contains(s[i:], ">")
}
