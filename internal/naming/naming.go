// Package naming canonicalises tenant and room names so that the spelling
// typed on a phone keyboard does not matter.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical title-cases the first letter of every space-separated token and
// lower-cases the rest. Runs of spaces are kept as they are.
// The first letter maps rune to rune, so "ßen" stays "ßen" and
// Canonical(Canonical(x)) == Canonical(x).
func Canonical(name string) string {
	lower := cases.Lower(language.Und)

	parts := strings.Split(name, " ")
	for i, part := range parts {
		if part == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(part)
		parts[i] = string(unicode.ToTitle(first)) + lower.String(part[size:])
	}
	return strings.Join(parts, " ")
}

// IsCanonical reports whether name is already in canonical form.
func IsCanonical(name string) bool {
	return Canonical(name) == name
}
