package match

import (
	"strings"
	"unicode"
)

// Source spellings drift across dataset releases: casing, hyphenation,
// slashes ("Kolokuma/Opokuma"), dots and parenthetical qualifiers all vary.
// Two keys cover the two uses: StrictKey for equality/containment tests,
// SpacedKey where a human-readable form matters.

// StrictKey lower-cases s and strips whitespace, punctuation, and any
// parenthetical suffix, leaving only letters and digits.
func StrictKey(s string) string {
	s = stripParenthetical(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// SpacedKey lower-cases s, collapses punctuation runs to single spaces, and
// strips any parenthetical suffix.
func SpacedKey(s string) string {
	s = stripParenthetical(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func stripParenthetical(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i]
	}
	return s
}
