package gazetteer

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// nonASCII drops every rune above U+007F. Invalid UTF-8 decodes to U+FFFD
// and is dropped as well.
var nonASCII = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

// ToASCII removes non-ASCII characters from s. It does not transliterate:
// "Zürich" becomes "Zrich" and "서울" becomes "".
func ToASCII(s string) string {
	out, _, err := transform.String(nonASCII, s)
	if err != nil {
		return ""
	}
	return out
}
