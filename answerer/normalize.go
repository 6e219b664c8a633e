package answerer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// dottedSmallI is a lowercase i followed by U+0307 COMBINING DOT ABOVE.
const dottedSmallI = "i\u0307"

// NormalizeText canonicalizes Turkish input for classification and lookup:
// NFKC, Turkish lower-casing, then only [a-z0-9çğıöşü] and single spaces remain.
func NormalizeText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	normed := norm.NFKC.String(strings.TrimSpace(text))
	// A Caser keeps state between calls, so each call gets its own.
	normed = cases.Lower(language.Turkish).String(normed)
	normed = strings.ReplaceAll(normed, dottedSmallI, "i")
	normed = strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, normed)
	return strings.Join(strings.Fields(normed), " ")
}

// Tokenize normalizes text and splits it into maximal runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(NormalizeText(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case 'ç', 'ğ', 'ı', 'ö', 'ş', 'ü':
		return true
	}
	return false
}
