package builtin

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
// It lets hot paths skip strings.TrimSpace for the common clean case.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isASCIISpace(s[0]) || isASCIISpace(s[len(s)-1])
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Casers carry state, so each call gets its own.

// Lower returns s lower-cased with Unicode rules.
func Lower(s string) string { return cases.Lower(language.Und).String(s) }

// Upper returns s upper-cased with Unicode rules.
func Upper(s string) string { return cases.Upper(language.Und).String(s) }

// Fold strips combining marks, so "Pétale" becomes "Petale".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns a header into a camelCase identifier: accents are folded,
// every non alphanumeric rune splits words, the first word is lower-cased
// and the rest are title-cased.
//
//	"sepal length"     -> "sepalLength"
//	"Petal-Width (cm)" -> "petalWidthCm"
func Slugify(s string) string {
	words := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(Lower(words[0]))
	title := cases.Title(language.Und, cases.NoLower)
	for _, w := range words[1:] {
		b.WriteString(title.String(w))
	}
	return b.String()
}
