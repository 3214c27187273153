package db

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName lowercases a display name, strips diacritics and collapses
// whitespace so directory search matches "Renée" for the query "renee".
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}

	normalized = strings.ToLower(normalized)
	return strings.Join(strings.Fields(normalized), " ")
}
