package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases value and strips combining marks so "Tênis" and "tenis" compare equal.
func Fold(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// ContainsFold reports whether needle occurs in any haystack after folding both sides.
func ContainsFold(needle string, haystacks ...string) bool {
	needle = Fold(needle)
	if needle == "" {
		return true
	}
	for _, h := range haystacks {
		if strings.Contains(Fold(h), needle) {
			return true
		}
	}
	return false
}
