// Package filter derives the list of wines to display from the full
// collection and a free-text search string.
package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

// Apply returns the entries whose Name contains text. Matching ignores case
// and accents, so "CHATEAU" and "ateau" both match "Château Margaux".
// An empty text returns entries itself, unchanged. A non-empty text that
// folds to nothing, such as a lone combining accent, matches no entry.
func Apply(entries []domain.Wine, text string) []domain.Wine {
	if text == "" {
		return entries
	}

	needle := fold(text)
	out := []domain.Wine{}
	if needle == "" {
		return out
	}
	for _, w := range entries {
		if strings.Contains(fold(w.Name), needle) {
			out = append(out, w)
		}
	}
	return out
}

// Matches reports whether a single wine passes the filter.
func Matches(w domain.Wine, text string) bool {
	if text == "" {
		return true
	}
	needle := fold(text)
	return needle != "" && strings.Contains(fold(w.Name), needle)
}

// fold reduces s to a comparison key: decomposed, stripped of combining
// marks, case folded and recomposed. Transformers carry state, so a fresh
// chain is built for every call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
