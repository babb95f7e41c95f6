// Package label derives display text and match keys for concepts.
package label

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Skufu/GoRehab/internal/kb"
)

var separators = strings.NewReplacer("_", " ", "-", " ")

// DisplayLabel resolves the text shown for c: its annotation, else its
// short label, else a humanised form of its identifier.
func DisplayLabel(c kb.Concept) string {
	if s := strings.TrimSpace(c.Annotation); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.Label); s != "" {
		return s
	}
	return Humanize(c.ID)
}

// LocalName strips any namespace prefix from an identifier.
func LocalName(id string) string {
	if i := strings.LastIndexAny(id, "#/:"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Humanize turns "rehab:gait_training" into "Gait Training". Capitals
// inside a word are kept, so "StrokeMild" stays "StrokeMild".
func Humanize(id string) string {
	words := strings.Fields(separators.Replace(LocalName(id)))
	// Casers carry state and must not be shared between goroutines.
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}

// MatchesKeyword reports whether either string contains the other,
// ignoring case. A short keyword can match inside an unrelated longer
// label. Empty input never matches.
func MatchesKeyword(candidate, keyword string) bool {
	a := strings.ToLower(strings.TrimSpace(candidate))
	b := strings.ToLower(strings.TrimSpace(keyword))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ContainsAny reports whether any keyword occurs in any of the names,
// ignoring case. Unlike MatchesKeyword it is one directional: the keyword
// must be inside the name.
func ContainsAny(names, keywords []string) bool {
	for _, n := range names {
		ln := strings.ToLower(n)
		for _, k := range keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" && strings.Contains(ln, k) {
				return true
			}
		}
	}
	return false
}

// Equal compares two labels ignoring case and surrounding space.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
