package profile

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/label"
	"github.com/Skufu/GoRehab/internal/policy"
)

// Set is an insertion-ordered set of concept identifiers.
type Set struct {
	ids   []string
	index map[string]bool
}

// Add inserts id if it is not already present.
func (s *Set) Add(id string) {
	if s.index == nil {
		s.index = make(map[string]bool)
	}
	if s.index[id] {
		return
	}
	s.index[id] = true
	s.ids = append(s.ids, id)
}

func (s *Set) Has(id string) bool { return s.index[id] }
func (s *Set) Len() int           { return len(s.ids) }

// IDs returns the members in insertion order.
func (s *Set) IDs() []string { return append([]string(nil), s.ids...) }

// Intersect returns the members of ids that are in s, in the order of ids.
func (s *Set) Intersect(ids []string) []string {
	var out []string
	for _, id := range ids {
		if s.index[id] {
			out = append(out, id)
		}
	}
	return out
}

// Normalized is a profile resolved against a store.
type Normalized struct {
	Profile Profile
	// Archetypes that survived severity and age filtering.
	Archetypes Set
	// Active concepts: the surviving archetypes plus concepts matched from
	// raw symptom and condition text.
	Active Set
	// FailOpen is set when filtering removed every archetype and the
	// whole table entry was kept instead.
	FailOpen bool
}

// Normalize maps p onto concept references. p should already be canonical.
//
// Archetypes come from the diagnosis table. An archetype that declares a
// severity or age group different from the profile's is dropped. If that
// drops all of them, every archetype of the entry is kept: the patient
// still gets the diagnosis' programs rather than nothing.
func Normalize(p Profile, store *kb.Store, rules *policy.Rules, log zerolog.Logger) Normalized {
	n := Normalized{Profile: p}

	var known []string
	for _, id := range rules.ArchetypesFor(p.Diagnosis) {
		c, ok := store.Concept(id)
		if !ok || c.Kind != kb.KindArchetype {
			log.Debug().Str("archetype", id).Str("diagnosis", p.Diagnosis).Msg("mapped archetype not in knowledge base")
			continue
		}
		known = append(known, id)
	}

	for _, id := range known {
		if attributeMismatch(store.Severity(id), p.Severity) || attributeMismatch(store.AgeGroup(id), p.AgeGroup) {
			continue
		}
		n.Archetypes.Add(id)
	}
	if n.Archetypes.Len() == 0 && len(known) > 0 {
		n.FailOpen = true
		log.Debug().Str("diagnosis", p.Diagnosis).Strs("archetypes", known).Msg("no archetype matched severity and age, keeping all")
		for _, id := range known {
			n.Archetypes.Add(id)
		}
	}

	for _, id := range n.Archetypes.ids {
		n.Active.Add(id)
	}
	for _, term := range p.Symptoms {
		for _, id := range MatchTerm(store, term) {
			n.Active.Add(id)
		}
	}
	for _, term := range p.Conditions {
		for _, id := range MatchTerm(store, term) {
			n.Active.Add(id)
		}
	}
	return n
}

func attributeMismatch(declared, want string) bool {
	declared = canonicalEnum(declared, true)
	return declared != "" && !label.Equal(declared, canonicalEnum(want, true))
}

var matchableKinds = []kb.Kind{kb.KindSymptom, kb.KindCondition, kb.KindArchetype}

// MatchTerm resolves a raw symptom or condition string to concept
// identifiers. Concepts whose display label, short label or local name
// equal the term win; only when there are none does the fuzzy keyword
// match apply.
func MatchTerm(store *kb.Store, term string) []string {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	var exact, fuzzy []string
	for _, k := range matchableKinds {
		for _, c := range store.ConceptsOfKind(k) {
			display := label.DisplayLabel(c)
			local := label.LocalName(c.ID)
			switch {
			case label.Equal(display, term), label.Equal(c.Label, term), label.Equal(local, term), c.ID == term:
				exact = append(exact, c.ID)
			case label.MatchesKeyword(display, term), label.MatchesKeyword(label.Humanize(c.ID), term):
				fuzzy = append(fuzzy, c.ID)
			}
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return fuzzy
}
