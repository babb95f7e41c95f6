package kb

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Store is the immutable, in-memory concept graph. It is safe for
// concurrent reads once returned by a Builder.
type Store struct {
	source   string
	concepts map[string]*Concept
	byKind   map[Kind][]string
	edges    map[string]map[Predicate][]string
	notices  []string
}

// Source returns the location the store was loaded from.
func (s *Store) Source() string { return s.source }

// Concept returns the concept with the given identifier.
func (s *Store) Concept(id string) (Concept, bool) {
	c, ok := s.concepts[id]
	if !ok {
		return Concept{}, false
	}
	return *c, true
}

// ConceptsOfKind returns every concept of kind k in load order.
func (s *Store) ConceptsOfKind(k Kind) []Concept {
	ids := s.byKind[k]
	out := make([]Concept, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.concepts[id])
	}
	return out
}

// RelationsFrom returns the objects of predicate p on subject id, in
// declaration order. The result is empty, never nil-error, when the subject
// or predicate is absent. Callers must not modify the returned slice.
func (s *Store) RelationsFrom(id string, p Predicate) []string {
	return s.edges[id][p]
}

// Scalar returns the single value of a scalar predicate.
func (s *Store) Scalar(id string, p Predicate) (string, bool) {
	vals := s.edges[id][p]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Diagnostics returns the notices recorded for entries skipped during build.
func (s *Store) Diagnostics() []string {
	out := make([]string, len(s.notices))
	copy(out, s.notices)
	return out
}

// Stats counts concepts per kind.
func (s *Store) Stats() map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = len(s.byKind[k])
	}
	return out
}

// Typed accessors, one per predicate.

func (s *Store) RecommendedFor(id string) []string     { return s.RelationsFrom(id, PredRecommendedFor) }
func (s *Store) ContraindicatedFor(id string) []string { return s.RelationsFrom(id, PredContraindicatedFor) }
func (s *Store) Methods(id string) []string            { return s.RelationsFrom(id, PredIncludesMethod) }
func (s *Store) Archetypes(id string) []string         { return s.RelationsFrom(id, PredSuitableFor) }
func (s *Store) Specialists(id string) []string        { return s.RelationsFrom(id, PredSupervisedBy) }
func (s *Store) TargetGroups(id string) []string       { return s.RelationsFrom(id, PredTargetGroup) }

func (s *Store) Duration(id string) string      { return s.scalar(id, PredDuration) }
func (s *Store) SessionCount(id string) string  { return s.scalar(id, PredSessionCount) }
func (s *Store) Effectiveness(id string) string { return s.scalar(id, PredEffectiveness) }
func (s *Store) MovementLevel(id string) string { return s.scalar(id, PredMovementLevel) }
func (s *Store) Severity(id string) string      { return s.scalar(id, PredSeverity) }
func (s *Store) AgeGroup(id string) string      { return s.scalar(id, PredAgeGroup) }

func (s *Store) scalar(id string, p Predicate) string {
	v, _ := s.Scalar(id, p)
	return v
}

type pendingRelation struct {
	subject, predicate, object string
}

// Builder accumulates concepts and relations and produces a Store. Entries
// that cannot be indexed are skipped and reported as diagnostics.
type Builder struct {
	source    string
	log       zerolog.Logger
	concepts  map[string]*Concept
	order     []string
	relations []pendingRelation
	notices   []string
}

// NewBuilder returns an empty builder for the named source.
func NewBuilder(source string, log zerolog.Logger) *Builder {
	return &Builder{
		source:   source,
		log:      log,
		concepts: make(map[string]*Concept),
	}
}

func (b *Builder) notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.notices = append(b.notices, msg)
	b.log.Warn().Str("source", b.source).Msg(msg)
}

// AddConcept registers a concept. kind may be a canonical kind or an alias.
func (b *Builder) AddConcept(id, kind, label, annotation string) {
	id = strings.TrimSpace(id)
	if id == "" {
		b.notice("concept without identifier skipped")
		return
	}
	k, ok := ParseKind(kind)
	if !ok {
		b.notice("concept %s: unknown kind %q skipped", id, kind)
		return
	}
	if prev, dup := b.concepts[id]; dup {
		b.notice("concept %s: duplicate identifier (kept kind %s)", id, prev.Kind)
		return
	}
	b.concepts[id] = &Concept{
		ID:         id,
		Kind:       k,
		Label:      strings.TrimSpace(label),
		Annotation: strings.TrimSpace(annotation),
	}
	b.order = append(b.order, id)
}

// AddRelation queues a relation. Relations are resolved in Build so they may
// be added before the concepts they reference.
func (b *Builder) AddRelation(subject, predicate, object string) {
	b.relations = append(b.relations, pendingRelation{
		subject:   strings.TrimSpace(subject),
		predicate: predicate,
		object:    strings.TrimSpace(object),
	})
}

// Build indexes everything added so far. It fails only when no concept
// survived, so a Store is never returned half populated.
func (b *Builder) Build() (*Store, error) {
	if len(b.order) == 0 {
		return nil, &LoadError{Source: b.source, Err: errEmptyGraph}
	}

	concepts := make(map[string]*Concept, len(b.concepts))
	for id, c := range b.concepts {
		cp := *c
		concepts[id] = &cp
	}
	s := &Store{
		source:   b.source,
		concepts: concepts,
		byKind:   make(map[Kind][]string, len(Kinds)),
		edges:    make(map[string]map[Predicate][]string),
	}
	for _, id := range b.order {
		k := concepts[id].Kind
		s.byKind[k] = append(s.byKind[k], id)
	}

	for _, r := range b.relations {
		b.index(s, r)
	}
	s.notices = append([]string(nil), b.notices...)
	return s, nil
}

func (b *Builder) index(s *Store, r pendingRelation) {
	p, ok := ParsePredicate(r.predicate)
	if !ok {
		b.notice("relation %s %s %s: unknown predicate skipped", r.subject, r.predicate, r.object)
		return
	}
	if _, ok := s.concepts[r.subject]; !ok {
		b.notice("relation %s %s %s: unknown subject skipped", r.subject, p, r.object)
		return
	}
	if r.object == "" {
		b.notice("relation %s %s: empty object skipped", r.subject, p)
		return
	}

	meta := predicates[p]
	if meta.values == conceptValued {
		obj, ok := s.concepts[r.object]
		if !ok {
			b.notice("relation %s %s %s: unknown object skipped", r.subject, p, r.object)
			return
		}
		if meta.object != "" && obj.Kind != meta.object {
			b.notice("relation %s %s %s: object is %s, want %s", r.subject, p, r.object, obj.Kind, meta.object)
			return
		}
	}

	preds := s.edges[r.subject]
	if preds == nil {
		preds = make(map[Predicate][]string)
		s.edges[r.subject] = preds
	}
	existing := preds[p]
	if meta.values == scalarValued && len(existing) > 0 {
		if existing[0] != r.object {
			b.notice("relation %s %s: extra value %q ignored, keeping %q", r.subject, p, r.object, existing[0])
		}
		return
	}
	for _, o := range existing {
		if o == r.object {
			return
		}
	}
	preds[p] = append(existing, r.object)
}
