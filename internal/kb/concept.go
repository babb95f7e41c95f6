package kb

import "strings"

// Kind is the fixed category of a concept.
type Kind string

const (
	KindSymptom    Kind = "Symptom"
	KindCondition  Kind = "Condition"
	KindArchetype  Kind = "PatientArchetype"
	KindProgram    Kind = "Program"
	KindMethod     Kind = "Method"
	KindSpecialist Kind = "Specialist"
)

// Kinds lists every concept kind in a stable order.
var Kinds = []Kind{KindSymptom, KindCondition, KindArchetype, KindProgram, KindMethod, KindSpecialist}

// kindAliases maps ontology class names seen in graph sources to canonical kinds.
var kindAliases = map[string]Kind{
	"symptom":          KindSymptom,
	"condition":        KindCondition,
	"medicalcondition": KindCondition,
	"diagnosis":        KindCondition,
	"patientarchetype": KindArchetype,
	"archetype":        KindArchetype,
	"patientcase":      KindArchetype,
	"program":          KindProgram,
	"rehabprogram":     KindProgram,
	"method":           KindMethod,
	"rehabmethod":      KindMethod,
	"specialist":       KindSpecialist,
}

// ParseKind resolves a kind name or alias, ignoring case.
func ParseKind(s string) (Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

// Concept is an immutable node of the knowledge graph.
type Concept struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Annotation string `json:"annotation,omitempty"`
	Label      string `json:"label,omitempty"`
}

// Predicate identifies a relation type. The set is closed.
type Predicate string

const (
	PredRecommendedFor     Predicate = "recommendedFor"
	PredContraindicatedFor Predicate = "contraindicatedFor"
	PredIncludesMethod     Predicate = "includesMethod"
	PredSuitableFor        Predicate = "suitableForArchetype"
	PredSupervisedBy       Predicate = "supervisedBySpecialist"
	PredDuration           Predicate = "hasDuration"
	PredSessionCount       Predicate = "hasSessionCount"
	PredEffectiveness      Predicate = "hasEffectivenessScore"
	PredMovementLevel      Predicate = "hasMovementLevel"
	PredSeverity           Predicate = "hasSeverity"
	PredAgeGroup           Predicate = "hasAgeGroup"
	PredTargetGroup        Predicate = "hasTargetGroup"
)

// predicateOrder is the canonical order used when a source gives none.
var predicateOrder = []Predicate{
	PredRecommendedFor, PredContraindicatedFor, PredIncludesMethod, PredSuitableFor,
	PredSupervisedBy, PredDuration, PredSessionCount, PredEffectiveness,
	PredMovementLevel, PredSeverity, PredAgeGroup, PredTargetGroup,
}

type valueType int

const (
	conceptValued valueType = iota
	scalarValued
	literalSet
)

// predicateMeta describes how a predicate's objects are stored and checked.
type predicateMeta struct {
	values valueType
	// object is the kind the object must have, empty when any kind is accepted.
	object Kind
}

var predicates = map[Predicate]predicateMeta{
	PredRecommendedFor:     {values: conceptValued},
	PredContraindicatedFor: {values: conceptValued},
	PredIncludesMethod:     {values: conceptValued, object: KindMethod},
	PredSuitableFor:        {values: conceptValued, object: KindArchetype},
	PredSupervisedBy:       {values: conceptValued, object: KindSpecialist},
	PredDuration:           {values: scalarValued},
	PredSessionCount:       {values: scalarValued},
	PredEffectiveness:      {values: scalarValued},
	PredMovementLevel:      {values: scalarValued},
	PredSeverity:           {values: scalarValued},
	PredAgeGroup:           {values: scalarValued},
	PredTargetGroup:        {values: literalSet},
}

// predicateAliases maps property names used by older ontologies onto the
// canonical predicate. Keys are lower case.
var predicateAliases = map[string]Predicate{
	"isrecommendedfor":       PredRecommendedFor,
	"recommendedfor":         PredRecommendedFor,
	"contraindicatedfor":     PredContraindicatedFor,
	"hascontraindication":    PredContraindicatedFor,
	"includesmethod":         PredIncludesMethod,
	"hasmethod":              PredIncludesMethod,
	"suitableforarchetype":   PredSuitableFor,
	"suitablefor":            PredSuitableFor,
	"supervisedbyspecialist": PredSupervisedBy,
	"supervisedby":           PredSupervisedBy,
	"hasduration":            PredDuration,
	"duration":               PredDuration,
	"hassessioncount":        PredSessionCount,
	"sessioncount":           PredSessionCount,
	"haseffectivenessscore":  PredEffectiveness,
	"effectiveness":          PredEffectiveness,
	"hasmovementlevel":       PredMovementLevel,
	"movementlevel":          PredMovementLevel,
	"hasseverity":            PredSeverity,
	"hasagegroup":            PredAgeGroup,
	"hastargetgroup":         PredTargetGroup,
	"targetgroup":            PredTargetGroup,
}

// ParsePredicate resolves a property name to its canonical predicate. A
// namespace prefix, case, and underscores or dashes are ignored, so
// "rehab:isRecommendedFor" and "RECOMMENDED_FOR" both resolve.
func ParsePredicate(s string) (Predicate, bool) {
	name := strings.TrimSpace(s)
	if i := strings.LastIndexAny(name, "#/:"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(name))
	p, ok := predicateAliases[name]
	return p, ok
}

// IsScalar reports whether p holds at most one literal value per subject.
func (p Predicate) IsScalar() bool {
	return predicates[p].values == scalarValued
}
