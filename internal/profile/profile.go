// Package profile defines the patient profile the engine matches against
// and turns it into concept references.
package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Accepted enumerations.
const (
	SeverityMild   = "mild"
	SeverityMedium = "medium"
	SeveritySevere = "severe"

	AgeChild   = "child"
	AgeAdult   = "adult"
	AgeElderly = "elderly"
)

// MovementLevels is ordered from least to most impaired. Neighbouring
// entries are considered compatible.
var MovementLevels = []string{"none", "mild", "moderate", "severe", "paralysis"}

// Profile is a request-scoped description of a patient. It is never
// persisted.
type Profile struct {
	Diagnosis           string   `json:"diagnosis" form:"diagnosis" validate:"required"`
	Severity            string   `json:"severity" form:"severity" validate:"required,oneof=mild medium severe"`
	AgeGroup            string   `json:"age_group" form:"age_group" validate:"required,oneof=child adult elderly"`
	MovementImpairment  string   `json:"movement_impairment" form:"movement_impairment" validate:"omitempty,oneof=none mild moderate severe paralysis"`
	Target              string   `json:"target" form:"target"`
	Goals               []string `json:"goals" form:"goals"`
	MobilityRestriction string   `json:"mobility_restriction" form:"mobility_restriction"`
	PainLevel           string   `json:"pain_level" form:"pain_level"`

	// Raw symptom and condition strings for free-text matching.
	Symptoms   []string `json:"symptoms" form:"symptoms"`
	Conditions []string `json:"conditions" form:"conditions"`
}

var aliases = map[string]string{
	"moderate":   SeverityMedium,
	"light":      SeverityMild,
	"heavy":      SeveritySevere,
	"senior":     AgeElderly,
	"older":      AgeElderly,
	"pediatric":  AgeChild,
	"paediatric": AgeChild,
}

// Canonical returns a copy with enumerations lower-cased and trimmed,
// common synonyms mapped, and empty list entries dropped.
func (p Profile) Canonical() Profile {
	out := p
	out.Diagnosis = strings.TrimSpace(p.Diagnosis)
	out.Severity = canonicalEnum(p.Severity, true)
	out.AgeGroup = canonicalEnum(p.AgeGroup, true)
	out.MovementImpairment = canonicalEnum(p.MovementImpairment, false)
	if out.MovementImpairment == "unspecified" {
		out.MovementImpairment = ""
	}
	out.Target = strings.TrimSpace(p.Target)
	out.Goals = cleanList(p.Goals)
	out.Symptoms = cleanList(p.Symptoms)
	out.Conditions = cleanList(p.Conditions)
	out.MobilityRestriction = strings.TrimSpace(p.MobilityRestriction)
	out.PainLevel = strings.TrimSpace(p.PainLevel)
	return out
}

func canonicalEnum(s string, useAliases bool) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if useAliases {
		if a, ok := aliases[v]; ok {
			return a
		}
	}
	return v
}

// cleanList trims entries, drops empties and removes case-insensitive
// duplicates, keeping the first spelling.
func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// HasMovement reports whether a movement impairment level was given.
func (p Profile) HasMovement() bool { return p.MovementImpairment != "" }

// MovementDistance returns how many steps apart two movement levels are.
// ok is false when either level is unknown.
func MovementDistance(a, b string) (dist int, ok bool) {
	ia, ib := movementIndex(a), movementIndex(b)
	if ia < 0 || ib < 0 {
		return 0, false
	}
	d := ia - ib
	if d < 0 {
		d = -d
	}
	return d, true
}

func movementIndex(level string) int {
	level = strings.ToLower(strings.TrimSpace(level))
	for i, l := range MovementLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a profile.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid profile: " + strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks p as given; call Canonical first to accept synonyms and
// mixed case.
func Validate(p Profile) error {
	err := profileValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate profile: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
