// Package scoring computes the bounded suitability score of a candidate
// program. Every rule is additive and independent; the sum is capped at
// MaxScore.
package scoring

import (
	"strings"
	"unicode"

	"github.com/Skufu/GoRehab/internal/label"
	"github.com/Skufu/GoRehab/internal/policy"
	"github.com/Skufu/GoRehab/internal/profile"
)

const MaxScore = 100

// Points per rule.
const (
	PointsPerMatch        = 25
	PointsGoal            = 10
	PointsSevereRobotic   = 15
	PointsMildExercise    = 10
	PointsMovementExact   = 10
	PointsMovementNear    = 5
	PointsMovementMethods = 5
	PointsTargetGroup     = 10
	PointsTargetToken     = 5
	PointsTargetMethods   = 5
	PointsDirectLink      = 5
	PointsDirectMovement  = 5
	PointsDirectTarget    = 5
)

// Rule names used in a Breakdown.
const (
	RuleBase            = "base"
	RuleGoal            = "goal"
	RuleSeverity        = "severity_synergy"
	RuleMovementLevel   = "movement_level"
	RuleMovementMethods = "movement_methods"
	RuleTargetGroup     = "target_group"
	RuleTargetMethods   = "target_methods"
	RuleDirectLink      = "direct_link"
)

// Candidate is what the scorer knows about a program.
type Candidate struct {
	// Methods are the display names of the program's methods.
	Methods       []string
	MovementLevel string
	TargetGroups  []string
	// MatchCount is the number of matched archetypes (plus matched
	// recommendation targets in free-text modes).
	MatchCount int
	// DirectLink is set when a matched archetype declares exactly the
	// profile's severity and age group.
	DirectLink bool
}

// Term is one applied rule.
type Term struct {
	Rule   string `json:"rule"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Breakdown is the explanation of a score.
type Breakdown struct {
	Terms []Term `json:"terms"`
	// Raw is the uncapped sum.
	Raw   int `json:"raw"`
	Total int `json:"total"`
}

func (b *Breakdown) add(rule string, points int, detail string) {
	if points <= 0 {
		return
	}
	b.Terms = append(b.Terms, Term{Rule: rule, Points: points, Detail: detail})
	b.Raw += points
}

// Score returns the capped score of c for p.
func Score(c Candidate, p profile.Profile, rules *policy.Rules) int {
	return Evaluate(c, p, rules).Total
}

// Evaluate applies every rule and returns the itemised result.
func Evaluate(c Candidate, p profile.Profile, rules *policy.Rules) Breakdown {
	var b Breakdown

	if c.MatchCount > 0 {
		b.add(RuleBase, PointsPerMatch*c.MatchCount, "")
	}

	for _, goal := range p.Goals {
		if label.ContainsAny(c.Methods, rules.GoalKeywords(goal)) {
			b.add(RuleGoal, PointsGoal, goal)
		}
	}

	switch p.Severity {
	case profile.SeveritySevere:
		if label.ContainsAny(c.Methods, rules.RoboticKeywords) {
			b.add(RuleSeverity, PointsSevereRobotic, "robotic therapy for severe case")
		}
	case profile.SeverityMild:
		if label.ContainsAny(c.Methods, rules.ExerciseKeywords) {
			b.add(RuleSeverity, PointsMildExercise, "exercise therapy for mild case")
		}
	}

	movement := movementPoints(c.MovementLevel, p.MovementImpairment)
	b.add(RuleMovementLevel, movement, c.MovementLevel)
	if p.HasMovement() && label.ContainsAny(c.Methods, rules.MovementKeywords(p.MovementImpairment)) {
		b.add(RuleMovementMethods, PointsMovementMethods, p.MovementImpairment)
	}

	target := targetPoints(p.Target, c.TargetGroups)
	b.add(RuleTargetGroup, target, p.Target)
	if label.ContainsAny(c.Methods, rules.TargetKeywords(p.Target)) {
		b.add(RuleTargetMethods, PointsTargetMethods, p.Target)
	}

	if c.DirectLink {
		points := PointsDirectLink
		if movement > 0 {
			points += PointsDirectMovement
		}
		if target > 0 {
			points += PointsDirectTarget
		}
		b.add(RuleDirectLink, points, "")
	}

	b.Total = b.Raw
	if b.Total > MaxScore {
		b.Total = MaxScore
	}
	if b.Total < 0 {
		b.Total = 0
	}
	return b
}

// movementPoints rewards a program whose declared movement level equals
// the patient's, and less so one a single step away.
func movementPoints(programLevel, patientLevel string) int {
	if programLevel == "" || patientLevel == "" {
		return 0
	}
	d, ok := profile.MovementDistance(programLevel, patientLevel)
	switch {
	case !ok:
		return 0
	case d == 0:
		return PointsMovementExact
	case d == 1:
		return PointsMovementNear
	default:
		return 0
	}
}

// targetPoints compares the patient's target with the program's target
// groups: a substring match either way scores full points, a shared word
// of three or more letters scores less.
func targetPoints(target string, groups []string) int {
	if strings.TrimSpace(target) == "" {
		return 0
	}
	for _, g := range groups {
		if label.MatchesKeyword(g, target) {
			return PointsTargetGroup
		}
	}
	want := tokens(target)
	for _, g := range groups {
		for t := range tokens(g) {
			if want[t] {
				return PointsTargetToken
			}
		}
	}
	return 0
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) >= 3 {
			out[f] = true
		}
	}
	return out
}
