// Package policy holds the fixed lookup tables behind profile
// normalisation and scoring: which archetypes a diagnosis maps to, and
// which method keywords satisfy a goal, a severity, a movement level or a
// rehabilitation target.
package policy

import (
	"sort"
	"strings"
)

// Rules is read-only after construction and safe to share.
type Rules struct {
	// Diagnoses maps a lower-cased diagnosis to archetype identifiers, in
	// preference order.
	Diagnoses map[string][]string `mapstructure:"diagnoses" json:"diagnoses"`

	GoalMethodKeywords     map[string][]string `mapstructure:"goal_method_keywords" json:"goal_method_keywords"`
	MovementMethodKeywords map[string][]string `mapstructure:"movement_method_keywords" json:"movement_method_keywords"`
	TargetMethodKeywords   map[string][]string `mapstructure:"target_method_keywords" json:"target_method_keywords"`

	// RoboticKeywords mark mechanised therapy, rewarded for severe cases.
	RoboticKeywords []string `mapstructure:"robotic_keywords" json:"robotic_keywords"`
	// ExerciseKeywords mark exercise therapy, rewarded for mild cases.
	ExerciseKeywords []string `mapstructure:"exercise_keywords" json:"exercise_keywords"`
}

// Default returns the built-in tables. The archetype identifiers match the
// bundled knowledge base in data/rehab_kb.yaml.
func Default() *Rules {
	return &Rules{
		Diagnoses: map[string][]string{
			"stroke": {
				"rehab:StrokeMildAdult", "rehab:StrokeModerateAdult",
				"rehab:StrokeSevereAdult", "rehab:StrokeElderly",
			},
			"spinal cord injury":     {"rehab:SpinalInjuryIncomplete", "rehab:SpinalInjuryComplete"},
			"joint replacement":      {"rehab:PostArthroplastyAdult", "rehab:PostArthroplastyElderly"},
			"cerebral palsy":         {"rehab:CerebralPalsyChild"},
			"traumatic brain injury": {"rehab:BrainInjuryAdult"},
			"parkinson's disease":    {"rehab:ParkinsonElderly"},
			"chronic back pain":      {"rehab:BackPainAdult"},
		},
		GoalMethodKeywords: map[string][]string{
			"walking":       {"gait", "walking", "treadmill", "lokomat"},
			"balance":       {"balance", "stabilometr", "vestibular"},
			"self-care":     {"occupational", "daily living"},
			"hand function": {"hand", "fine motor", "mirror"},
			"pain relief":   {"massage", "electrotherapy", "thermotherapy", "tens"},
			"strength":      {"strength", "resistance"},
			"speech":        {"speech", "logoped"},
			"cognition":     {"cognitive", "neuropsych"},
			"breathing":     {"respiratory", "breathing"},
		},
		MovementMethodKeywords: map[string][]string{
			"none":      {"exercise", "nordic walking", "fitness"},
			"mild":      {"exercise", "balance", "gait"},
			"moderate":  {"gait", "balance", "mechanotherapy"},
			"severe":    {"robot", "mechanotherapy", "passive"},
			"paralysis": {"robot", "exoskeleton", "electrostimulation", "passive"},
		},
		TargetMethodKeywords: map[string][]string{
			"mobility":       {"gait", "balance", "robot"},
			"pain relief":    {"massage", "electrotherapy", "thermotherapy"},
			"independence":   {"occupational", "daily living"},
			"strength":       {"strength", "resistance", "exercise"},
			"return to work": {"occupational", "ergonomic"},
			"cognition":      {"cognitive", "speech"},
		},
		RoboticKeywords:  []string{"robot", "lokomat", "exoskeleton", "mechanotherapy"},
		ExerciseKeywords: []string{"exercise", "kinesiotherapy", "pilates", "nordic walking"},
	}
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ArchetypesFor returns the archetype identifiers mapped to a diagnosis.
func (r *Rules) ArchetypesFor(diagnosis string) []string {
	return r.Diagnoses[key(diagnosis)]
}

// DiagnosisNames lists the known diagnoses in alphabetical order.
func (r *Rules) DiagnosisNames() []string {
	out := make([]string, 0, len(r.Diagnoses))
	for d := range r.Diagnoses {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// GoalKeywords returns the method keywords that satisfy a goal.
func (r *Rules) GoalKeywords(goal string) []string {
	return r.GoalMethodKeywords[key(goal)]
}

// MovementKeywords returns the method keywords suited to a movement level.
func (r *Rules) MovementKeywords(level string) []string {
	return r.MovementMethodKeywords[key(level)]
}

// TargetKeywords returns the method keywords suited to a target. An exact
// key wins; otherwise every key sharing a substring with the target
// contributes, in key order.
func (r *Rules) TargetKeywords(target string) []string {
	t := key(target)
	if t == "" {
		return nil
	}
	if kw, ok := r.TargetMethodKeywords[t]; ok {
		return kw
	}
	names := make([]string, 0, len(r.TargetMethodKeywords))
	for name := range r.TargetMethodKeywords {
		if strings.Contains(name, t) || strings.Contains(t, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var out []string
	for _, name := range names {
		out = append(out, r.TargetMethodKeywords[name]...)
	}
	return out
}
