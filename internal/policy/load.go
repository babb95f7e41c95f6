package policy

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a rules file (YAML, JSON or TOML, by extension) and overlays
// it on the defaults. A table present in the file replaces the built-in
// table of the same name; tables the file omits keep their defaults. An
// empty path returns the defaults.
func Load(path string) (*Rules, error) {
	rules := Default()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file Rules
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("unmarshal rules file: %w", err)
	}

	if v.IsSet("diagnoses") {
		rules.Diagnoses = lowerKeys(file.Diagnoses)
	}
	if v.IsSet("goal_method_keywords") {
		rules.GoalMethodKeywords = lowerKeys(file.GoalMethodKeywords)
	}
	if v.IsSet("movement_method_keywords") {
		rules.MovementMethodKeywords = lowerKeys(file.MovementMethodKeywords)
	}
	if v.IsSet("target_method_keywords") {
		rules.TargetMethodKeywords = lowerKeys(file.TargetMethodKeywords)
	}
	if v.IsSet("robotic_keywords") {
		rules.RoboticKeywords = file.RoboticKeywords
	}
	if v.IsSet("exercise_keywords") {
		rules.ExerciseKeywords = file.ExerciseKeywords
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Validate rejects tables that would make matching meaningless.
func (r *Rules) Validate() error {
	if len(r.Diagnoses) == 0 {
		return fmt.Errorf("diagnoses table is empty")
	}
	for d, ids := range r.Diagnoses {
		if len(ids) == 0 {
			return fmt.Errorf("diagnosis %q maps to no archetypes", d)
		}
	}
	return nil
}

func lowerKeys(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[key(k)] = v
	}
	return out
}
