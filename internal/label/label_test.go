package label

import (
	"testing"

	"github.com/Skufu/GoRehab/internal/kb"
)

func TestDisplayLabel(t *testing.T) {
	tests := []struct {
		name string
		c    kb.Concept
		want string
	}{
		{"annotation wins", kb.Concept{ID: "rehab:X", Label: "x", Annotation: "  Robotic gait  "}, "Robotic gait"},
		{"label next", kb.Concept{ID: "rehab:X", Label: "gait training"}, "gait training"},
		{"humanised id", kb.Concept{ID: "rehab:gait_training"}, "Gait Training"},
		{"camel case kept", kb.Concept{ID: "http://example.org/rehab#StrokeMild"}, "StrokeMild"},
		{"no namespace", kb.Concept{ID: "nordic-walking"}, "Nordic Walking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayLabel(tt.c); got != tt.want {
				t.Fatalf("DisplayLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchesKeyword(t *testing.T) {
	tests := []struct {
		candidate, keyword string
		want               bool
	}{
		{"Lokomat robotic gait training", "gait", true},
		{"gait", "Robotic GAIT training", true},
		{"Massage", "gait", false},
		{"", "gait", false},
		{"gait", "  ", false},
	}
	for _, tt := range tests {
		if got := MatchesKeyword(tt.candidate, tt.keyword); got != tt.want {
			t.Fatalf("MatchesKeyword(%q, %q) = %v, want %v", tt.candidate, tt.keyword, got, tt.want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	names := []string{"Therapeutic massage", "Lokomat robotic gait training"}
	if !ContainsAny(names, []string{"ROBOT"}) {
		t.Fatal("expected robot keyword to match")
	}
	if ContainsAny(names, []string{"exercise", ""}) {
		t.Fatal("expected no match")
	}
	// One directional: a long keyword does not match a short name.
	if ContainsAny([]string{"gait"}, []string{"robotic gait training"}) {
		t.Fatal("expected keyword inside name only")
	}
}

func TestEqualAndLocalName(t *testing.T) {
	if !Equal(" Medium ", "medium") {
		t.Fatal("expected case-insensitive equality")
	}
	if Equal("mild", "medium") {
		t.Fatal("expected inequality")
	}
	if got := LocalName("rehab:Lokomat"); got != "Lokomat" {
		t.Fatalf("LocalName() = %q", got)
	}
}
