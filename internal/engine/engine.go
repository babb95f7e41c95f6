// Package engine selects, filters, scores and ranks rehabilitation programs
// for a patient profile.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/label"
	"github.com/Skufu/GoRehab/internal/policy"
	"github.com/Skufu/GoRehab/internal/profile"
	"github.com/Skufu/GoRehab/internal/scoring"
)

// MaxResults is the upper bound on returned programs.
const MaxResults = 5

// Mode selects how candidate programs are generated.
type Mode string

const (
	// ModeArchetype matches programs suitable for the profile's archetypes.
	ModeArchetype Mode = "archetype"
	// ModeKeyword matches programs recommended for concepts named in the
	// profile's free-text symptoms and conditions.
	ModeKeyword Mode = "keyword"
	// ModeCombined accepts a program matched either way.
	ModeCombined Mode = "combined"
)

// ParseMode validates a mode name. The empty string selects ModeArchetype.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeArchetype:
		return ModeArchetype, nil
	case ModeKeyword, ModeCombined:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

func (m Mode) archetypes() bool { return m != ModeKeyword }
func (m Mode) keywords() bool   { return m != ModeArchetype }

// ScoredProgram is one recommendation. It is built per request and not
// modified after it is returned.
type ScoredProgram struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Duration     string            `json:"duration,omitempty"`
	SessionCount string            `json:"session_count,omitempty"`
	Methods      []string          `json:"methods"`
	Specialists  []string          `json:"specialists"`
	Archetypes   []string          `json:"archetypes"`
	Score        int               `json:"score"`
	Breakdown    scoring.Breakdown `json:"breakdown"`
}

// Engine is safe for concurrent use.
type Engine struct {
	source kb.Source
	rules  *policy.Rules
	mode   Mode
	limit  int
	log    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the candidate generation mode.
func WithMode(m Mode) Option { return func(e *Engine) { e.mode = m } }

// WithLimit caps the number of results; values outside 1..MaxResults are
// clamped.
func WithLimit(n int) Option {
	return func(e *Engine) {
		switch {
		case n < 1:
			e.limit = 1
		case n > MaxResults:
			e.limit = MaxResults
		default:
			e.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l.With().Str("component", "engine").Logger() }
}

// New returns an engine reading from source.
func New(source kb.Source, rules *policy.Rules, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		rules:  rules,
		mode:   ModeArchetype,
		limit:  MaxResults,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the configured mode.
func (e *Engine) Mode() Mode { return e.mode }

// FindPrograms returns at most the configured number of programs for p,
// best first. An unknown diagnosis yields an empty result, not an error.
// The error is a *profile.ValidationError for an invalid profile and wraps
// kb.ErrUnavailable when the knowledge base failed to load.
func (e *Engine) FindPrograms(ctx context.Context, p profile.Profile) ([]ScoredProgram, error) {
	p = p.Canonical()
	if err := profile.Validate(p); err != nil {
		return nil, err
	}

	store, err := e.source.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kb.ErrUnavailable, err)
	}

	n := profile.Normalize(p, store, e.rules, e.log)
	return e.rank(store, n), nil
}

type candidate struct {
	program    kb.Concept
	archetypes []string
	recommends []string
}

func (e *Engine) rank(store *kb.Store, n profile.Normalized) []ScoredProgram {
	var candidates []candidate
	for _, prog := range store.ConceptsOfKind(kb.KindProgram) {
		c := candidate{program: prog}
		if e.mode.archetypes() {
			c.archetypes = n.Archetypes.Intersect(store.Archetypes(prog.ID))
		}
		if e.mode.keywords() {
			c.recommends = n.Active.Intersect(store.RecommendedFor(prog.ID))
		}
		if len(c.archetypes) == 0 && len(c.recommends) == 0 {
			continue
		}
		if blocked := contraindicated(store, prog.ID, n); blocked != "" {
			e.log.Debug().Str("program", prog.ID).Str("contraindication", blocked).Msg("program excluded")
			continue
		}
		candidates = append(candidates, c)
	}

	out := make([]ScoredProgram, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, e.score(store, c, n))
	}

	// Stable: equal scores keep knowledge base order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > e.limit {
		out = out[:e.limit]
	}
	return out
}

// contraindicated returns the first concept that rules the program out.
func contraindicated(store *kb.Store, programID string, n profile.Normalized) string {
	for _, id := range store.ContraindicatedFor(programID) {
		if n.Active.Has(id) || n.Archetypes.Has(id) {
			return id
		}
	}
	return ""
}

func (e *Engine) score(store *kb.Store, c candidate, n profile.Normalized) ScoredProgram {
	id := c.program.ID
	methods := names(store, store.Methods(id))

	sc := scoring.Candidate{
		Methods:       methods,
		MovementLevel: store.MovementLevel(id),
		TargetGroups:  store.TargetGroups(id),
		MatchCount:    len(c.archetypes) + len(c.recommends),
		DirectLink:    directLink(store, c.archetypes, n.Profile),
	}
	breakdown := scoring.Evaluate(sc, n.Profile, e.rules)

	return ScoredProgram{
		ID:           id,
		Name:         label.DisplayLabel(c.program),
		Duration:     store.Duration(id),
		SessionCount: store.SessionCount(id),
		Methods:      methods,
		Specialists:  names(store, store.Specialists(id)),
		Archetypes:   names(store, c.archetypes),
		Score:        breakdown.Total,
		Breakdown:    breakdown,
	}
}

// directLink reports whether one matched archetype declares exactly the
// patient's severity and age group. The first hit settles it.
func directLink(store *kb.Store, archetypes []string, p profile.Profile) bool {
	for _, id := range archetypes {
		sev, age := store.Severity(id), store.AgeGroup(id)
		if sev != "" && age != "" && label.Equal(sev, p.Severity) && label.Equal(age, p.AgeGroup) {
			return true
		}
	}
	return false
}

func names(store *kb.Store, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := store.Concept(id); ok {
			out = append(out, label.DisplayLabel(c))
		}
	}
	return out
}
