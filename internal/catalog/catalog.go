// Package catalog provides read-only projections of the knowledge base for
// listing and browsing programs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/label"
)

// ErrNotFound is returned for an unknown program identifier.
var ErrNotFound = errors.New("program not found")

type ProgramSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Duration     string   `json:"duration,omitempty"`
	SessionCount string   `json:"session_count,omitempty"`
	Methods      []string `json:"methods"`
}

type MethodDetail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Effectiveness is nil when the method declares no usable score.
	Effectiveness *float64 `json:"effectiveness,omitempty"`
}

type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProgramDetail struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Label              string         `json:"label,omitempty"`
	Duration           string         `json:"duration,omitempty"`
	SessionCount       string         `json:"session_count,omitempty"`
	MovementLevel      string         `json:"movement_level,omitempty"`
	TargetGroups       []string       `json:"target_groups"`
	Methods            []MethodDetail `json:"methods"`
	Specialists        []NamedRef     `json:"specialists"`
	SuitableFor        []NamedRef     `json:"suitable_for"`
	RecommendedFor     []NamedRef     `json:"recommended_for"`
	ContraindicatedFor []NamedRef     `json:"contraindicated_for"`
}

type ConceptSummary struct {
	ID   string  `json:"id"`
	Kind kb.Kind `json:"kind"`
	Name string  `json:"name"`
}

// Catalog reads from a store source and never modifies it.
type Catalog struct {
	source kb.Source
}

func New(source kb.Source) *Catalog {
	return &Catalog{source: source}
}

func (c *Catalog) store(ctx context.Context) (*kb.Store, error) {
	s, err := c.source.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kb.ErrUnavailable, err)
	}
	return s, nil
}

// ListPrograms returns every program in knowledge base order.
func (c *Catalog) ListPrograms(ctx context.Context) ([]ProgramSummary, error) {
	s, err := c.store(ctx)
	if err != nil {
		return nil, err
	}
	programs := s.ConceptsOfKind(kb.KindProgram)
	out := make([]ProgramSummary, 0, len(programs))
	for _, p := range programs {
		out = append(out, ProgramSummary{
			ID:           p.ID,
			Name:         label.DisplayLabel(p),
			Duration:     s.Duration(p.ID),
			SessionCount: s.SessionCount(p.ID),
			Methods:      refNames(refs(s, s.Methods(p.ID))),
		})
	}
	return out, nil
}

// ProgramDetail returns the full record of one program.
func (c *Catalog) ProgramDetail(ctx context.Context, id string) (*ProgramDetail, error) {
	s, err := c.store(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := s.Concept(id)
	if !ok || p.Kind != kb.KindProgram {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	methodIDs := s.Methods(id)
	methods := make([]MethodDetail, 0, len(methodIDs))
	for _, mid := range methodIDs {
		m, _ := s.Concept(mid)
		methods = append(methods, MethodDetail{
			ID:            mid,
			Name:          label.DisplayLabel(m),
			Effectiveness: parseScore(s.Effectiveness(mid)),
		})
	}

	return &ProgramDetail{
		ID:                 id,
		Name:               label.DisplayLabel(p),
		Label:              p.Label,
		Duration:           s.Duration(id),
		SessionCount:       s.SessionCount(id),
		MovementLevel:      s.MovementLevel(id),
		TargetGroups:       append([]string{}, s.TargetGroups(id)...),
		Methods:            methods,
		Specialists:        refs(s, s.Specialists(id)),
		SuitableFor:        refs(s, s.Archetypes(id)),
		RecommendedFor:     refs(s, s.RecommendedFor(id)),
		ContraindicatedFor: refs(s, s.ContraindicatedFor(id)),
	}, nil
}

// ListConcepts returns every concept of one kind, for pickers.
func (c *Catalog) ListConcepts(ctx context.Context, kind kb.Kind) ([]ConceptSummary, error) {
	s, err := c.store(ctx)
	if err != nil {
		return nil, err
	}
	concepts := s.ConceptsOfKind(kind)
	out := make([]ConceptSummary, 0, len(concepts))
	for _, cpt := range concepts {
		out = append(out, ConceptSummary{ID: cpt.ID, Kind: cpt.Kind, Name: label.DisplayLabel(cpt)})
	}
	return out, nil
}

func refs(s *kb.Store, ids []string) []NamedRef {
	out := make([]NamedRef, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.Concept(id); ok {
			out = append(out, NamedRef{ID: id, Name: label.DisplayLabel(c)})
		}
	}
	return out
}

func refNames(rs []NamedRef) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

// parseScore accepts "0.85", "85" or "85%". Anything else is dropped.
func parseScore(raw string) *float64 {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}
