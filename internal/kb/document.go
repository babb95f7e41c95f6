package kb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Document is the serialised form of a knowledge graph. YAML and JSON
// files decode into it, and the database sources build one from rows.
type Document struct {
	Concepts  []ConceptEntry  `yaml:"concepts" json:"concepts"`
	Relations []RelationEntry `yaml:"relations" json:"relations"`
}

// ConceptEntry is one concept with optional inline relations keyed by
// predicate name.
type ConceptEntry struct {
	ID         string               `yaml:"id" json:"id"`
	Kind       string               `yaml:"kind" json:"kind"`
	Label      string               `yaml:"label" json:"label"`
	Annotation string               `yaml:"comment" json:"comment"`
	Relations  map[string]ValueList `yaml:"relations" json:"relations"`

	order []string
}

// RelationEntry is a standalone triple.
type RelationEntry struct {
	Subject   string `yaml:"subject" json:"subject"`
	Predicate string `yaml:"predicate" json:"predicate"`
	Object    string `yaml:"object" json:"object"`
}

// ValueList accepts either a single scalar or a sequence of scalars.
type ValueList []string

func (v *ValueList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = ValueList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(ValueList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: relation values must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*v = out
		return nil
	default:
		return fmt.Errorf("line %d: relation value must be a scalar or a list", node.Line)
	}
}

func (v *ValueList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case []any:
		out := make(ValueList, 0, len(t))
		for _, item := range t {
			s, ok := jsonScalar(item)
			if !ok {
				return fmt.Errorf("relation values must be scalars, got %T", item)
			}
			out = append(out, s)
		}
		*v = out
	default:
		s, ok := jsonScalar(t)
		if !ok {
			return fmt.Errorf("relation value must be a scalar or a list, got %T", t)
		}
		*v = ValueList{s}
	}
	return nil
}

func jsonScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// UnmarshalYAML keeps inline relations in file order so relation order in
// the store is deterministic.
func (c *ConceptEntry) UnmarshalYAML(node *yaml.Node) error {
	type plain ConceptEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = ConceptEntry(p)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "relations" {
			continue
		}
		rels := node.Content[i+1]
		for j := 0; j+1 < len(rels.Content); j += 2 {
			c.order = append(c.order, rels.Content[j].Value)
		}
	}
	return nil
}

// DecodeDocument parses a YAML graph document. JSON input is accepted
// as long as it is valid YAML; use DecodeJSONDocument for arbitrary JSON.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyGraph
		}
		return nil, fmt.Errorf("decode yaml document: %w", err)
	}
	return &doc, nil
}

// DecodeJSONDocument parses a JSON graph document.
func DecodeJSONDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyGraph
		}
		return nil, fmt.Errorf("decode json document: %w", err)
	}
	return &doc, nil
}

// Build turns the document into a Store.
func (d *Document) Build(source string, log zerolog.Logger) (*Store, error) {
	b := NewBuilder(source, log)
	for _, c := range d.Concepts {
		b.AddConcept(c.ID, c.Kind, c.Label, c.Annotation)
		for _, pred := range c.predicateOrder() {
			for _, obj := range c.Relations[pred] {
				b.AddRelation(c.ID, pred, obj)
			}
		}
	}
	for _, r := range d.Relations {
		b.AddRelation(r.Subject, r.Predicate, r.Object)
	}
	return b.Build()
}

func (c *ConceptEntry) predicateOrder() []string {
	if len(c.order) == len(c.Relations) {
		return c.order
	}
	// Entries assembled in code carry no order; fall back to the canonical
	// predicate order, then anything unrecognised.
	out := make([]string, 0, len(c.Relations))
	seen := make(map[string]bool, len(c.Relations))
	for _, p := range predicateOrder {
		if _, ok := c.Relations[string(p)]; ok {
			out = append(out, string(p))
			seen[string(p)] = true
		}
	}
	var rest []string
	for name := range c.Relations {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// LoadFile reads a graph document from disk. Files ending in .json are
// decoded as JSON, everything else as YAML.
func LoadFile(path string, log zerolog.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	decode := DecodeDocument
	if strings.EqualFold(filepath.Ext(path), ".json") {
		decode = DecodeJSONDocument
	}
	doc, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return doc.Build(path, log)
}
