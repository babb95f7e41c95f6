package kb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
)

// Neo4jAuth holds the credentials for a Neo4j source.
type Neo4jAuth struct {
	User     string
	Password string
	Database string
}

const (
	neo4jConceptsQuery = `MATCH (c:Concept)
RETURN c.id AS id, c.kind AS kind, coalesce(c.label, '') AS label,
       coalesce(c.comment, '') AS comment, properties(c) AS props
ORDER BY c.id`

	neo4jRelationsQuery = `MATCH (s:Concept)-[r]->(o:Concept)
RETURN s.id AS subject, type(r) AS predicate, o.id AS object
ORDER BY subject, coalesce(r.position, 0), predicate, object`
)

// LoadNeo4j builds a store from (:Concept) nodes and the typed
// relationships between them. Scalar and literal predicates are read from
// node properties named after the predicate.
func LoadNeo4j(ctx context.Context, uri string, auth Neo4jAuth, log zerolog.Logger) (*Store, error) {
	user := auth.User
	if user == "" {
		user = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, auth.Password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, &LoadError{Source: uri, Err: fmt.Errorf("init driver: %w", err)}
	}
	defer driver.Close(context.WithoutCancel(ctx))

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, &LoadError{Source: uri, Err: fmt.Errorf("verify connectivity: %w", err)}
	}

	var opts []neo4j.ExecuteQueryConfigurationOption
	if auth.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(auth.Database))
	}
	opts = append(opts, neo4j.ExecuteQueryWithReadersRouting())

	concepts, err := neo4j.ExecuteQuery(ctx, driver, neo4jConceptsQuery, nil, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, &LoadError{Source: uri, Err: fmt.Errorf("query concepts: %w", err)}
	}
	relations, err := neo4j.ExecuteQuery(ctx, driver, neo4jRelationsQuery, nil, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, &LoadError{Source: uri, Err: fmt.Errorf("query relations: %w", err)}
	}

	doc := neo4jDocument(recordMaps(concepts.Records), recordMaps(relations.Records))
	return doc.Build(uri, log)
}

func recordMaps(records []*neo4j.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, r.AsMap())
	}
	return out
}

// neo4jDocument converts query rows into a Document. It is separate from
// LoadNeo4j so the mapping can be tested without a server.
func neo4jDocument(conceptRows, relationRows []map[string]any) *Document {
	doc := &Document{}
	for _, row := range conceptRows {
		c := ConceptEntry{
			ID:         stringValue(row["id"]),
			Kind:       stringValue(row["kind"]),
			Label:      stringValue(row["label"]),
			Annotation: stringValue(row["comment"]),
		}
		props, _ := row["props"].(map[string]any)
		names := make([]string, 0, len(props))
		for name := range props {
			if p, ok := ParsePredicate(name); ok && predicates[p].values != conceptValued {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range listValue(props[name]) {
				doc.Relations = append(doc.Relations, RelationEntry{Subject: c.ID, Predicate: name, Object: v})
			}
		}
		doc.Concepts = append(doc.Concepts, c)
	}
	for _, row := range relationRows {
		doc.Relations = append(doc.Relations, RelationEntry{
			Subject:   stringValue(row["subject"]),
			Predicate: stringValue(row["predicate"]),
			Object:    stringValue(row["object"]),
		})
	}
	return doc
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func listValue(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := stringValue(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringValue(item))
	}
	return out
}
