package kb

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Options carries the settings needed by the network sources.
type Options struct {
	DBMaxConns int32
	Neo4j      Neo4jAuth
	Logger     zerolog.Logger
}

// Load builds a store from location. postgres:// and postgresql:// URLs
// read the relational tables, neo4j:// and bolt:// URLs (and their +s
// variants) read a graph database, anything else is a document file path.
func Load(ctx context.Context, location string, opts Options) (*Store, error) {
	location = strings.TrimSpace(location)
	log := opts.Logger.With().Str("component", "kb").Logger()

	var (
		store *Store
		err   error
	)
	switch scheme(location) {
	case "postgres", "postgresql":
		store, err = LoadPostgres(ctx, location, opts.DBMaxConns, log)
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
		store, err = LoadNeo4j(ctx, location, opts.Neo4j, log)
	default:
		store, err = LoadFile(location, log)
	}
	if err != nil {
		return nil, err
	}

	stats := store.Stats()
	log.Info().
		Str("source", store.Source()).
		Int("programs", stats[KindProgram]).
		Int("archetypes", stats[KindArchetype]).
		Int("methods", stats[KindMethod]).
		Int("skipped", len(store.notices)).
		Msg("knowledge base loaded")
	return store, nil
}

func scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(location[:i])
}

// redact hides the password of a connection URL for logs and errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "postgres://<invalid url>"
	}
	return u.Redacted()
}
