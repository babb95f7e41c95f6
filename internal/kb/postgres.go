package kb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	conceptsQuery = `SELECT id, kind, COALESCE(label, ''), COALESCE(annotation, '')
FROM kb_concepts
ORDER BY position, id`

	relationsQuery = `SELECT subject, predicate, object
FROM kb_relations
ORDER BY subject, position, predicate, object`
)

// rowQuerier is the subset of pgxpool.Pool used by the Postgres source.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres builds a store from the kb_concepts and kb_relations tables.
func LoadPostgres(ctx context.Context, url string, maxConns int32, log zerolog.Logger) (*Store, error) {
	pool, err := connectPostgres(ctx, url, maxConns)
	if err != nil {
		return nil, &LoadError{Source: redact(url), Err: err}
	}
	defer pool.Close()

	doc, err := fetchPostgres(ctx, pool)
	if err != nil {
		return nil, &LoadError{Source: redact(url), Err: err}
	}
	return doc.Build(redact(url), log)
}

func connectPostgres(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// fetchPostgres reads both tables concurrently.
func fetchPostgres(ctx context.Context, q rowQuerier) (*Document, error) {
	doc := &Document{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := q.Query(gctx, conceptsQuery)
		if err != nil {
			return fmt.Errorf("query concepts: %w", err)
		}
		concepts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConceptEntry, error) {
			var c ConceptEntry
			err := row.Scan(&c.ID, &c.Kind, &c.Label, &c.Annotation)
			return c, err
		})
		if err != nil {
			return fmt.Errorf("scan concepts: %w", err)
		}
		doc.Concepts = concepts
		return nil
	})

	g.Go(func() error {
		rows, err := q.Query(gctx, relationsQuery)
		if err != nil {
			return fmt.Errorf("query relations: %w", err)
		}
		relations, err := pgx.CollectRows(rows, pgx.RowToStructByPos[RelationEntry])
		if err != nil {
			return fmt.Errorf("scan relations: %w", err)
		}
		doc.Relations = relations
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return doc, nil
}
