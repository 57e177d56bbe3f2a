// Package pgindex provides a PostgreSQL implementation of dedup.Index.
package pgindex

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var tracer = otel.Tracer("github.com/shukpa/astrophysics-data-engineering/internal/dedup/pgindex")

//go:embed schema.sql
var schema string

// Index persists admitted candidate identifiers in PostgreSQL.
type Index struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Index.
func New(ctx context.Context, pool *pgxpool.Pool) (*Index, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Index{pool: pool}, nil
}

// Contains reports whether the candidate was previously added.
func (x *Index) Contains(ctx context.Context, _ int, candidateID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgindex.Contains", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var one int
	err := x.pool.QueryRow(ctx,
		`SELECT 1 FROM admitted_candidates WHERE candidate_id = $1`,
		candidateID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("lookup candidate: %w", err)
	}
	return true, nil
}

// Add records the candidate as admitted. Idempotent.
func (x *Index) Add(ctx context.Context, part int, candidateID string) error {
	ctx, span := tracer.Start(ctx, "pgindex.Add", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := x.pool.Exec(ctx,
		`INSERT INTO admitted_candidates (candidate_id, partition) VALUES ($1, $2)
		 ON CONFLICT (candidate_id) DO NOTHING`,
		candidateID, part,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}
