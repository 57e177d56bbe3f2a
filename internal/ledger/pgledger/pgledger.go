// Package pgledger provides a PostgreSQL implementation of ledger.Ledger.
package pgledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
)

var tracer = otel.Tracer("github.com/shukpa/astrophysics-data-engineering/internal/ledger/pgledger")

//go:embed schema.sql
var schema string

// Ledger persists provenance records in PostgreSQL. Sequence numbers are
// assigned from a per-shard cursor row inside the append transaction, which
// gives each shard a total order without cross-shard contention.
type Ledger struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Ledger.
func New(ctx context.Context, pool *pgxpool.Pool) (*Ledger, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

const recordColumns = `artifact_id, kind, source_id, root_id, stage, shard, seq, created_at`

// Append commits a record inside a transaction, assigning the next per-shard
// sequence number. Idempotent on artifact ID: re-appending a committed
// artifact returns its existing sequence number.
func (l *Ledger) Append(ctx context.Context, rec *ledger.Record) (uint64, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Append", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
		attribute.String("ledger.kind", string(rec.Kind)),
	))
	defer span.End()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	var existing uint64
	err = tx.QueryRow(ctx,
		`SELECT seq FROM provenance_records WHERE artifact_id = $1`,
		rec.ArtifactID,
	).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, pgx.ErrNoRows):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("lookup artifact: %w", err)
	}

	var seq uint64
	err = tx.QueryRow(ctx,
		`INSERT INTO shard_cursors (shard, seq) VALUES ($1, 1)
		 ON CONFLICT (shard) DO UPDATE SET seq = shard_cursors.seq + 1
		 RETURNING seq`,
		rec.Shard,
	).Scan(&seq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("advance shard cursor: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO provenance_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ArtifactID, string(rec.Kind), rec.SourceID, rec.RootID, rec.Stage,
		rec.Shard, seq, createdAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("commit: %w", err)
	}
	return seq, nil
}

// Has reports whether an artifact ID is committed.
func (l *Ledger) Has(ctx context.Context, artifactID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Has", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var one int
	err := l.pool.QueryRow(ctx,
		`SELECT 1 FROM provenance_records WHERE artifact_id = $1`,
		artifactID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("lookup artifact: %w", err)
	}
	return true, nil
}

// Latest returns the most recent record of the given kind for a root raw alert.
func (l *Ledger) Latest(ctx context.Context, rootID string, kind ledger.Kind) (*ledger.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Latest", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := l.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM provenance_records
		 WHERE root_id = $1 AND kind = $2
		 ORDER BY seq DESC LIMIT 1`,
		rootID, string(kind),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return rec, true, nil
}

// Chain returns the provenance chain for an artifact in raw-first order.
func (l *Ledger) Chain(ctx context.Context, artifactID string) ([]ledger.Record, error) {
	ctx, span := tracer.Start(ctx, "pgledger.Chain", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := l.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM provenance_records WHERE artifact_id = $1`,
		artifactID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows, err := l.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM provenance_records
		 WHERE root_id = $1 AND seq <= $2 ORDER BY seq`,
		rec.RootID, rec.Seq,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query chain: %w", err)
	}
	defer rows.Close()

	var chain []ledger.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain: %w", err)
	}
	return chain, nil
}

func scanRecord(row pgx.Row) (*ledger.Record, error) {
	var (
		r    ledger.Record
		kind string
	)
	err := row.Scan(&r.ArtifactID, &kind, &r.SourceID, &r.RootID, &r.Stage,
		&r.Shard, &r.Seq, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	r.Kind = ledger.Kind(kind)
	return &r, nil
}
