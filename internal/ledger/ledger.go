// Package ledger defines the append-only provenance ledger. Every derived
// artifact in the pipeline has exactly one record linking it to the artifact
// it was derived from and to its originating raw alert; an artifact is
// considered committed only once its record is in the ledger.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Kind identifies which tier produced an artifact.
type Kind string

const (
	KindRaw        Kind = "raw"
	KindCleaned    Kind = "cleaned"
	KindEnriched   Kind = "enriched"
	KindAssessment Kind = "assessment"
	KindDecision   Kind = "decision"
)

// ErrNotFound is returned when a requested artifact has no ledger record.
var ErrNotFound = errors.New("ledger: artifact not found")

// Record is one append-only provenance tuple. SourceID names the immediate
// upstream artifact; RootID names the originating raw alert candidate so a
// full chain can be resolved without walking.
type Record struct {
	ArtifactID string    `json:"artifact_id"`
	Kind       Kind      `json:"kind"`
	SourceID   string    `json:"source_id"`
	RootID     string    `json:"root_id"`
	Stage      string    `json:"stage"`
	Shard      int       `json:"shard"`
	Seq        uint64    `json:"seq"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ledger is the persistence contract for provenance records. Appends are
// idempotent on artifact ID so that replaying a shard after a crash
// reconciles instead of double-recording. Implementations must assign a
// monotonically increasing sequence number per shard and must never mutate
// or delete a committed record.
type Ledger interface {
	// Append commits a record, assigning rec.Seq. If the artifact is already
	// present the existing sequence number is returned and nothing is written.
	Append(ctx context.Context, rec *Record) (seq uint64, err error)

	// Has reports whether an artifact ID is committed.
	Has(ctx context.Context, artifactID string) (bool, error)

	// Latest returns the most recent record of the given kind derived from
	// the given raw alert, if any.
	Latest(ctx context.Context, rootID string, kind Kind) (*Record, bool, error)

	// Chain returns the provenance chain for an artifact, ordered from the
	// raw alert down to the artifact itself. ErrNotFound if unknown.
	Chain(ctx context.Context, artifactID string) ([]Record, error)
}
