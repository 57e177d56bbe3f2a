// Package dedup decides first-seen vs. duplicate for candidate identifiers.
// The ledger is authoritative: a candidate is a duplicate exactly when its
// raw artifact is already committed, and a first sighting commits the raw
// artifact before anything else, so re-delivery after a crash is safe under
// at-least-once semantics. The Index is a persisted set partitioned by a
// stable hash; it is healed from the ledger in both directions and a stale
// entry left by an interrupted admission never costs an alert.
package dedup

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
)

// Stage is the provenance stage recorded on raw admissions.
const Stage = "intake"

// Outcome is the result of an admission check.
type Outcome string

const (
	FirstSeen Outcome = "first_seen"
	Duplicate Outcome = "duplicate"
)

// Index is the persisted set of previously admitted candidate identifiers.
type Index interface {
	Contains(ctx context.Context, partition int, candidateID string) (bool, error)
	Add(ctx context.Context, partition int, candidateID string) error
}

// Admitter performs partitioned, ledger-reconciled admission.
type Admitter struct {
	index      Index
	ledger     ledger.Ledger
	partitions int
}

// NewAdmitter creates an Admitter over the given index and ledger.
func NewAdmitter(index Index, led ledger.Ledger, partitions int) *Admitter {
	if partitions <= 0 {
		partitions = 1
	}
	return &Admitter{index: index, ledger: led, partitions: partitions}
}

// Partition returns the stable partition for a candidate identifier.
func (a *Admitter) Partition(candidateID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(candidateID))
	return int(h.Sum32() % uint32(a.partitions))
}

// Admit returns FirstSeen exactly once per candidate identifier and Duplicate
// thereafter. FirstSeen commits the raw provenance record under the given
// shard before the index entry, so the persisted index can never claim a
// candidate the ledger has not durably seen. Errors from the index or ledger
// are fatal for the caller's shard: admission must never be guessed.
func (a *Admitter) Admit(ctx context.Context, candidateID string, shard int) (Outcome, error) {
	p := a.Partition(candidateID)

	committed, err := a.ledger.Has(ctx, candidateID)
	if err != nil {
		return "", fmt.Errorf("dedup ledger lookup: %w", err)
	}
	if committed {
		// The index may trail the ledger after a crash. Heal it so the
		// partition answers for this candidate again.
		seen, err := a.index.Contains(ctx, p, candidateID)
		if err != nil {
			return "", fmt.Errorf("dedup index lookup: %w", err)
		}
		if !seen {
			if err := a.index.Add(ctx, p, candidateID); err != nil {
				return "", fmt.Errorf("dedup index heal: %w", err)
			}
		}
		return Duplicate, nil
	}

	// Not committed: even if the index has a leftover entry from an
	// admission that died mid-flight, this is the candidate's first real
	// sighting. Commit the raw artifact, then record the admission.
	if _, err := a.ledger.Append(ctx, &ledger.Record{
		ArtifactID: candidateID,
		Kind:       ledger.KindRaw,
		RootID:     candidateID,
		Stage:      Stage,
		Shard:      shard,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("dedup raw commit: %w", err)
	}
	if err := a.index.Add(ctx, p, candidateID); err != nil {
		return "", fmt.Errorf("dedup index add: %w", err)
	}
	return FirstSeen, nil
}
