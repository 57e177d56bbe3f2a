// Package memledger provides an in-memory implementation of ledger.Ledger.
// Suitable for dev/testing; state does not survive restarts.
package memledger

import (
	"context"
	"sync"
	"time"

	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
)

// Ledger holds provenance records in memory.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*ledger.Record   // artifact ID -> record
	byRoot  map[string][]*ledger.Record // root ID -> records, append order
	seqs    map[int]uint64              // shard -> last assigned seq
}

// New initializes an empty in-memory Ledger.
func New() *Ledger {
	return &Ledger{
		records: make(map[string]*ledger.Record),
		byRoot:  make(map[string][]*ledger.Record),
		seqs:    make(map[int]uint64),
	}
}

// Append commits a record, assigning the next per-shard sequence number.
// Idempotent on artifact ID.
func (l *Ledger) Append(_ context.Context, rec *ledger.Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[rec.ArtifactID]; ok {
		return existing.Seq, nil
	}

	l.seqs[rec.Shard]++
	cp := *rec
	cp.Seq = l.seqs[rec.Shard]
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	l.records[cp.ArtifactID] = &cp
	l.byRoot[cp.RootID] = append(l.byRoot[cp.RootID], &cp)
	return cp.Seq, nil
}

// Has reports whether an artifact ID is committed.
func (l *Ledger) Has(_ context.Context, artifactID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[artifactID]
	return ok, nil
}

// Latest returns the most recently appended record of the given kind for a
// root raw alert.
func (l *Ledger) Latest(_ context.Context, rootID string, kind ledger.Kind) (*ledger.Record, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := l.byRoot[rootID]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Kind == kind {
			cp := *recs[i]
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// Chain walks SourceID links from the artifact back to its raw alert and
// returns the records in raw-first order.
func (l *Ledger) Chain(_ context.Context, artifactID string) ([]ledger.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var chain []ledger.Record
	id := artifactID
	for id != "" {
		rec, ok := l.records[id]
		if !ok {
			if len(chain) == 0 {
				return nil, ledger.ErrNotFound
			}
			break
		}
		chain = append([]ledger.Record{*rec}, chain...)
		if rec.SourceID == rec.ArtifactID {
			break
		}
		id = rec.SourceID
	}
	return chain, nil
}
