// Package memindex provides an in-memory implementation of dedup.Index.
// Suitable for dev/testing; the ledger reconciliation in dedup.Admitter is
// what makes a lost in-memory index safe.
package memindex

import (
	"context"
	"sync"
)

// Index holds admitted candidate identifiers per partition. Each partition
// has its own lock so workers on disjoint partitions never contend.
type Index struct {
	parts []*partition
}

type partition struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New initializes an Index with the given number of partitions.
func New(partitions int) *Index {
	if partitions <= 0 {
		partitions = 1
	}
	parts := make([]*partition, partitions)
	for i := range parts {
		parts[i] = &partition{ids: make(map[string]struct{})}
	}
	return &Index{parts: parts}
}

// Contains reports whether the candidate was previously added.
func (x *Index) Contains(_ context.Context, part int, candidateID string) (bool, error) {
	p := x.parts[part%len(x.parts)]
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ids[candidateID]
	return ok, nil
}

// Add records the candidate as admitted.
func (x *Index) Add(_ context.Context, part int, candidateID string) error {
	p := x.parts[part%len(x.parts)]
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[candidateID] = struct{}{}
	return nil
}
