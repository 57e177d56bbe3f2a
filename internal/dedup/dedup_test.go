package dedup

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/shukpa/astrophysics-data-engineering/internal/dedup/memindex"
	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
	"github.com/shukpa/astrophysics-data-engineering/internal/ledger/memledger"
)

func TestAdmit_FirstSeenThenDuplicate(t *testing.T) {
	t.Parallel()

	a := NewAdmitter(memindex.New(4), memledger.New(), 4)
	ctx := context.Background()

	out, err := a.Admit(ctx, "2591295721615015012", 0)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if out != FirstSeen {
		t.Errorf("first admit = %q, want %q", out, FirstSeen)
	}

	out, err = a.Admit(ctx, "2591295721615015012", 0)
	if err != nil {
		t.Fatalf("re-admit: %v", err)
	}
	if out != Duplicate {
		t.Errorf("second admit = %q, want %q", out, Duplicate)
	}
}

func TestAdmit_DistinctCandidates(t *testing.T) {
	t.Parallel()

	a := NewAdmitter(memindex.New(4), memledger.New(), 4)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		out, err := a.Admit(ctx, "cand-"+strconv.Itoa(i), 0)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if out != FirstSeen {
			t.Errorf("admit %d = %q, want %q", i, out, FirstSeen)
		}
	}
}

func TestAdmit_CommitsRawArtifact(t *testing.T) {
	t.Parallel()

	// A first sighting must leave a committed raw record behind it, so a
	// crash after admission can never strand the candidate in limbo.
	led := memledger.New()
	a := NewAdmitter(memindex.New(4), led, 4)
	ctx := context.Background()

	if _, err := a.Admit(ctx, "cand-9", 2); err != nil {
		t.Fatalf("admit: %v", err)
	}

	rec, ok, err := led.Latest(ctx, "cand-9", ledger.KindRaw)
	if err != nil || !ok {
		t.Fatalf("raw record missing after admission: ok=%v err=%v", ok, err)
	}
	if rec.Stage != Stage {
		t.Errorf("raw record stage = %q, want %q", rec.Stage, Stage)
	}
	if rec.Shard != 2 {
		t.Errorf("raw record shard = %d, want 2", rec.Shard)
	}
}

func TestAdmit_ReconcilesAgainstLedger(t *testing.T) {
	t.Parallel()

	// The ledger knows the candidate but a fresh index does not, as after a
	// restart with an in-memory index. Admission must refuse and heal.
	led := memledger.New()
	ctx := context.Background()
	if _, err := led.Append(ctx, &ledger.Record{
		ArtifactID: "crash-cand",
		Kind:       ledger.KindRaw,
		RootID:     "crash-cand",
		Stage:      Stage,
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	idx := memindex.New(4)
	a := NewAdmitter(idx, led, 4)

	out, err := a.Admit(ctx, "crash-cand", 0)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if out != Duplicate {
		t.Errorf("re-delivered candidate = %q, want %q", out, Duplicate)
	}

	// Heal path: the index now answers without the ledger.
	seen, err := idx.Contains(ctx, a.Partition("crash-cand"), "crash-cand")
	if err != nil || !seen {
		t.Errorf("index healed = %v, %v, want true", seen, err)
	}
}

func TestAdmit_StaleIndexEntryDoesNotLoseAlert(t *testing.T) {
	t.Parallel()

	// The inverse crash: the index entry was persisted but the raw artifact
	// never committed. On re-delivery the candidate is still unseen and must
	// be admitted, not dropped as a duplicate.
	ctx := context.Background()
	idx := memindex.New(4)
	led := memledger.New()
	a := NewAdmitter(idx, led, 4)

	if err := idx.Add(ctx, a.Partition("cand-1"), "cand-1"); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	out, err := a.Admit(ctx, "cand-1", 0)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if out != FirstSeen {
		t.Errorf("admit after interrupted admission = %q, want %q", out, FirstSeen)
	}

	committed, err := led.Has(ctx, "cand-1")
	if err != nil || !committed {
		t.Errorf("raw artifact committed = %v, %v, want true", committed, err)
	}
}

func TestPartition_StableAndInRange(t *testing.T) {
	t.Parallel()

	a := NewAdmitter(memindex.New(8), memledger.New(), 8)
	for i := 0; i < 200; i++ {
		id := "cand-" + strconv.Itoa(i)
		p1 := a.Partition(id)
		p2 := a.Partition(id)
		if p1 != p2 {
			t.Fatalf("partition for %q unstable: %d then %d", id, p1, p2)
		}
		if p1 < 0 || p1 >= 8 {
			t.Fatalf("partition %d out of range", p1)
		}
	}
}

type failingIndex struct {
	containsErr error
	addErr      error
}

func (f *failingIndex) Contains(context.Context, int, string) (bool, error) {
	return false, f.containsErr
}

func (f *failingIndex) Add(context.Context, int, string) error {
	return f.addErr
}

func TestAdmit_IndexErrorIsFatal(t *testing.T) {
	t.Parallel()

	led := memledger.New()
	ctx := context.Background()
	if _, err := led.Append(ctx, &ledger.Record{
		ArtifactID: "cand",
		Kind:       ledger.KindRaw,
		RootID:     "cand",
		Stage:      Stage,
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	boom := errors.New("index down")
	a := NewAdmitter(&failingIndex{containsErr: boom}, led, 4)

	_, err := a.Admit(ctx, "cand", 0)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestAdmit_AddErrorIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("index write failed")
	a := NewAdmitter(&failingIndex{addErr: boom}, memledger.New(), 4)

	_, err := a.Admit(context.Background(), "cand", 0)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
