// Package pipeline wires the refinement stages into a partitioned worker
// pool. Alerts are sharded by object so every detection of one object is
// processed by a single worker in arrival order, and every stage transition
// is committed to the provenance ledger before the next stage runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/clean"
	"github.com/shukpa/astrophysics-data-engineering/internal/dedup"
	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/escalate"
	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
	"github.com/shukpa/astrophysics-data-engineering/internal/score"
	"github.com/shukpa/astrophysics-data-engineering/internal/specialist"
)

// Outcome reports what happened to a submitted alert at the intake boundary.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeDuplicate   Outcome = "duplicate"
)

// SubmitResult is the per-alert intake outcome.
type SubmitResult struct {
	CandidateID string  `json:"candid"`
	Outcome     Outcome `json:"outcome"`
	Reason      string  `json:"reason,omitempty"`
}

// ErrShardHalted is returned when an alert maps to a shard that stopped
// after an unrecoverable ledger or index failure.
var ErrShardHalted = errors.New("pipeline shard halted")

// ErrNotRunning is returned when alerts are submitted before Start or
// after Stop.
var ErrNotRunning = errors.New("pipeline not running")

// Config sizes the worker pool.
type Config struct {
	// Shards is the number of partitions, each served by one worker.
	Shards int
	// QueueDepth is the per-shard buffer. Submit blocks once it fills.
	QueueDepth int
}

// DefaultConfig matches a single-node deployment.
func DefaultConfig() Config {
	return Config{Shards: 4, QueueDepth: 256}
}

// Stats is a point-in-time snapshot of intake and routing counters,
// served by the stats endpoint.
type Stats struct {
	Accepted    uint64 `json:"accepted"`
	Quarantined uint64 `json:"quarantined"`
	Duplicates  uint64 `json:"duplicates"`
	Decisions   uint64 `json:"decisions"`
	Replays     uint64 `json:"replays_skipped"`
	Degraded    uint64 `json:"collaborator_degradations"`
	Halted      int    `json:"halted_shards"`
}

type shard struct {
	id     int
	ch     chan *alert.RawAlert
	halted atomic.Bool
}

// Pipeline is the partitioned refinement engine.
type Pipeline struct {
	cfg          Config
	admitter     *dedup.Admitter
	cleaner      *clean.Cleaner
	enricher     *enrich.Enricher
	scorer       *score.Scorer
	orchestrator *escalate.Orchestrator
	ledger       ledger.Ledger
	reviewer     specialist.Reviewer
	quarantine   alert.Quarantine
	logger       log.Logger
	metrics      *Metrics

	shards  []*shard
	wg      sync.WaitGroup
	baseCtx context.Context
	running atomic.Bool

	// intakeMu orders shard channel sends in Submit against the close in
	// Stop: Stop takes the write side before closing, so no send can land
	// on a closed channel.
	intakeMu sync.RWMutex

	accepted    atomic.Uint64
	quarantined atomic.Uint64
	duplicates  atomic.Uint64
	decisions   atomic.Uint64
	replays     atomic.Uint64
	degraded    atomic.Uint64
}

// New assembles a pipeline. The reviewer is optional; when nil the
// specialist consultation is skipped entirely.
func New(
	cfg Config,
	admitter *dedup.Admitter,
	cleaner *clean.Cleaner,
	enricher *enrich.Enricher,
	scorer *score.Scorer,
	orchestrator *escalate.Orchestrator,
	led ledger.Ledger,
	reviewer specialist.Reviewer,
	quarantine alert.Quarantine,
	logger log.Logger,
	metrics *Metrics,
) *Pipeline {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultConfig().Shards
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	p := &Pipeline{
		cfg:          cfg,
		admitter:     admitter,
		cleaner:      cleaner,
		enricher:     enricher,
		scorer:       scorer,
		orchestrator: orchestrator,
		ledger:       led,
		reviewer:     reviewer,
		quarantine:   quarantine,
		logger:       logger,
		metrics:      metrics,
	}
	p.shards = make([]*shard, cfg.Shards)
	for i := range p.shards {
		p.shards[i] = &shard{id: i, ch: make(chan *alert.RawAlert, cfg.QueueDepth)}
	}
	return p
}

// Start launches one worker per shard. Workers run until Stop.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.baseCtx = context.WithoutCancel(ctx)
	for _, s := range p.shards {
		p.wg.Add(1)
		go p.worker(s)
	}
	p.logger.Info(ctx, "pipeline started", "shards", p.cfg.Shards, "queue_depth", p.cfg.QueueDepth)
}

// Stop closes intake and drains in-flight work. The context bounds the
// drain; on expiry workers are abandoned mid-queue, which is safe because
// every committed transition is idempotent on replay.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.intakeMu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.intakeMu.Unlock()
		return nil
	}
	for _, s := range p.shards {
		close(s.ch)
	}
	p.intakeMu.Unlock()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline drain: %w", ctx.Err())
	}
}

// Submit validates and deduplicates one raw alert, then hands it to its
// shard. It blocks when the shard queue is full.
func (p *Pipeline) Submit(ctx context.Context, raw *alert.RawAlert) (*SubmitResult, error) {
	if !p.running.Load() {
		return nil, ErrNotRunning
	}
	if raw.IngestedAt.IsZero() {
		raw.IngestedAt = time.Now().UTC()
	}

	if rej := alert.Validate(raw); rej != nil {
		p.quarantine.Quarantine(ctx, raw, rej)
		p.quarantined.Add(1)
		p.metrics.IncSubmit(string(OutcomeQuarantined))
		return &SubmitResult{CandidateID: raw.CandidateID, Outcome: OutcomeQuarantined, Reason: rej.Reason}, nil
	}

	// Refuse a halted shard before admission: admission durably commits the
	// raw artifact and must not run for alerts that cannot be processed.
	s := p.shards[p.shardFor(raw.ObjectID)]
	if s.halted.Load() {
		return nil, fmt.Errorf("shard %d: %w", s.id, ErrShardHalted)
	}

	outcome, err := p.admitter.Admit(ctx, raw.CandidateID, s.id)
	if err != nil {
		return nil, fmt.Errorf("admit %s: %w", raw.CandidateID, err)
	}
	if outcome == dedup.Duplicate {
		p.duplicates.Add(1)
		p.metrics.IncSubmit(string(OutcomeDuplicate))
		p.logger.Info(ctx, "duplicate candidate dropped", "candid", raw.CandidateID, "object_id", raw.ObjectID)
		return &SubmitResult{CandidateID: raw.CandidateID, Outcome: OutcomeDuplicate}, nil
	}

	p.intakeMu.RLock()
	defer p.intakeMu.RUnlock()
	if !p.running.Load() {
		return nil, ErrNotRunning
	}
	select {
	case s.ch <- raw:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.metrics.SetQueueDepth(s.id, len(s.ch))
	p.accepted.Add(1)
	p.metrics.IncSubmit(string(OutcomeAccepted))
	return &SubmitResult{CandidateID: raw.CandidateID, Outcome: OutcomeAccepted}, nil
}

// Stats snapshots the pipeline counters.
func (p *Pipeline) Stats() Stats {
	halted := 0
	for _, s := range p.shards {
		if s.halted.Load() {
			halted++
		}
	}
	return Stats{
		Accepted:    p.accepted.Load(),
		Quarantined: p.quarantined.Load(),
		Duplicates:  p.duplicates.Load(),
		Decisions:   p.decisions.Load(),
		Replays:     p.replays.Load(),
		Degraded:    p.degraded.Load(),
		Halted:      halted,
	}
}

func (p *Pipeline) shardFor(objectID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(objectID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Pipeline) worker(s *shard) {
	defer p.wg.Done()
	for raw := range s.ch {
		p.metrics.SetQueueDepth(s.id, len(s.ch))
		if err := p.process(p.baseCtx, s, raw); err != nil {
			s.halted.Store(true)
			p.logger.Error(p.baseCtx, err, "shard halted on unrecoverable failure",
				"shard", s.id,
				"candid", raw.CandidateID,
			)
			return
		}
	}
}

// process runs one alert through the full stage chain. Any error returned
// here is a ledger failure: the shard cannot make durable progress and
// must halt rather than process out of order.
func (p *Pipeline) process(ctx context.Context, s *shard, raw *alert.RawAlert) error {
	// Replay safety: an alert whose decision is already committed has
	// completed the chain in a previous run. Skip without re-emitting.
	if _, ok, err := p.ledger.Latest(ctx, raw.CandidateID, ledger.KindDecision); err != nil {
		return fmt.Errorf("replay check %s: %w", raw.CandidateID, err)
	} else if ok {
		p.replays.Add(1)
		p.metrics.IncReplaySkipped()
		return nil
	}

	// Admission already committed the raw artifact; Append is idempotent,
	// so this re-commit only matters when the ledger was restored from a
	// point before this alert arrived.
	if err := p.commit(ctx, s, ledger.Record{
		ArtifactID: raw.CandidateID,
		Kind:       ledger.KindRaw,
		RootID:     raw.CandidateID,
		Stage:      dedup.Stage,
	}); err != nil {
		return err
	}

	start := time.Now()
	cleaned, cleanErr := p.cleaner.Clean(ctx, raw)
	p.metrics.ObserveStage(clean.Stage, time.Since(start))
	if err := p.commit(ctx, s, ledger.Record{
		ArtifactID: cleaned.ID,
		Kind:       ledger.KindCleaned,
		SourceID:   raw.CandidateID,
		RootID:     raw.CandidateID,
		Stage:      clean.Stage,
	}); err != nil {
		return err
	}
	if cleanErr != nil {
		if !errors.Is(cleanErr, clean.ErrIncompleteHistory) {
			return fmt.Errorf("clean %s: %w", raw.CandidateID, cleanErr)
		}
		d := p.orchestrator.EvaluateIncompleteHistory(raw.CandidateID, raw.ObjectID)
		return p.finish(ctx, s, d, &escalate.Event{Decision: d}, cleaned.ID)
	}

	start = time.Now()
	enriched := p.enricher.Enrich(ctx, cleaned)
	p.metrics.ObserveStage(enrich.Stage, time.Since(start))
	if enriched.Classification.Degraded {
		p.degraded.Add(1)
		p.metrics.IncDegraded("classifier")
	}
	for _, cr := range enriched.CrossMatches {
		if cr.Unavailable {
			p.degraded.Add(1)
			p.metrics.IncDegraded(cr.Catalog)
		}
	}
	if err := p.commit(ctx, s, ledger.Record{
		ArtifactID: enriched.ID,
		Kind:       ledger.KindEnriched,
		SourceID:   cleaned.ID,
		RootID:     raw.CandidateID,
		Stage:      enrich.Stage,
	}); err != nil {
		return err
	}

	start = time.Now()
	assessment := p.scorer.Score(ctx, enriched)
	p.metrics.ObserveStage(score.Stage, time.Since(start))
	if err := p.commit(ctx, s, ledger.Record{
		ArtifactID: assessment.ID,
		Kind:       ledger.KindAssessment,
		SourceID:   enriched.ID,
		RootID:     raw.CandidateID,
		Stage:      score.Stage,
	}); err != nil {
		return err
	}

	decision := p.orchestrator.Evaluate(ctx, enriched, assessment)
	ev := &escalate.Event{Decision: decision, Enriched: enriched, Assessment: assessment}
	if p.reviewer != nil && (decision.Tier == escalate.TierInteresting || decision.Tier == escalate.TierAnomalous) {
		ev.Specialist = p.consult(ctx, enriched, assessment)
	}
	return p.finish(ctx, s, decision, ev, assessment.ID)
}

// finish publishes the event and then commits the decision. A crash between
// the two replays as a re-publish, never as a duplicate committed decision.
// sourceID is the newest upstream artifact: the assessment on the full
// chain, the partial cleaned artifact when history was incomplete. Lineage
// walks from the decision must never dead-end early.
func (p *Pipeline) finish(ctx context.Context, s *shard, d *escalate.Decision, ev *escalate.Event, sourceID string) error {
	if err := p.orchestrator.Publish(ctx, ev); err != nil {
		p.logger.Error(ctx, err, "event publish failed", "candid", d.CandidateID, "queue", string(d.Queue))
	}
	if err := p.commit(ctx, s, ledger.Record{
		ArtifactID: d.ID,
		Kind:       ledger.KindDecision,
		SourceID:   sourceID,
		RootID:     d.CandidateID,
		Stage:      escalate.Stage,
	}); err != nil {
		return err
	}
	p.decisions.Add(1)
	p.metrics.IncDecision(string(d.Tier), string(d.Queue))
	p.logger.Info(ctx, "escalation decision committed",
		"candid", d.CandidateID,
		"object_id", d.ObjectID,
		"tier", string(d.Tier),
		"queue", string(d.Queue),
		"rules", d.FiredRules,
	)
	return nil
}

// consult runs the bounded specialist round trip. Failures degrade to a
// nil assessment and never block the decision.
func (p *Pipeline) consult(ctx context.Context, ea *enrich.EnrichedAlert, aa *score.AnomalyAssessment) *specialist.Assessment {
	eb, _ := json.Marshal(ea)
	ab, _ := json.Marshal(aa)
	start := time.Now()
	sa, err := p.reviewer.Review(ctx, &specialist.Request{Enriched: eb, Assessment: ab})
	p.metrics.ObserveStage("specialist", time.Since(start))
	if err != nil {
		p.degraded.Add(1)
		p.metrics.IncDegraded("specialist")
		p.logger.Warn(ctx, "specialist review degraded", "candid", aa.CandidateID, "error", err.Error())
		return nil
	}
	return sa
}

func (p *Pipeline) commit(ctx context.Context, s *shard, rec ledger.Record) error {
	rec.Shard = s.id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := p.ledger.Append(ctx, &rec); err != nil {
		return fmt.Errorf("ledger append %s/%s: %w", rec.Kind, rec.ArtifactID, err)
	}
	p.metrics.IncLedgerAppend(string(rec.Kind))
	return nil
}
