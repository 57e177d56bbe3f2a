package escalate

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/score"
	"github.com/shukpa/astrophysics-data-engineering/internal/specialist"
)

// Event is what reaches a downstream queue: the decision plus the artifacts
// it was derived from. Enriched and Assessment are nil for alerts routed on
// incomplete history, which never reached those tiers. Specialist carries the
// advisory re-analysis when one was performed.
type Event struct {
	Decision   *Decision                `json:"decision"`
	Enriched   *enrich.EnrichedAlert    `json:"enriched,omitempty"`
	Assessment *score.AnomalyAssessment `json:"assessment,omitempty"`
	Specialist *specialist.Assessment   `json:"specialist,omitempty"`
}

// Publisher delivers escalation events to a downstream queue.
type Publisher interface {
	Publish(ctx context.Context, queue Queue, ev *Event) error
}

// Orchestrator runs the routing state machine and applies the human-review
// rate limit. Rate-limited decisions are demoted exactly one tier and
// flagged, never dropped.
type Orchestrator struct {
	thresholds Thresholds
	limiter    *RateLimiter
	publisher  Publisher
	logger     log.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(th Thresholds, limiter *RateLimiter, publisher Publisher, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		thresholds: th,
		limiter:    limiter,
		publisher:  publisher,
		logger:     logger,
	}
}

// Evaluate routes one assessment: the pure decision table first, then the
// rate limiter. The returned decision is not yet published.
func (o *Orchestrator) Evaluate(ctx context.Context, ea *enrich.EnrichedAlert, aa *score.AnomalyAssessment) *Decision {
	tier, rules := Decide(o.thresholds, ea.Classification, aa)

	if (tier == TierCritical || tier == TierAnomalous) && !o.limiter.Allow() {
		demoted := Demote(tier)
		rules = append(rules, RuleRateLimited)
		o.logger.Warn(ctx, "human-review rate limit hit, demoting decision",
			"candid", aa.CandidateID,
			"tier", string(tier),
			"demoted_tier", string(demoted),
		)
		tier = demoted
	}

	return &Decision{
		ID:           ulid.Make().String(),
		AssessmentID: aa.ID,
		CandidateID:  aa.CandidateID,
		ObjectID:     aa.ObjectID,
		Tier:         tier,
		Queue:        QueueFor(tier),
		FiredRules:   rules,
		DecidedAt:    time.Now().UTC(),
	}
}

// EvaluateIncompleteHistory routes an alert whose cleaned history was too
// small for full processing: Routine, tagged so it is recorded, not dropped.
func (o *Orchestrator) EvaluateIncompleteHistory(candidateID, objectID string) *Decision {
	return &Decision{
		ID:          ulid.Make().String(),
		CandidateID: candidateID,
		ObjectID:    objectID,
		Tier:        TierRoutine,
		Queue:       QueueFor(TierRoutine),
		FiredRules:  []string{RuleIncompleteHistory, RuleLowConfidence},
		DecidedAt:   time.Now().UTC(),
	}
}

// Publish delivers an event to its decision's queue.
func (o *Orchestrator) Publish(ctx context.Context, ev *Event) error {
	if o.publisher == nil {
		return nil
	}
	if err := o.publisher.Publish(ctx, ev.Decision.Queue, ev); err != nil {
		return fmt.Errorf("publish to %s: %w", ev.Decision.Queue, err)
	}
	return nil
}
