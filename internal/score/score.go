// Package score compares enriched alerts against the expected-behavior
// template for their assigned class and produces an anomaly assessment: a
// normalized deviation, a volume-corrected false-alarm probability, and the
// known-systematic exclusion rules that fired.
package score

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
)

// Stage is the provenance stage name recorded for assessment artifacts.
const Stage = "anomaly-scorer"

// ExclusionOutcome records a known-systematic rule that fired, with the
// rule's confidence that the deviation is an artifact.
type ExclusionOutcome struct {
	Rule       string  `json:"rule"`
	Confidence float64 `json:"confidence"`
}

// AnomalyAssessment is derived from exactly one EnrichedAlert. The deviation
// is only meaningful relative to TemplateID; template-free assessments carry
// no deviation and force a minimum escalation tier downstream.
type AnomalyAssessment struct {
	ID          string `json:"id"`
	EnrichedID  string `json:"enriched_id"` // source gold artifact
	CandidateID string `json:"candid"`
	ObjectID    string `json:"object_id"`

	Deviation    float64 `json:"deviation_sigma"`
	TemplateFree bool    `json:"template_free"`
	TemplateID   string  `json:"template_id,omitempty"`

	// FalseAlarmProb is corrected for the number of alerts scored in the
	// current window (recorded as WindowCount for reproducibility).
	FalseAlarmProb float64 `json:"false_alarm_prob"`
	WindowCount    int     `json:"window_count"`

	Exclusions []ExclusionOutcome `json:"exclusions,omitempty"`
	ScoredAt   time.Time          `json:"scored_at"`
}

// ExclusionRule checks one known artifact pattern. Fired rules downgrade a
// numerically high deviation back toward Routine in the decision engine.
type ExclusionRule interface {
	Name() string
	Check(ea *enrich.EnrichedAlert) (fired bool, confidence float64)
}

// Scorer assesses enriched alerts against a versioned template table. The
// scored-per-window counter is shared across shards; it is the only state
// this type mutates.
type Scorer struct {
	table  *Table
	window time.Duration
	rules  []ExclusionRule
	logger log.Logger

	mu     sync.Mutex
	scored []time.Time

	now func() time.Time
}

// New creates a Scorer. The window sizes the multiple-comparisons correction:
// the more alerts scored in the window, the more deviation is needed to reach
// a given false-alarm probability.
func New(table *Table, window time.Duration, rules []ExclusionRule, logger log.Logger) *Scorer {
	if logger == nil {
		logger = log.Nop()
	}
	if window <= 0 {
		window = time.Hour
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Scorer{
		table:  table,
		window: window,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Score produces an AnomalyAssessment for an enriched alert. It never fails:
// a label without a template yields a template-free assessment.
func (s *Scorer) Score(ctx context.Context, ea *enrich.EnrichedAlert) *AnomalyAssessment {
	now := s.now().UTC()
	n := s.countScored(now)

	aa := &AnomalyAssessment{
		ID:          ulid.Make().String(),
		EnrichedID:  ea.ID,
		CandidateID: ea.CandidateID,
		ObjectID:    ea.ObjectID,
		WindowCount: n,
		ScoredAt:    now,
	}

	for _, rule := range s.rules {
		if fired, conf := rule.Check(ea); fired {
			aa.Exclusions = append(aa.Exclusions, ExclusionOutcome{
				Rule:       rule.Name(),
				Confidence: conf,
			})
		}
	}

	tpl, ok := s.table.Lookup(ea.Classification.Primary)
	if !ok {
		aa.TemplateFree = true
		aa.FalseAlarmProb = 1
		s.logger.Info(ctx, "no template for label, assessment is template-free",
			"candid", ea.CandidateID,
			"label", ea.Classification.Primary.String(),
		)
		return aa
	}

	aa.TemplateID = s.table.ID()
	aa.Deviation = deviation(ea.Features, tpl)
	aa.FalseAlarmProb = falseAlarmProb(aa.Deviation, n)
	return aa
}

// countScored records this scoring event and returns the number of alerts
// scored inside the current window, including this one.
func (s *Scorer) countScored(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)
	keep := s.scored[:0]
	for _, t := range s.scored {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	s.scored = append(keep, now)
	return len(s.scored)
}

// deviation is the root-mean-square of the per-feature z-scores against the
// template. Features whose template spread is zero are skipped.
func deviation(f enrich.Features, tpl Template) float64 {
	var sum float64
	var k int

	add := func(x float64, g Gaussian) {
		if g.Sigma <= 0 {
			return
		}
		z := (x - g.Mean) / g.Sigma
		sum += z * z
		k++
	}

	add(f.RiseRate, tpl.RiseRate)
	add(f.DeclineRate, tpl.DeclineRate)
	add(f.Amplitude, tpl.Amplitude)
	add(f.DurationDays, tpl.DurationDays)
	if f.ColorGR != nil {
		add(*f.ColorGR, tpl.ColorGR)
	}

	if k == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(k))
}

// falseAlarmProb converts a deviation into the probability that at least one
// of n independent alerts reaches it by chance (Šidák correction). The
// per-alert tail probability is the two-sided Gaussian tail.
func falseAlarmProb(dev float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	p := math.Erfc(dev / math.Sqrt2)
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	// 1-(1-p)^n, computed in log space for small p.
	return -math.Expm1(float64(n) * math.Log1p(-p))
}
