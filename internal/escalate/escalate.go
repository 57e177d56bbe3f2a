// Package escalate turns anomaly assessments into escalation decisions. The
// decision policy is a fixed-order rule table evaluated first-match-wins, so
// identical inputs always produce the identical tier and fired-rule list.
package escalate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/score"
)

// Stage is the provenance stage name recorded for decision artifacts.
const Stage = "escalation"

// Tier is the routing outcome of an escalation decision. All tiers are
// terminal for this pipeline; each publishes to a different downstream queue.
type Tier string

const (
	TierRoutine     Tier = "routine"
	TierInteresting Tier = "interesting"
	TierAnomalous   Tier = "anomalous"
	TierCritical    Tier = "critical"
)

// Queue is a logical downstream sink.
type Queue string

const (
	QueueAutomatedAccept Queue = "automated-accept"
	QueueSpecialist      Queue = "specialist-review"
	QueueHumanReview     Queue = "human-review"
)

// QueueFor maps a tier onto its downstream queue.
func QueueFor(tier Tier) Queue {
	switch tier {
	case TierCritical, TierAnomalous:
		return QueueHumanReview
	case TierInteresting:
		return QueueSpecialist
	default:
		return QueueAutomatedAccept
	}
}

// Fired-rule names recorded on decisions.
const (
	RuleExclusion         = "known-systematic-exclusion"
	RuleTemplateFree      = "template-free"
	RuleCriticalDeviation = "critical-deviation"
	RuleAnomalousFAP      = "false-alarm-below-threshold"
	RuleLowConfidence     = "low-confidence"
	RuleDefaultRoutine    = "default-routine"
	RuleRateLimited       = "rate-limited"
	RuleIncompleteHistory = "incomplete-history"
)

// Thresholds parameterize the decision table.
type Thresholds struct {
	// ExclusionConfidence is the minimum confidence for a fired
	// known-systematic rule to force Routine.
	ExclusionConfidence float64 `yaml:"exclusion_confidence"`
	// CriticalFAP and CriticalDeviation must both be crossed for Critical.
	CriticalFAP       float64 `yaml:"critical_fap"`
	CriticalDeviation float64 `yaml:"critical_deviation"`
	// AnomalousFAP alone is enough for Anomalous.
	AnomalousFAP float64 `yaml:"anomalous_fap"`
	// MinConfidence routes weakly classified alerts to Interesting.
	MinConfidence float64 `yaml:"min_confidence"`
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExclusionConfidence: 0.9,
		CriticalFAP:         1e-6,
		CriticalDeviation:   5.0,
		AnomalousFAP:        1e-3,
		MinConfidence:       0.4,
	}
}

// LoadThresholds reads a threshold table from a YAML file.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	data, err := os.ReadFile(path)
	if err != nil {
		return th, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, fmt.Errorf("parse thresholds: %w", err)
	}
	return th, nil
}

// Decision is the terminal artifact of the pipeline, derived from exactly one
// AnomalyAssessment.
type Decision struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id,omitempty"` // source artifact
	CandidateID  string `json:"candid"`
	ObjectID     string `json:"object_id"`

	Tier       Tier      `json:"tier"`
	Queue      Queue     `json:"queue"`
	FiredRules []string  `json:"fired_rules"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Decide evaluates the routing state machine. It is a pure function of its
// inputs: fixed rule order, first match wins.
func Decide(th Thresholds, cl enrich.Classification, aa *score.AnomalyAssessment) (Tier, []string) {
	// 1. A confidently fired known-systematic exclusion overrides everything.
	for _, ex := range aa.Exclusions {
		if ex.Confidence >= th.ExclusionConfidence {
			return TierRoutine, []string{RuleExclusion, "exclusion:" + ex.Rule}
		}
	}

	// 2. Unclassifiable is never silently routine.
	if aa.TemplateFree {
		return TierInteresting, []string{RuleTemplateFree}
	}

	// 3. Critical needs both an extreme deviation and a negligible
	// false-alarm probability.
	if aa.FalseAlarmProb < th.CriticalFAP && aa.Deviation > th.CriticalDeviation {
		return TierCritical, []string{RuleCriticalDeviation}
	}

	// 4. A low false-alarm probability alone is anomalous.
	if aa.FalseAlarmProb < th.AnomalousFAP {
		return TierAnomalous, []string{RuleAnomalousFAP}
	}

	// 5. Weak classification warrants a specialist look.
	if cl.Confidence < th.MinConfidence {
		return TierInteresting, []string{RuleLowConfidence}
	}

	return TierRoutine, []string{RuleDefaultRoutine}
}

// Demote steps a tier down exactly one level. Critical never reaches Routine
// in a single step.
func Demote(tier Tier) Tier {
	switch tier {
	case TierCritical:
		return TierAnomalous
	case TierAnomalous:
		return TierInteresting
	case TierInteresting:
		return TierRoutine
	default:
		return TierRoutine
	}
}
