package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the refinement pipeline.
type Metrics struct {
	SubmitsTotal    *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	LedgerAppends   *prometheus.CounterVec
	DegradedTotal   *prometheus.CounterVec
	ReplaysSkipped  prometheus.Counter
	ShardQueueDepth *prometheus.GaugeVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
// A nil registerer yields unregistered metrics, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ade_submits_total",
			Help: "Total alert submissions by intake outcome.",
		}, []string{"outcome"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ade_decisions_total",
			Help: "Total committed escalation decisions by tier and queue.",
		}, []string{"tier", "queue"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ade_stage_duration_seconds",
			Help:    "Duration of pipeline stage executions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~260s
		}, []string{"stage"}),
		LedgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ade_ledger_appends_total",
			Help: "Total provenance records committed by artifact kind.",
		}, []string{"kind"}),
		DegradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ade_collaborator_degradations_total",
			Help: "Total degraded collaborator calls by collaborator name.",
		}, []string{"collaborator"}),
		ReplaysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ade_replays_skipped_total",
			Help: "Total alerts skipped because their decision was already committed.",
		}),
		ShardQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ade_shard_queue_depth",
			Help: "Current queued alerts per shard.",
		}, []string{"shard"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SubmitsTotal,
			m.DecisionsTotal,
			m.StageDuration,
			m.LedgerAppends,
			m.DegradedTotal,
			m.ReplaysSkipped,
			m.ShardQueueDepth,
		)
	}
	return m
}

func (m *Metrics) IncSubmit(outcome string) {
	m.SubmitsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncDecision(tier, queue string) {
	m.DecisionsTotal.WithLabelValues(tier, queue).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) IncLedgerAppend(kind string) {
	m.LedgerAppends.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDegraded(collaborator string) {
	m.DegradedTotal.WithLabelValues(collaborator).Inc()
}

func (m *Metrics) IncReplaySkipped() {
	m.ReplaysSkipped.Inc()
}

func (m *Metrics) SetQueueDepth(shard, depth int) {
	m.ShardQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
}
