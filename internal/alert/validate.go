package alert

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
)

// RejectionError describes why a raw alert failed schema validation. Rejected
// alerts are quarantined and never advance in the pipeline.
type RejectionError struct {
	CandidateID string
	Field       string
	Reason      string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("alert %s rejected: %s: %s", e.CandidateID, e.Field, e.Reason)
}

func reject(a *RawAlert, field, format string, args ...any) *RejectionError {
	return &RejectionError{
		CandidateID: a.CandidateID,
		Field:       field,
		Reason:      fmt.Sprintf(format, args...),
	}
}

// Validate enforces the raw-alert structural contract. It is a pure function:
// a nil return means the alert is valid, a *RejectionError return names the
// first offending field. Historical detections are not validated here; the
// cleaner flags individual bad points instead of rejecting the alert.
func Validate(a *RawAlert) *RejectionError {
	if a.CandidateID == "" {
		return reject(a, "candid", "missing candidate identifier")
	}
	if len(a.ObjectID) < 3 {
		return reject(a, "object_id", "missing or too short (%q)", a.ObjectID)
	}
	if a.RA < 0 || a.RA >= 360 {
		return reject(a, "ra", "%.4f out of range [0, 360)", a.RA)
	}
	if a.Dec < -90 || a.Dec > 90 {
		return reject(a, "dec", "%.4f out of range [-90, 90]", a.Dec)
	}
	if a.Uncertainty < 0 {
		return reject(a, "uncertainty", "%.4f must be non-negative", a.Uncertainty)
	}
	if !KnownBands[a.Band] {
		return reject(a, "band", "unknown band %q", a.Band)
	}
	if a.ObservedJD <= 2400000 {
		return reject(a, "jd", "%.2f is not a plausible Julian Date", a.ObservedJD)
	}
	if a.RealBogus != nil && (*a.RealBogus < 0 || *a.RealBogus > 1) {
		return reject(a, "rb", "%.4f out of range [0, 1]", *a.RealBogus)
	}
	if a.DeepRealBogus != nil && (*a.DeepRealBogus < 0 || *a.DeepRealBogus > 1) {
		return reject(a, "drb", "%.4f out of range [0, 1]", *a.DeepRealBogus)
	}
	return nil
}

// Quarantine receives alerts rejected by schema validation. Quarantined
// alerts are recorded with their reason and are never retried automatically.
type Quarantine interface {
	Quarantine(ctx context.Context, a *RawAlert, reason *RejectionError)
}

// LogQuarantine writes quarantined alerts to the structured log.
type LogQuarantine struct {
	logger log.Logger
}

// NewLogQuarantine creates a Quarantine backed by the given logger.
func NewLogQuarantine(logger log.Logger) *LogQuarantine {
	if logger == nil {
		logger = log.Nop()
	}
	return &LogQuarantine{logger: logger}
}

// Quarantine implements Quarantine.
func (q *LogQuarantine) Quarantine(ctx context.Context, a *RawAlert, reason *RejectionError) {
	q.logger.Warn(ctx, "alert quarantined",
		"candid", a.CandidateID,
		"object_id", a.ObjectID,
		"field", reason.Field,
		"reason", reason.Reason,
	)
}
