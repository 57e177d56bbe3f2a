// Package specialist is the re-analysis collaborator consulted for alerts
// routed to the interesting and anomalous tiers. The collaborator is a black
// box behind a narrow request/response contract: one bounded round trip, a
// refined verdict or a context request back, no conversation state.
package specialist

import (
	"context"
	"encoding/json"
	"strings"
)

// Verdicts a specialist may return.
const (
	VerdictConfirm      = "confirm"
	VerdictDowngrade    = "downgrade"
	VerdictEscalate     = "escalate"
	VerdictNeedsContext = "needs-context"
)

// Request carries the artifacts under review. Both are serialized as-is; the
// reviewer never mutates them.
type Request struct {
	Enriched   json.RawMessage `json:"enriched"`
	Assessment json.RawMessage `json:"assessment"`
}

// Assessment is the specialist's refined view of an anomaly assessment.
type Assessment struct {
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale,omitempty"`
	// RequestedContext is set with verdict needs-context; the pipeline
	// records it but performs no further round trips.
	RequestedContext string `json:"requested_context,omitempty"`
}

// Valid reports whether the verdict is one this pipeline understands.
func (a *Assessment) Valid() bool {
	switch a.Verdict {
	case VerdictConfirm, VerdictDowngrade, VerdictEscalate, VerdictNeedsContext:
		return true
	}
	return false
}

// Reviewer performs one specialist round trip.
type Reviewer interface {
	Review(ctx context.Context, req *Request) (*Assessment, error)
}

// parseAssessment extracts an Assessment from specialist output. The model
// is asked for bare JSON but may wrap it in a code fence or prose; take the
// outermost JSON object.
func parseAssessment(text string) (*Assessment, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var a Assessment
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return nil, false
	}
	if !a.Valid() {
		return nil, false
	}
	return &a, true
}
