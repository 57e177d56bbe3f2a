package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/enrich"
	"github.com/shukpa/astrophysics-data-engineering/internal/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		CallTimeout:     time.Second,
	}
}

func testFeatures() enrich.Features {
	return enrich.Features{
		PeakMagnitude: 18.3,
		Amplitude:     1.0,
		DurationDays:  12,
		RiseRate:      0.5,
		PointCount:    9,
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/classify" {
			t.Errorf("path = %q, want /api/v1/classify", r.URL.Path)
		}
		var req struct {
			Features enrich.Features `json:"features"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Features.PeakMagnitude != 18.3 {
			t.Errorf("PeakMagnitude = %v, want 18.3", req.Features.PeakMagnitude)
		}
		_, _ = w.Write([]byte(`{
			"primary_label": "SN candidate",
			"primary_confidence": 0.87,
			"alternative_labels": [
				{"label": "AGN", "confidence": 0.08},
				{"label": "TDE candidate", "confidence": 0.03}
			]
		}`))
	}))
	defer srv.Close()

	cl, err := New(srv.URL, fastPolicy(3)).Classify(context.Background(), testFeatures())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cl.Primary.Class != alert.ClassSNCandidate {
		t.Errorf("Primary = %+v, want SN candidate", cl.Primary)
	}
	if cl.Confidence != 0.87 {
		t.Errorf("Confidence = %v, want 0.87", cl.Confidence)
	}
	if len(cl.Alternatives) != 2 {
		t.Fatalf("Alternatives = %d, want 2", len(cl.Alternatives))
	}
	if cl.Alternatives[0].Label.Class != alert.ClassAGN {
		t.Errorf("Alternatives[0] = %+v, want AGN", cl.Alternatives[0])
	}
	// Labels outside the known set come back as Other with the raw string.
	if cl.Alternatives[1].Label.Class != alert.ClassOther || cl.Alternatives[1].Label.Raw != "TDE candidate" {
		t.Errorf("Alternatives[1] = %+v, want Other/TDE candidate", cl.Alternatives[1])
	}
}

func TestClassify_ClampsConfidence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"primary_label": "AGN", "primary_confidence": 1.7}`))
	}))
	defer srv.Close()

	cl, err := New(srv.URL, fastPolicy(1)).Classify(context.Background(), testFeatures())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cl.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", cl.Confidence)
	}
}

func TestClassify_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"primary_label": "Variable Star", "primary_confidence": 0.95}`))
	}))
	defer srv.Close()

	cl, err := New(srv.URL, fastPolicy(3)).Classify(context.Background(), testFeatures())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if cl.Primary.Class != alert.ClassVariableStar {
		t.Errorf("Primary = %+v, want Variable Star", cl.Primary)
	}
}

func TestClassify_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown feature schema", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, fastPolicy(5)).Classify(context.Background(), testFeatures()); err == nil {
		t.Fatal("Classify() error = nil, want permanent failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not be retried)", got)
	}
}

func TestClassify_UnreachableService(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if _, err := New(srv.URL, fastPolicy(2)).Classify(context.Background(), testFeatures()); err == nil {
		t.Fatal("Classify() error = nil, want transport failure")
	}
}
