package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

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

func TestCrossMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conesearch" {
			t.Errorf("path = %q, want /api/v1/conesearch", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ra") != "211.28" || q.Get("dec") != "54.32" || q.Get("radius") != "5" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"object_id":"SDSS J140507","separation_arcsec":1.2,"object_type":"Galaxy"},
			{"object_id":"Gaia DR3 1577","separation_arcsec":3.8,"object_type":"Star"}
		]`))
	}))
	defer srv.Close()

	c := New("simbad", srv.URL, fastPolicy(3))
	if c.Name() != "simbad" {
		t.Errorf("Name() = %q, want simbad", c.Name())
	}

	matches, err := c.CrossMatch(context.Background(), 211.28, 54.32, 5)
	if err != nil {
		t.Fatalf("CrossMatch() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Catalog != "simbad" || matches[0].MatchedObjectID != "SDSS J140507" {
		t.Errorf("matches[0] = %+v", matches[0])
	}
	if matches[1].ObjectType != "Star" || matches[1].Separation != 3.8 {
		t.Errorf("matches[1] = %+v", matches[1])
	}
}

func TestCrossMatch_EmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	matches, err := New("simbad", srv.URL, fastPolicy(1)).CrossMatch(context.Background(), 10, 10, 5)
	if err != nil {
		t.Fatalf("CrossMatch() error = %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches = %d, want 0", len(matches))
	}
}

func TestCrossMatch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream overloaded", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"object_id":"M31","separation_arcsec":0.4,"object_type":"Galaxy"}]`))
	}))
	defer srv.Close()

	matches, err := New("cds", srv.URL, fastPolicy(3)).CrossMatch(context.Background(), 10, 41, 5)
	if err != nil {
		t.Fatalf("CrossMatch() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if len(matches) != 1 {
		t.Errorf("matches = %d, want 1", len(matches))
	}
}

func TestCrossMatch_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad radius", http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := New("cds", srv.URL, fastPolicy(5)).CrossMatch(context.Background(), 10, 41, -1); err == nil {
		t.Fatal("CrossMatch() error = nil, want permanent failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not be retried)", got)
	}
}

func TestCrossMatch_MalformedResponse(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	if _, err := New("cds", srv.URL, fastPolicy(5)).CrossMatch(context.Background(), 10, 41, 5); err == nil {
		t.Fatal("CrossMatch() error = nil, want unmarshal failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (garbage will not improve on retry)", got)
	}
}

func TestCrossMatch_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New("cds", srv.URL, fastPolicy(3)).CrossMatch(context.Background(), 10, 41, 5); err == nil {
		t.Fatal("CrossMatch() error = nil, want exhaustion")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}
