// Package ingestapi exposes the alert intake and provenance endpoints.
package ingestapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
	"github.com/shukpa/astrophysics-data-engineering/internal/pipeline"
)

// PipelineService defines the intake operations the API needs.
type PipelineService interface {
	Submit(ctx context.Context, raw *alert.RawAlert) (*pipeline.SubmitResult, error)
	Stats() pipeline.Stats
}

// LedgerReader is the read side of the provenance ledger.
type LedgerReader interface {
	Latest(ctx context.Context, rootID string, kind ledger.Kind) (*ledger.Record, bool, error)
	Chain(ctx context.Context, artifactID string) ([]ledger.Record, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    PipelineService
	ledger LedgerReader
}

// New creates a new API handler.
func New(logger log.Logger, svc PipelineService, led LedgerReader) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("pipeline service is required"))
	}
	if led == nil {
		panic(xerrors.New("ledger reader is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		ledger: led,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", a.handleIngestAlerts)
		r.Get("/decisions/{candid}", a.handleGetDecision)
		r.Get("/lineage/{id}", a.handleGetLineage)
		r.Get("/stats", a.handleStats)
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Stats())
}
