package ingestapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/ledger"
	"github.com/shukpa/astrophysics-data-engineering/internal/pipeline"
)

// batch is the intake payload: one or more raw survey alerts.
type batch struct {
	Alerts []alert.RawAlert `json:"alerts"`
}

type batchResponse struct {
	Results []*pipeline.SubmitResult `json:"results"`
}

func (a *API) handleIngestAlerts(w http.ResponseWriter, r *http.Request) {
	var b batch
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if len(b.Alerts) == 0 {
		http.Error(w, `{"error":"empty batch"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("ade.batch.size", len(b.Alerts)))

	resp := batchResponse{Results: make([]*pipeline.SubmitResult, 0, len(b.Alerts))}
	for i := range b.Alerts {
		res, err := a.svc.Submit(r.Context(), &b.Alerts[i])
		if err != nil {
			if errors.Is(err, pipeline.ErrShardHalted) || errors.Is(err, pipeline.ErrNotRunning) {
				a.logger.Error(r.Context(), err, "intake unavailable", "candid", b.Alerts[i].CandidateID)
				http.Error(w, `{"error":"intake unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			a.logger.Error(r.Context(), err, "alert submission failed", "candid", b.Alerts[i].CandidateID)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		resp.Results = append(resp.Results, res)
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	candid := chi.URLParam(r, "candid")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("ade.candid", candid))

	rec, ok, err := a.ledger.Latest(r.Context(), candid, ledger.KindDecision)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to read decision record", "candid", candid)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleGetLineage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("ade.artifact.id", id))

	chain, err := a.ledger.Chain(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		a.logger.Error(r.Context(), err, "failed to read lineage", "artifact_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"artifact_id": id, "chain": chain})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
