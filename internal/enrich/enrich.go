// Package enrich produces the gold tier: cleaned alerts augmented with
// catalog cross-matches, light-curve features, and an ML classification.
// Catalog calls run concurrently and degrade independently; classification
// failure degrades to Unknown. Enrichment itself never fails an alert.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/clean"
)

// Catalog is an external cross-match collaborator. Implementations own their
// transport, timeout, and retry behavior.
type Catalog interface {
	Name() string
	CrossMatch(ctx context.Context, ra, dec, radiusArcsec float64) ([]CrossMatch, error)
}

// Classifier is the external ML collaborator assigning labels to features.
type Classifier interface {
	Classify(ctx context.Context, f Features) (*Classification, error)
}

// Enricher orchestrates catalog cross-match, feature computation, and
// classification for one cleaned alert at a time.
type Enricher struct {
	catalogs     []Catalog
	classifier   Classifier
	radiusArcsec float64
	logger       log.Logger
}

// New creates an Enricher. A nil classifier means every alert is labeled
// Unknown, which the scorer treats as template-free.
func New(catalogs []Catalog, classifier Classifier, radiusArcsec float64, logger log.Logger) *Enricher {
	if logger == nil {
		logger = log.Nop()
	}
	if radiusArcsec <= 0 {
		radiusArcsec = 5
	}
	return &Enricher{
		catalogs:     catalogs,
		classifier:   classifier,
		radiusArcsec: radiusArcsec,
		logger:       logger,
	}
}

// Enrich derives an EnrichedAlert from exactly one CleanedAlert.
func (e *Enricher) Enrich(ctx context.Context, ca *clean.CleanedAlert) *EnrichedAlert {
	ea := &EnrichedAlert{
		ID:          ulid.Make().String(),
		CleanedID:   ca.ID,
		CandidateID: ca.CandidateID,
		ObjectID:    ca.ObjectID,
		RA:          ca.RA,
		Dec:         ca.Dec,
		Epoch:       ca.Epoch,
		EnrichedAt:  time.Now().UTC(),
	}

	ea.CrossMatches = e.crossMatchAll(ctx, ca)
	ea.Features = ComputeFeatures(ca)
	ea.Classification = e.classify(ctx, ca, ea.Features)
	return ea
}

// crossMatchAll issues all catalog calls concurrently. Each catalog degrades
// on its own: a failed or timed-out call yields an Unavailable result and the
// other catalogs are unaffected.
func (e *Enricher) crossMatchAll(ctx context.Context, ca *clean.CleanedAlert) []CatalogResult {
	if len(e.catalogs) == 0 {
		return nil
	}

	results := make([]CatalogResult, len(e.catalogs))
	var wg sync.WaitGroup
	for i, cat := range e.catalogs {
		wg.Add(1)
		go func(i int, cat Catalog) {
			defer wg.Done()
			matches, err := cat.CrossMatch(ctx, ca.RA, ca.Dec, e.radiusArcsec)
			if err != nil {
				e.logger.Warn(ctx, "catalog cross-match unavailable",
					"catalog", cat.Name(),
					"candid", ca.CandidateID,
					"error", err.Error(),
				)
				results[i] = CatalogResult{
					Catalog:     cat.Name(),
					Unavailable: true,
					Reason:      err.Error(),
				}
				return
			}
			results[i] = CatalogResult{Catalog: cat.Name(), Matches: matches}
		}(i, cat)
	}
	wg.Wait()
	return results
}

// classify calls the ML collaborator. Any failure degrades to Unknown with
// confidence 0 so classification never blocks the pipeline.
func (e *Enricher) classify(ctx context.Context, ca *clean.CleanedAlert, f Features) Classification {
	if e.classifier == nil {
		return Classification{Primary: alert.Unknown(), Degraded: true}
	}

	cl, err := e.classifier.Classify(ctx, f)
	if err != nil {
		e.logger.Warn(ctx, "classification degraded to Unknown",
			"candid", ca.CandidateID,
			"error", err.Error(),
		)
		return Classification{Primary: alert.Unknown(), Degraded: true}
	}
	return *cl
}
