package enrich

import (
	"time"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
)

// Stage is the provenance stage name recorded for enriched artifacts.
const Stage = "enricher"

// CrossMatch is a single catalog counterpart for the alert position.
type CrossMatch struct {
	Catalog         string  `json:"catalog"`
	MatchedObjectID string  `json:"matched_object_id"`
	Separation      float64 `json:"separation_arcsec"`
	ObjectType      string  `json:"object_type,omitempty"`
}

// CatalogResult is the outcome of one catalog cross-match call. A timed-out
// or failed catalog is marked Unavailable instead of failing enrichment.
type CatalogResult struct {
	Catalog     string       `json:"catalog"`
	Matches     []CrossMatch `json:"matches,omitempty"`
	Unavailable bool         `json:"unavailable,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// Features are the light-curve statistics computed over usable points.
type Features struct {
	// RiseRate is the brightening rate before peak, mag/day (positive =
	// getting brighter).
	RiseRate float64 `json:"rise_rate"`
	// DeclineRate is the fading rate after peak, mag/day (positive = fading).
	DeclineRate float64 `json:"decline_rate"`
	// Amplitude is the full magnitude range of the usable curve.
	Amplitude float64 `json:"amplitude"`
	// DurationDays spans first to last usable point.
	DurationDays float64 `json:"duration_days"`
	// ColorGR and ColorRI are mean color indices; nil when a band is missing.
	ColorGR *float64 `json:"color_g_r,omitempty"`
	ColorRI *float64 `json:"color_r_i,omitempty"`
	// PeakMagnitude is the brightest usable measurement.
	PeakMagnitude float64 `json:"peak_magnitude"`
	PointCount    int     `json:"point_count"`
}

// LabelScore pairs an alternative label with its independent class-membership
// estimate. Scores across labels need not sum to 1.
type LabelScore struct {
	Label      alert.Label `json:"label"`
	Confidence float64     `json:"confidence"`
}

// Classification is the output of the ML classifier collaborator.
type Classification struct {
	Primary      alert.Label  `json:"primary"`
	Confidence   float64      `json:"confidence"`
	Alternatives []LabelScore `json:"alternatives,omitempty"`
	// Degraded marks a classification assigned locally because the
	// collaborator was unreachable.
	Degraded bool `json:"degraded,omitempty"`
}

// EnrichedAlert is the gold-tier artifact derived from exactly one
// CleanedAlert.
type EnrichedAlert struct {
	ID          string `json:"id"`
	CleanedID   string `json:"cleaned_id"` // source silver artifact
	CandidateID string `json:"candid"`
	ObjectID    string `json:"object_id"`

	RA    float64 `json:"ra"`
	Dec   float64 `json:"dec"`
	Epoch float64 `json:"epoch_mjd"`

	CrossMatches   []CatalogResult `json:"cross_matches,omitempty"`
	Features       Features        `json:"features"`
	Classification Classification  `json:"classification"`
	EnrichedAt     time.Time       `json:"enriched_at"`
}
