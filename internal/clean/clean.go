// Package clean produces the silver tier: validated raw alerts with
// normalized epochs and coordinates and a per-point usability verdict over
// the light-curve history. A bad historical point is excluded, never dropped,
// so the light-curve shape stays intact.
package clean

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
)

// Stage is the provenance stage name recorded for cleaned artifacts.
const Stage = "cleaner"

// ErrIncompleteHistory is returned when fewer than the configured minimum
// number of usable points remain after exclusions. The alert still advances:
// the pipeline routes it to Routine with a low-confidence tag instead of
// terminating it.
var ErrIncompleteHistory = errors.New("clean: insufficient usable history")

// Exclusion reasons attached to unusable points.
const (
	ExcludeNonDetection  = "non-detection"
	ExcludeNoUncertainty = "missing-uncertainty"
	ExcludeUncertainty   = "uncertainty-above-ceiling"
	ExcludeNegativeDiff  = "negative-difference"
	ExcludeUnknownBand   = "unknown-band"
	ExcludeRealBogus     = "real-bogus-below-floor"
)

// Point is one standardized light-curve measurement. Excluded points keep
// their values so downstream consumers can still see the full curve.
type Point struct {
	MJD           float64    `json:"mjd"`
	Band          alert.Band `json:"band"`
	Magnitude     float64    `json:"magnitude"`
	Uncertainty   float64    `json:"uncertainty"`
	Usable        bool       `json:"usable"`
	ExcludeReason string     `json:"exclude_reason,omitempty"`
}

// CleanedAlert is the silver-tier artifact derived from exactly one RawAlert.
type CleanedAlert struct {
	ID          string `json:"id"`
	CandidateID string `json:"candid"` // source raw alert
	ObjectID    string `json:"object_id"`

	// Coordinates standardized to the ICRS frame, degrees.
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`

	// Epoch is the triggering observation time as a Modified Julian Date.
	Epoch       float64    `json:"epoch_mjd"`
	Magnitude   float64    `json:"magnitude"`
	Uncertainty float64    `json:"uncertainty"`
	Band        alert.Band `json:"band"`

	// Points is the full standardized light curve, history plus the
	// triggering detection, ordered by epoch.
	Points       []Point   `json:"points"`
	UsablePoints int       `json:"usable_points"`
	CleanedAt    time.Time `json:"cleaned_at"`
}

// Config holds per-point quality thresholds.
type Config struct {
	// MaxUncertainty excludes points whose magnitude uncertainty exceeds it.
	MaxUncertainty float64
	// RealBogusFloor excludes the triggering detection when its real/bogus
	// score falls below it (known-artifact filter).
	RealBogusFloor float64
	// MinUsablePoints is the minimum usable light-curve size for full
	// processing; below it Clean returns ErrIncompleteHistory.
	MinUsablePoints int
}

// DefaultConfig mirrors the upstream broker quality cuts.
func DefaultConfig() Config {
	return Config{
		MaxUncertainty:  0.3,
		RealBogusFloor:  0.55,
		MinUsablePoints: 3,
	}
}

// Cleaner turns validated raw alerts into CleanedAlerts.
type Cleaner struct {
	cfg    Config
	logger log.Logger
}

// New creates a Cleaner with the given thresholds.
func New(cfg Config, logger log.Logger) *Cleaner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cleaner{cfg: cfg, logger: logger}
}

// Clean derives a CleanedAlert from a validated raw alert. It always returns
// a usable artifact; when too few usable points remain the artifact is
// returned together with ErrIncompleteHistory so the caller can route it with
// a low-confidence tag.
func (c *Cleaner) Clean(ctx context.Context, raw *alert.RawAlert) (*CleanedAlert, error) {
	points := make([]Point, 0, len(raw.History)+1)
	for _, d := range raw.History {
		points = append(points, c.cleanHistoryPoint(d))
	}
	points = append(points, c.cleanTrigger(raw))

	slices.SortStableFunc(points, func(a, b Point) int {
		return cmp.Compare(a.MJD, b.MJD)
	})

	usable := 0
	for _, p := range points {
		if p.Usable {
			usable++
		}
	}

	ca := &CleanedAlert{
		ID:           ulid.Make().String(),
		CandidateID:  raw.CandidateID,
		ObjectID:     raw.ObjectID,
		RA:           wrapRA(raw.RA),
		Dec:          raw.Dec,
		Epoch:        raw.MJD(),
		Magnitude:    raw.Magnitude,
		Uncertainty:  raw.Uncertainty,
		Band:         raw.Band,
		Points:       points,
		UsablePoints: usable,
		CleanedAt:    time.Now().UTC(),
	}

	if usable < c.cfg.MinUsablePoints {
		c.logger.Info(ctx, "cleaned alert has incomplete history",
			"candid", raw.CandidateID,
			"usable_points", usable,
			"min_usable_points", c.cfg.MinUsablePoints,
		)
		return ca, fmt.Errorf("%w: %d usable of %d required",
			ErrIncompleteHistory, usable, c.cfg.MinUsablePoints)
	}
	return ca, nil
}

func (c *Cleaner) cleanHistoryPoint(d alert.Detection) Point {
	p := Point{MJD: d.MJD(), Band: d.Band}
	if d.Magnitude != nil {
		p.Magnitude = *d.Magnitude
	}
	if d.Uncertainty != nil {
		p.Uncertainty = *d.Uncertainty
	}

	switch {
	case !d.IsDetection():
		p.ExcludeReason = ExcludeNonDetection
	case !alert.KnownBands[d.Band]:
		p.ExcludeReason = ExcludeUnknownBand
	case d.Uncertainty == nil:
		p.ExcludeReason = ExcludeNoUncertainty
	case *d.Uncertainty > c.cfg.MaxUncertainty:
		p.ExcludeReason = ExcludeUncertainty
	case d.IsDiffPos == "f" || d.IsDiffPos == "0":
		p.ExcludeReason = ExcludeNegativeDiff
	default:
		p.Usable = true
	}
	return p
}

func (c *Cleaner) cleanTrigger(raw *alert.RawAlert) Point {
	p := Point{
		MJD:         raw.MJD(),
		Band:        raw.Band,
		Magnitude:   raw.Magnitude,
		Uncertainty: raw.Uncertainty,
	}

	rb := raw.RealBogus
	if raw.DeepRealBogus != nil {
		rb = raw.DeepRealBogus
	}
	switch {
	case rb != nil && *rb < c.cfg.RealBogusFloor:
		p.ExcludeReason = ExcludeRealBogus
	case raw.Uncertainty > c.cfg.MaxUncertainty:
		p.ExcludeReason = ExcludeUncertainty
	default:
		p.Usable = true
	}
	return p
}

// wrapRA folds right ascension into [0, 360).
func wrapRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}
