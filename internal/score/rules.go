package score

import "github.com/shukpa/astrophysics-data-engineering/internal/enrich"

// Known-systematic exclusion rules. Each encodes an artifact pattern that
// produces large numeric deviations without being astrophysically
// interesting. A fired rule records its name so the downgrade is auditable.

// singlePointOutlier fires when the whole usable light curve is one point:
// a lone detection with no corroborating epochs is the classic cosmic-ray or
// hot-pixel signature.
type singlePointOutlier struct{}

func (singlePointOutlier) Name() string { return "single-point-outlier" }

func (singlePointOutlier) Check(ea *enrich.EnrichedAlert) (bool, float64) {
	if ea.Features.PointCount <= 1 {
		return true, 0.95
	}
	return false, 0
}

// sparseCurve fires when the usable curve spans almost no time: amplitude
// and rate estimates from a sub-day baseline are not trustworthy.
type sparseCurve struct{}

func (sparseCurve) Name() string { return "sparse-curve" }

func (sparseCurve) Check(ea *enrich.EnrichedAlert) (bool, float64) {
	if ea.Features.PointCount <= 2 && ea.Features.DurationDays < 0.5 {
		return true, 0.8
	}
	return false, 0
}

// brightStarNeighbor fires when a catalog counterpart sits close enough that
// the detection is likely a subtraction residual of a known star.
type brightStarNeighbor struct{}

func (brightStarNeighbor) Name() string { return "bright-star-neighbor" }

func (brightStarNeighbor) Check(ea *enrich.EnrichedAlert) (bool, float64) {
	for _, cr := range ea.CrossMatches {
		if cr.Unavailable {
			continue
		}
		for _, m := range cr.Matches {
			if m.Separation < 1.5 && m.ObjectType == "Star" {
				return true, 0.9
			}
		}
	}
	return false, 0
}

// DefaultRules returns the standard exclusion rule set.
func DefaultRules() []ExclusionRule {
	return []ExclusionRule{
		singlePointOutlier{},
		sparseCurve{},
		brightStarNeighbor{},
	}
}
