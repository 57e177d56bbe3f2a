package enrich

import (
	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
	"github.com/shukpa/astrophysics-data-engineering/internal/clean"
)

// ComputeFeatures derives light-curve features from the usable points of a
// cleaned alert. Points are assumed epoch-ordered, which the cleaner
// guarantees. Excluded points never contribute.
func ComputeFeatures(ca *clean.CleanedAlert) Features {
	var usable []clean.Point
	for _, p := range ca.Points {
		if p.Usable {
			usable = append(usable, p)
		}
	}

	f := Features{PointCount: len(usable)}
	if len(usable) == 0 {
		return f
	}

	// Peak is the brightest (numerically smallest) magnitude.
	peak := 0
	minMag, maxMag := usable[0].Magnitude, usable[0].Magnitude
	for i, p := range usable {
		if p.Magnitude < minMag {
			minMag = p.Magnitude
			peak = i
		}
		if p.Magnitude > maxMag {
			maxMag = p.Magnitude
		}
	}

	f.PeakMagnitude = minMag
	f.Amplitude = maxMag - minMag
	f.DurationDays = usable[len(usable)-1].MJD - usable[0].MJD

	first, last := usable[0], usable[len(usable)-1]
	atPeak := usable[peak]
	if dt := atPeak.MJD - first.MJD; dt > 0 {
		f.RiseRate = (first.Magnitude - atPeak.Magnitude) / dt
	}
	if dt := last.MJD - atPeak.MJD; dt > 0 {
		f.DeclineRate = (last.Magnitude - atPeak.Magnitude) / dt
	}

	f.ColorGR = colorIndex(usable, alert.BandG, alert.BandR)
	f.ColorRI = colorIndex(usable, alert.BandR, alert.BandI)
	return f
}

// colorIndex returns the difference between the mean magnitudes of two bands,
// or nil when either band has no usable points.
func colorIndex(points []clean.Point, a, b alert.Band) *float64 {
	meanA, okA := bandMean(points, a)
	meanB, okB := bandMean(points, b)
	if !okA || !okB {
		return nil
	}
	c := meanA - meanB
	return &c
}

func bandMean(points []clean.Point, band alert.Band) (float64, bool) {
	var sum float64
	var n int
	for _, p := range points {
		if p.Band == band {
			sum += p.Magnitude
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
