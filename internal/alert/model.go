// Package alert defines the raw (bronze tier) alert model and its schema
// contract. A RawAlert is immutable once ingested: every later tier derives a
// new artifact from it and never writes back.
package alert

import "time"

// jdOffset converts Julian Date to Modified Julian Date.
const jdOffset = 2400000.5

// Band is a photometric filter band.
type Band string

const (
	BandG Band = "g"
	BandR Band = "r"
	BandI Band = "i"
)

// KnownBands is the set of bands accepted by schema validation.
var KnownBands = map[Band]bool{
	BandG: true,
	BandR: true,
	BandI: true,
}

// BandFromFilterID maps a ZTF numeric filter ID (1=g, 2=r, 3=i) to a Band.
// Unknown IDs return an empty Band, which fails validation.
func BandFromFilterID(fid int) Band {
	switch fid {
	case 1:
		return BandG
	case 2:
		return BandR
	case 3:
		return BandI
	default:
		return ""
	}
}

// Detection is one historical measurement from the alert's light-curve
// history. A nil Magnitude means the epoch was observed but nothing was
// detected (the DiffMagLimit upper limit applies instead).
type Detection struct {
	JD           float64  `json:"jd"`
	Band         Band     `json:"band"`
	Magnitude    *float64 `json:"magnitude,omitempty"`
	Uncertainty  *float64 `json:"uncertainty,omitempty"`
	DiffMagLimit *float64 `json:"diffmaglim,omitempty"`
	IsDiffPos    string   `json:"isdiffpos,omitempty"`
}

// MJD returns the detection epoch as a Modified Julian Date.
func (d Detection) MJD() float64 { return d.JD - jdOffset }

// IsDetection reports whether this point carries a measured magnitude.
func (d Detection) IsDetection() bool { return d.Magnitude != nil }

// RawAlert is a single transient detection event as received from the
// upstream broker, plus ingestion metadata. Created once, never mutated.
type RawAlert struct {
	// CandidateID uniquely identifies this detection event.
	CandidateID string `json:"candid"`

	// ObjectID groups detections of the same physical source over time.
	ObjectID string `json:"object_id"`

	RA  float64 `json:"ra"`  // right ascension, degrees [0, 360)
	Dec float64 `json:"dec"` // declination, degrees [-90, 90]

	Magnitude   float64 `json:"magnitude"`
	Uncertainty float64 `json:"uncertainty"`
	Band        Band    `json:"band"`

	// ObservedJD is the observation epoch as a Julian Date.
	ObservedJD float64 `json:"jd"`

	DiffMagLimit  *float64 `json:"diffmaglim,omitempty"`
	RealBogus     *float64 `json:"rb,omitempty"`  // real/bogus score [0, 1]
	DeepRealBogus *float64 `json:"drb,omitempty"` // deep-learning real/bogus [0, 1]

	// History holds up to ~30 days of prior detections for the same object,
	// ordered by epoch.
	History []Detection `json:"prv_candidates,omitempty"`

	Source     string    `json:"source,omitempty"`
	IngestedAt time.Time `json:"ingested_at,omitempty"`
}

// MJD returns the observation epoch as a Modified Julian Date.
func (a *RawAlert) MJD() float64 { return a.ObservedJD - jdOffset }
