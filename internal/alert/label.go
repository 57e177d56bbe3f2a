package alert

// Class is a well-known transient classification. The set is open: labels
// from upstream that are not recognized are carried as ClassOther with the
// raw string preserved, so novel classes are accepted without code changes
// while switches over Class stay exhaustive.
type Class string

const (
	ClassSNCandidate         Class = "SN candidate"
	ClassEarlySNIa           Class = "Early SN Ia candidate"
	ClassKilonova            Class = "Kilonova candidate"
	ClassMicrolensing        Class = "Microlensing candidate"
	ClassSolarSystemMPC      Class = "Solar System MPC"
	ClassVariableStar        Class = "Variable Star"
	ClassAGN                 Class = "AGN"
	ClassQSO                 Class = "QSO"
	ClassCataclysmicVariable Class = "Cataclysmic Variable"
	ClassUnknown             Class = "Unknown"
	ClassOther               Class = "Other"
)

var knownClasses = map[Class]bool{
	ClassSNCandidate:         true,
	ClassEarlySNIa:           true,
	ClassKilonova:            true,
	ClassMicrolensing:        true,
	ClassSolarSystemMPC:      true,
	ClassVariableStar:        true,
	ClassAGN:                 true,
	ClassQSO:                 true,
	ClassCataclysmicVariable: true,
	ClassUnknown:             true,
}

// Label is a classification label: a well-known Class, or ClassOther with
// the raw upstream string preserved.
type Label struct {
	Class Class  `json:"class"`
	Raw   string `json:"raw,omitempty"`
}

// ParseLabel maps an upstream label string to a Label. Empty strings map to
// Unknown; unrecognized strings map to Other with the raw value kept.
func ParseLabel(s string) Label {
	if s == "" {
		return Label{Class: ClassUnknown}
	}
	if knownClasses[Class(s)] {
		return Label{Class: Class(s)}
	}
	return Label{Class: ClassOther, Raw: s}
}

// Unknown is the label assigned when classification is unavailable.
func Unknown() Label { return Label{Class: ClassUnknown} }

// IsUnknown reports whether the label carries no usable class.
func (l Label) IsUnknown() bool { return l.Class == ClassUnknown || l.Class == "" }

// String returns the upstream representation of the label.
func (l Label) String() string {
	if l.Class == ClassOther {
		return l.Raw
	}
	return string(l.Class)
}
