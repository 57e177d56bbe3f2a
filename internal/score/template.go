package score

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shukpa/astrophysics-data-engineering/internal/alert"
)

// Gaussian is an expected feature value with its spread.
type Gaussian struct {
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma"`
}

// Template is the expected-behavior model for one class: typical light-curve
// feature values and their spread. Templates are supplied as a versioned
// table; this package never derives or updates them.
type Template struct {
	RiseRate     Gaussian `yaml:"rise_rate"`
	DeclineRate  Gaussian `yaml:"decline_rate"`
	Amplitude    Gaussian `yaml:"amplitude"`
	DurationDays Gaussian `yaml:"duration_days"`
	ColorGR      Gaussian `yaml:"color_g_r"`
}

// Table is a versioned class-template lookup. The version is recorded on
// every assessment so a deviation score stays interpretable.
type Table struct {
	Version   string              `yaml:"version"`
	Templates map[string]Template `yaml:"templates"`
}

// LoadTable reads a template table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template table: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("template table %s has no version", path)
	}
	return &t, nil
}

// ID identifies the table for provenance (name@version).
func (t *Table) ID() string { return "class-templates@" + t.Version }

// Lookup returns the template for a label, keyed by its upstream string so
// Other labels can still carry templates. Unknown labels never match.
func (t *Table) Lookup(label alert.Label) (Template, bool) {
	if t == nil || label.IsUnknown() {
		return Template{}, false
	}
	tpl, ok := t.Templates[label.String()]
	return tpl, ok
}
