package config

import (
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"gopkg.in/yaml.v3"
)

// RunConfig describes one Monte-Carlo fit: the model, its free parameters and the
// optimization thresholds shared by every repetition
type RunConfig struct {
	ModelName          string                    `yaml:"modelName"`
	NContrib           int                       `yaml:"nContrib"`
	FitParameterLimits map[string]ParameterLimit `yaml:"fitParameterLimits"`
	StaticParameters   map[string]float64        `yaml:"staticParameters,omitempty"`
	SimData            *SimData                  `yaml:"simData,omitempty"`
	MaxIter            int                       `yaml:"maxIter"`
	MaxAccept          int                       `yaml:"maxAccept"` // 0 = unlimited
	ConvCrit           *float64                  `yaml:"convCrit"` // nil = DefaultConvCrit
	NRep               int                       `yaml:"nRep"`
	NCores             int                       `yaml:"nCores"` // 0 = auto
	Seed               int64                     `yaml:"seed"`   // 0 = time-based
	ResultIndex        int                       `yaml:"resultIndex"`
}

// SimData is the reference curve for the interpolating simulation model
type SimData struct {
	Q []float64 `yaml:"Q"`
	I []float64 `yaml:"I"`
}

// ParameterLimit is either the string "auto" or a two-element [lower, upper] list
type ParameterLimit struct {
	Auto  bool
	Lower float64
	Upper float64
}

// UnmarshalYAML accepts `auto` or `[lower, upper]`
func (p *ParameterLimit) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != "auto" {
			return fmt.Errorf("line %d: limit must be 'auto' or [lower, upper], got %q", value.Line, value.Value)
		}
		*p = ParameterLimit{Auto: true}
		return nil
	case yaml.SequenceNode:
		var pair []float64
		if err := value.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: limit needs exactly two values, got %d", value.Line, len(pair))
		}
		*p = ParameterLimit{Lower: pair[0], Upper: pair[1]}
		return nil
	default:
		return fmt.Errorf("line %d: limit must be 'auto' or [lower, upper]", value.Line)
	}
}

// MarshalYAML writes the limit back in the form it was read
func (p ParameterLimit) MarshalYAML() (interface{}, error) {
	if p.Auto {
		return "auto", nil
	}
	return []float64{p.Lower, p.Upper}, nil
}

// Limits converts the configured limits to the model representation
func (c *RunConfig) Limits() models.FitLimits {
	out := make(models.FitLimits, len(c.FitParameterLimits))
	for name, l := range c.FitParameterLimits {
		out[name] = models.Limit{Auto: l.Auto, Bounds: models.Bounds{Lower: l.Lower, Upper: l.Upper}}
	}
	return out
}

// Static returns the static parameters as a model map
func (c *RunConfig) Static() models.StaticParameters {
	out := make(models.StaticParameters, len(c.StaticParameters))
	for k, v := range c.StaticParameters {
		out[k] = v
	}
	return out
}

// Settings returns the per-repetition optimization thresholds
func (c *RunConfig) Settings() models.OptimizationSettings {
	convCrit := DefaultConvCrit
	if c.ConvCrit != nil {
		convCrit = *c.ConvCrit
	}
	return models.OptimizationSettings{MaxIter: c.MaxIter, MaxAccept: c.MaxAccept, ConvCrit: convCrit}
}

// HistConfig lists the histogram ranges evaluated after a run
type HistConfig struct {
	Ranges           []models.HistogramRange `yaml:"ranges"`
	CorrectionFactor float64                 `yaml:"correctionFactor"`
}

// ReadConfig describes how a column-text measurement file is read and prepared
type ReadConfig struct {
	Delimiter   string      `yaml:"delimiter"` // "" = any whitespace
	SkipRows    int         `yaml:"skipRows"`
	Columns     []string    `yaml:"columns"` // order of Q, I, ISigma (and optionally Qy)
	QMin        float64     `yaml:"qMin"`
	QMax        float64     `yaml:"qMax"` // 0 = no upper clip
	OmitQRanges [][]float64 `yaml:"omitQRanges,omitempty"`
	IEmin       float64     `yaml:"IEmin"`
}

// Defaults applied to omitted fields
const (
	DefaultNContrib         = 300
	DefaultMaxIter          = 100000
	DefaultConvCrit         = 1.0
	DefaultNRep             = 10
	DefaultCorrectionFactor = 1e-5
	DefaultIEmin            = 0.01
)

// DefaultColumns is the column order of a three-column measurement file
var DefaultColumns = []string{"Q", "I", "ISigma"}
