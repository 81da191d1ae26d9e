package models

import (
	"fmt"
	"math"
	"sort"
)

// Parameters maps parameter names to the values of a single contribution
type Parameters map[string]float64

// Clone returns a copy of the parameters
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Bounds is the closed interval a fit parameter is drawn from
type Bounds struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Validate checks that the bounds are finite and ordered
func (b Bounds) Validate() error {
	if math.IsNaN(b.Lower) || math.IsInf(b.Lower, 0) || math.IsNaN(b.Upper) || math.IsInf(b.Upper, 0) {
		return fmt.Errorf("%w: bounds must be finite, got [%g, %g]", ErrConfiguration, b.Lower, b.Upper)
	}
	if b.Lower >= b.Upper {
		return fmt.Errorf("%w: lower bound %g must be below upper bound %g", ErrConfiguration, b.Lower, b.Upper)
	}
	return nil
}

// Contains reports whether v lies inside the closed interval
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// ParameterBounds maps fit parameter names to their draw bounds
type ParameterBounds map[string]Bounds

// Names returns the fit parameter names in sorted order. The order defines the column
// order of a ParameterSet and therefore the order of random draws.
func (pb ParameterBounds) Names() []string {
	names := make([]string, 0, len(pb))
	for name := range pb {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every bound
func (pb ParameterBounds) Validate() error {
	if len(pb) == 0 {
		return fmt.Errorf("%w: at least one fit parameter is required", ErrConfiguration)
	}
	for _, name := range pb.Names() {
		if name == "" {
			return fmt.Errorf("%w: fit parameter name cannot be empty", ErrConfiguration)
		}
		if err := pb[name].Validate(); err != nil {
			return fmt.Errorf("fit parameter %s: %w", name, err)
		}
	}
	return nil
}

// Clone returns a copy of the bounds map
func (pb ParameterBounds) Clone() ParameterBounds {
	out := make(ParameterBounds, len(pb))
	for k, v := range pb {
		out[k] = v
	}
	return out
}

// StaticParameters are held fixed for all contributions during a run
type StaticParameters map[string]float64

// Clone returns a copy of the static parameters
func (sp StaticParameters) Clone() StaticParameters {
	out := make(StaticParameters, len(sp))
	for k, v := range sp {
		out[k] = v
	}
	return out
}

// CheckDisjoint verifies that no static parameter is also a fit parameter
func (sp StaticParameters) CheckDisjoint(bounds ParameterBounds) error {
	for name := range sp {
		if _, ok := bounds[name]; ok {
			return fmt.Errorf("%w: parameter %s is both static and fitted", ErrConfiguration, name)
		}
	}
	return nil
}

// ParameterSet is the ordered, index-addressable collection of contribution parameters.
// Values is row-major: Values[contribution][column], columns ordered as Names.
type ParameterSet struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// NewParameterSet allocates a parameter set with n zeroed rows
func NewParameterSet(names []string, n int) ParameterSet {
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, len(names))
	}
	return ParameterSet{Names: append([]string(nil), names...), Values: values}
}

// Len returns the number of contributions
func (ps ParameterSet) Len() int {
	return len(ps.Values)
}

// Row returns the parameters of contribution i as a map
func (ps ParameterSet) Row(i int) Parameters {
	out := make(Parameters, len(ps.Names))
	for j, name := range ps.Names {
		out[name] = ps.Values[i][j]
	}
	return out
}

// SetRow overwrites contribution i with params. Missing names are an error.
func (ps ParameterSet) SetRow(i int, params Parameters) error {
	if i < 0 || i >= len(ps.Values) {
		return fmt.Errorf("contribution index %d out of range [0, %d)", i, len(ps.Values))
	}
	for j, name := range ps.Names {
		v, ok := params[name]
		if !ok {
			return fmt.Errorf("parameter %s missing from replacement", name)
		}
		ps.Values[i][j] = v
	}
	return nil
}

// Column returns a copy of the values of one parameter across all contributions
func (ps ParameterSet) Column(name string) ([]float64, bool) {
	col := -1
	for j, n := range ps.Names {
		if n == name {
			col = j
			break
		}
	}
	if col < 0 {
		return nil, false
	}
	out := make([]float64, len(ps.Values))
	for i, row := range ps.Values {
		out[i] = row[col]
	}
	return out, true
}

// Clone returns a deep copy
func (ps ParameterSet) Clone() ParameterSet {
	out := ParameterSet{Names: append([]string(nil), ps.Names...), Values: make([][]float64, len(ps.Values))}
	for i, row := range ps.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// Termination is the terminal state of an optimization run
type Termination string

const (
	TerminationNone       Termination = ""
	TerminationConverged  Termination = "converged"
	TerminationMaxIter    Termination = "max_iter_reached"
	TerminationMaxAccept  Termination = "max_accept_reached"
	TerminationCancelled  Termination = "cancelled"
	TerminationModelError Termination = "model_error"
)

// OptimizationSettings are the convergence thresholds of a single run
type OptimizationSettings struct {
	MaxIter   int     `json:"max_iter"`
	MaxAccept int     `json:"max_accept"`
	ConvCrit  float64 `json:"conv_crit"`
}

// RepetitionResult is the converged state of one repetition and the unit of persistence
type RepetitionResult struct {
	Repetition         int
	ModelName          string
	ModelDType         string
	Seed               int64
	FitParameterLimits ParameterBounds
	StaticParameters   StaticParameters
	Contributions      ParameterSet
	Volumes            []float64
	ModelIntensity     []float64 // unscaled sum over contributions
	Scale              float64
	Background         float64
	Gof                float64
	Step               int
	Accepted           int
	AcceptedSteps      []int
	AcceptedGofs       []float64
	Settings           OptimizationSettings
	Termination        Termination
}

// ScaledIntensity returns the model intensity with the fitted scale and background applied
func (r *RepetitionResult) ScaledIntensity() []float64 {
	out := make([]float64, len(r.ModelIntensity))
	for i, v := range r.ModelIntensity {
		out[i] = v*r.Scale + r.Background
	}
	return out
}

// BinScale selects how histogram bin edges are spaced
type BinScale string

const (
	BinScaleLinear BinScale = "linear"
	BinScaleLog    BinScale = "log"
	BinScaleAuto   BinScale = "auto"
)

// WeightingVolume is the only implemented histogram weighting
const WeightingVolume = "vol"

// HistogramRange is one requested histogram over a fit parameter
type HistogramRange struct {
	Parameter      string   `json:"parameter" yaml:"parameter"`
	NBin           int      `json:"nBin" yaml:"nBin"`
	BinScale       BinScale `json:"binScale" yaml:"binScale"`
	BinWeighting   string   `json:"binWeighting" yaml:"binWeighting"`
	AutoRange      bool     `json:"autoRange" yaml:"autoRange"`
	PresetRangeMin float64  `json:"presetRangeMin" yaml:"presetRangeMin"`
	PresetRangeMax float64  `json:"presetRangeMax" yaml:"presetRangeMax"`
}

// Validate checks the range against the fit parameters it will be applied to
func (hr HistogramRange) Validate(bounds ParameterBounds) error {
	if _, ok := bounds[hr.Parameter]; !ok {
		return fmt.Errorf("%w: histogram parameter %q is not a fit parameter", ErrConfiguration, hr.Parameter)
	}
	if hr.NBin <= 0 {
		return fmt.Errorf("%w: nBin must be a positive integer, got %d", ErrConfiguration, hr.NBin)
	}
	switch hr.BinScale {
	case BinScaleLinear, BinScaleLog, BinScaleAuto:
	default:
		return fmt.Errorf("%w: binScale must be linear, log or auto, got %q", ErrConfiguration, hr.BinScale)
	}
	if hr.BinWeighting != WeightingVolume {
		return fmt.Errorf("%w: only volume-weighted binning (%q) is implemented, got %q", ErrConfiguration, WeightingVolume, hr.BinWeighting)
	}
	if !hr.AutoRange {
		if err := (Bounds{Lower: hr.PresetRangeMin, Upper: hr.PresetRangeMax}).Validate(); err != nil {
			return fmt.Errorf("histogram preset range: %w", err)
		}
		if hr.BinScale == BinScaleLog && hr.PresetRangeMin <= 0 {
			return fmt.Errorf("%w: log binning needs a positive range minimum, got %g", ErrConfiguration, hr.PresetRangeMin)
		}
	}
	return nil
}

// Resolve returns the effective [min, max] of the range
func (hr HistogramRange) Resolve(bounds ParameterBounds) Bounds {
	if hr.AutoRange {
		return bounds[hr.Parameter]
	}
	return Bounds{Lower: hr.PresetRangeMin, Upper: hr.PresetRangeMax}
}

// Moment names, in storage and report order
const (
	MomentTotalValue = "totalValue"
	MomentMean       = "mean"
	MomentVariance   = "variance"
	MomentSkew       = "skew"
	MomentKurtosis   = "kurtosis"
)

// MomentKeys lists the five population moments
var MomentKeys = []string{MomentTotalValue, MomentMean, MomentVariance, MomentSkew, MomentKurtosis}

// Moments are the five population statistics of one histogram range
type Moments struct {
	TotalValue float64 `json:"totalValue"`
	Mean       float64 `json:"mean"`
	Variance   float64 `json:"variance"`
	Skew       float64 `json:"skew"`
	Kurtosis   float64 `json:"kurtosis"`
}

// Get returns a moment by key
func (m Moments) Get(key string) float64 {
	switch key {
	case MomentTotalValue:
		return m.TotalValue
	case MomentMean:
		return m.Mean
	case MomentVariance:
		return m.Variance
	case MomentSkew:
		return m.Skew
	case MomentKurtosis:
		return m.Kurtosis
	}
	return math.NaN()
}

// Set assigns a moment by key
func (m *Moments) Set(key string, v float64) {
	switch key {
	case MomentTotalValue:
		m.TotalValue = v
	case MomentMean:
		m.Mean = v
	case MomentVariance:
		m.Variance = v
	case MomentSkew:
		m.Skew = v
	case MomentKurtosis:
		m.Kurtosis = v
	}
}

// MeanStd is a mean and sample standard deviation across repetitions
type MeanStd struct {
	Mean float64 `json:"valMean"`
	Std  float64 `json:"valStd"`
}

// Optimization parameter names tabulated across repetitions
const (
	OptScaling    = "scaling"
	OptBackground = "background"
	OptGof        = "gof"
	OptAccepted   = "accepted"
	OptStep       = "step"
)

// OptKeys lists the optimization parameters in report order
var OptKeys = []string{OptScaling, OptBackground, OptGof, OptAccepted, OptStep}

// OptValues returns the optimization summary of a repetition keyed by OptKeys
func (r *RepetitionResult) OptValues() map[string]float64 {
	return map[string]float64{
		OptScaling:    r.Scale,
		OptBackground: r.Background,
		OptGof:        r.Gof,
		OptAccepted:   float64(r.Accepted),
		OptStep:       float64(r.Step),
	}
}
