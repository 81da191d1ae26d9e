// Package histogram bins the contributions of one repetition over configured parameter
// ranges and computes the population moments of each range.
package histogram

import (
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// DefaultCorrectionFactor converts model units (1/(cm sr), Ångström) to absolute units
// (1/(m sr), nm)
const DefaultCorrectionFactor = 1e-5

// RangeResult is the histogram and moments of one range for one repetition
type RangeResult struct {
	Index  int
	Range  models.HistogramRange
	Bounds models.Bounds
	Edges  []float64
	// Counts are the raw contribution counts per bin; Heights are Counts × scale ×
	// correction factor.
	Counts  []float64
	Heights []float64
	Moments models.Moments
}

// Histogrammer computes RangeResults. It holds no per-repetition state and may be shared.
type Histogrammer struct {
	correction float64
}

// New returns a histogrammer. A non-positive correction factor selects the default.
func New(correctionFactor float64) *Histogrammer {
	if correctionFactor <= 0 {
		correctionFactor = DefaultCorrectionFactor
	}
	return &Histogrammer{correction: correctionFactor}
}

// CorrectionFactor returns the unit conversion applied to heights and total values
func (h *Histogrammer) CorrectionFactor() float64 {
	return h.correction
}

// ValidateRanges checks every range against the fit parameters
func ValidateRanges(ranges []models.HistogramRange, bounds models.ParameterBounds) error {
	if len(ranges) == 0 {
		return fmt.Errorf("%w: at least one histogram range is required", models.ErrConfiguration)
	}
	for i, hr := range ranges {
		if err := hr.Validate(bounds); err != nil {
			return fmt.Errorf("histogram range %d: %w", i, err)
		}
	}
	return nil
}

// Histogram bins res over every range. bounds are the fit parameter limits used by
// auto ranges; nil uses the limits stored with the result. The result is not modified.
func (h *Histogrammer) Histogram(res *models.RepetitionResult, bounds models.ParameterBounds, ranges []models.HistogramRange) ([]RangeResult, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: repetition result is required", models.ErrConfiguration)
	}
	if bounds == nil {
		bounds = res.FitParameterLimits
	}
	if err := ValidateRanges(ranges, bounds); err != nil {
		return nil, err
	}

	out := make([]RangeResult, len(ranges))
	for i, hr := range ranges {
		values, ok := res.Contributions.Column(hr.Parameter)
		if !ok {
			return nil, fmt.Errorf("%w: histogram range %d: repetition %d has no parameter %q",
				models.ErrConfiguration, i, res.Repetition, hr.Parameter)
		}
		b := hr.Resolve(bounds)
		edges, err := BinEdges(hr, b, values)
		if err != nil {
			return nil, fmt.Errorf("histogram range %d: %w", i, err)
		}
		counts := Count(values, edges)
		heights := make([]float64, len(counts))
		for j, c := range counts {
			heights[j] = c * res.Scale * h.correction
		}
		out[i] = RangeResult{
			Index:   i,
			Range:   hr,
			Bounds:  b,
			Edges:   edges,
			Counts:  counts,
			Heights: heights,
			Moments: ComputeMoments(values, b, res.Scale, h.correction),
		}
	}
	return out, nil
}
