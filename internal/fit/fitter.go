// Package fit matches a model intensity curve to the measured intensity with a
// non-negative scale factor and a bounded flat background.
package fit

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
	"gonum.org/v1/gonum/floats"
)

// Solution is a (scale, background) pair
type Solution struct {
	Scale      float64
	Background float64
}

// Bounds constrains the solution. Scale.Upper may be +Inf.
type Bounds struct {
	Scale      models.Bounds
	Background models.Bounds
}

// tieTolerance is the relative objective difference below which two candidates are
// considered equally good; the one with the smaller |background| wins.
const tieTolerance = 1e-12

// ScaleBackgroundFitter minimizes Σ((I − (M·s + b))/σ)² / n over the box of Bounds.
// The objective is a convex quadratic in (s, b), so the minimum is found exactly by
// checking the interior stationary point and the minimum along each box edge.
// A fitter is immutable after construction and safe for concurrent Match calls.
type ScaleBackgroundFitter struct {
	measI  []float64
	weight []float64 // 1/σ²
	wI     []float64 // I/σ²
	n      float64

	sw, sy, syy float64
	bounds      Bounds
}

// DefaultBounds returns scale ∈ [0, ∞) and background ∈ [−mean(I), mean(I)]
func DefaultBounds(measI []float64) Bounds {
	m := math.Abs(floats.Sum(measI) / float64(len(measI)))
	return Bounds{
		Scale:      models.Bounds{Lower: 0, Upper: math.Inf(1)},
		Background: models.Bounds{Lower: -m, Upper: m},
	}
}

// NewScaleBackgroundFitter validates the measurement once. bounds may be nil for the
// defaults. Invalid input fails with models.ErrFitDegeneracy.
func NewScaleBackgroundFitter(measI, measSigma []float64, bounds *Bounds) (*ScaleBackgroundFitter, error) {
	if len(measI) == 0 {
		return nil, fmt.Errorf("%w: empty intensity", models.ErrFitDegeneracy)
	}
	if len(measI) != len(measSigma) {
		return nil, fmt.Errorf("%w: intensity has %d points, uncertainty %d", models.ErrFitDegeneracy, len(measI), len(measSigma))
	}
	if !utils.AllFinite(measI) || !utils.AllFinite(measSigma) {
		return nil, fmt.Errorf("%w: non-finite measurement values", models.ErrFitDegeneracy)
	}
	for i, s := range measSigma {
		if s <= 0 {
			return nil, fmt.Errorf("%w: uncertainty must be positive, got %g at index %d", models.ErrFitDegeneracy, s, i)
		}
	}

	b := DefaultBounds(measI)
	if bounds != nil {
		b = *bounds
	}
	if err := checkBounds(b); err != nil {
		return nil, err
	}

	f := &ScaleBackgroundFitter{
		measI:  append([]float64(nil), measI...),
		weight: make([]float64, len(measI)),
		wI:     make([]float64, len(measI)),
		n:      float64(len(measI)),
		bounds: b,
	}
	for i, s := range measSigma {
		f.weight[i] = 1 / (s * s)
	}
	floats.MulTo(f.wI, f.weight, f.measI)
	f.sw = floats.Sum(f.weight)
	f.sy = floats.Sum(f.wI)
	f.syy = floats.Dot(f.wI, f.measI)
	return f, nil
}

func checkBounds(b Bounds) error {
	if math.IsNaN(b.Scale.Lower) || math.IsNaN(b.Scale.Upper) || math.IsInf(b.Scale.Lower, 0) || b.Scale.Lower > b.Scale.Upper {
		return fmt.Errorf("%w: invalid scale bounds [%g, %g]", models.ErrFitDegeneracy, b.Scale.Lower, b.Scale.Upper)
	}
	if !utils.IsFinite(b.Background.Lower) || !utils.IsFinite(b.Background.Upper) || b.Background.Lower > b.Background.Upper {
		return fmt.Errorf("%w: invalid background bounds [%g, %g]", models.ErrFitDegeneracy, b.Background.Lower, b.Background.Upper)
	}
	return nil
}

// Bounds returns the effective solution bounds
func (f *ScaleBackgroundFitter) Bounds() Bounds {
	return f.bounds
}

// Len returns the number of measurement points
func (f *ScaleBackgroundFitter) Len() int {
	return len(f.measI)
}

// InitialGuess returns scale = median(I/M) (1.0 when not positive) and background =
// mean of the last ⌊4n/5⌋ intensities, both clipped into bounds
func (f *ScaleBackgroundFitter) InitialGuess(modelI []float64) Solution {
	ratios := make([]float64, 0, len(modelI))
	for i, m := range modelI {
		if m != 0 {
			if r := f.measI[i] / m; utils.IsFinite(r) {
				ratios = append(ratios, r)
			}
		}
	}
	scale := 1.0
	if len(ratios) > 0 {
		if med := utils.Median(ratios); med > 0 {
			scale = med
		}
	}

	k := len(f.measI) * 4 / 5
	tail := f.measI
	if k > 0 {
		tail = f.measI[len(f.measI)-k:]
	}
	background := floats.Sum(tail) / float64(len(tail))

	return Solution{
		Scale:      utils.ClampFloat64(scale, f.bounds.Scale.Lower, f.bounds.Scale.Upper),
		Background: utils.ClampFloat64(background, f.bounds.Background.Lower, f.bounds.Background.Upper),
	}
}

// Match returns the bounded least-squares (scale, background) for modelI and the reduced
// chi-square at that solution. x0 is only consulted when modelI carries no signal, in
// which case the scale is undetermined and x0 (or the initial guess when nil) is kept.
// Match does not allocate when x0 is non-nil.
func (f *ScaleBackgroundFitter) Match(modelI []float64, x0 *Solution) (Solution, float64, error) {
	if len(modelI) != len(f.measI) {
		return Solution{}, math.NaN(), fmt.Errorf("%w: model intensity has %d points, measurement %d", models.ErrFitDegeneracy, len(modelI), len(f.measI))
	}

	var smm, sm, smy float64
	for i, m := range modelI {
		wm := f.weight[i] * m
		sm += wm
		smm += wm * m
		smy += f.wI[i] * m
	}

	sb, bb := f.bounds.Scale, f.bounds.Background
	var best Solution
	if smm == 0 {
		start := x0
		if start == nil {
			g := f.InitialGuess(modelI)
			start = &g
		}
		best = Solution{
			Scale:      utils.ClampFloat64(start.Scale, sb.Lower, sb.Upper),
			Background: utils.ClampFloat64(f.sy/f.sw, bb.Lower, bb.Upper),
		}
		return best, f.reducedChiSquare(modelI, best), nil
	}

	q := quadratic{smm: smm, sm: sm, smy: smy, sw: f.sw, sy: f.sy, syy: f.syy}
	tol := tieTolerance * math.Max(f.syy, math.SmallestNonzeroFloat64)
	bestF := math.Inf(1)
	consider := func(s, b float64) {
		v := q.value(s, b)
		if v < bestF-tol || (math.Abs(v-bestF) <= tol && math.Abs(b) < math.Abs(best.Background)) {
			bestF = v
			best = Solution{Scale: s, Background: b}
		}
	}

	// interior stationary point
	if det := smm*f.sw - sm*sm; det > tieTolerance*smm*f.sw {
		s := (smy*f.sw - f.sy*sm) / det
		b := (f.sy*smm - smy*sm) / det
		if sb.Contains(s) && bb.Contains(b) {
			consider(s, b)
		}
	}
	// scale edges, background free
	consider(sb.Lower, utils.ClampFloat64((f.sy-sb.Lower*sm)/f.sw, bb.Lower, bb.Upper))
	if !math.IsInf(sb.Upper, 1) {
		consider(sb.Upper, utils.ClampFloat64((f.sy-sb.Upper*sm)/f.sw, bb.Lower, bb.Upper))
	}
	// background edges and zero background, scale free
	for _, b := range [3]float64{bb.Lower, bb.Upper, utils.ClampFloat64(0, bb.Lower, bb.Upper)} {
		consider(utils.ClampFloat64((smy-b*sm)/smm, sb.Lower, sb.Upper), b)
	}

	if math.IsInf(bestF, 1) {
		// only reachable with non-finite model values
		return Solution{Scale: math.NaN(), Background: math.NaN()}, math.NaN(), nil
	}
	return best, f.reducedChiSquare(modelI, best), nil
}

// ReducedChiSquare evaluates the objective at a given solution
func (f *ScaleBackgroundFitter) ReducedChiSquare(modelI []float64, x Solution) (float64, error) {
	if len(modelI) != len(f.measI) {
		return math.NaN(), fmt.Errorf("%w: model intensity has %d points, measurement %d", models.ErrFitDegeneracy, len(modelI), len(f.measI))
	}
	return f.reducedChiSquare(modelI, x), nil
}

func (f *ScaleBackgroundFitter) reducedChiSquare(modelI []float64, x Solution) float64 {
	sum := 0.0
	for i, m := range modelI {
		r := f.measI[i] - (m*x.Scale + x.Background)
		sum += r * r * f.weight[i]
	}
	return sum / f.n
}

// quadratic holds the weighted sums that define n·objective(s, b)
type quadratic struct {
	smm, sm, smy, sw, sy, syy float64
}

func (q quadratic) value(s, b float64) float64 {
	return q.syy - 2*s*q.smy - 2*b*q.sy + s*s*q.smm + 2*s*b*q.sm + b*b*q.sw
}
