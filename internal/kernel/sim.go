package kernel

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"gonum.org/v1/gonum/interp"
)

// Sim rescales a reference curve. A contribution with size factor f samples the curve
// at Q·f; below the table the first intensity is held, above it the Porod tail
// y0 + scaling·Q⁻⁴ is used. Parameters: factor. Static: extrapY0, extrapScaling.
type Sim struct {
	q      []float64
	qMax   float64
	interp interp.PiecewiseLinear
}

func newSimFactory(q []float64, opts Options) (Evaluator, error) {
	return NewSim(q, opts.SimQ, opts.SimI)
}

// NewSim binds the reference curve (simQ strictly increasing) to a Q grid
func NewSim(q, simQ, simI []float64) (*Sim, error) {
	if len(simQ) < 2 || len(simQ) != len(simI) {
		return nil, fmt.Errorf("%w: sim model needs at least two reference points of equal length, got Q=%d I=%d",
			models.ErrConfiguration, len(simQ), len(simI))
	}
	for i := 1; i < len(simQ); i++ {
		if !(simQ[i] > simQ[i-1]) {
			return nil, fmt.Errorf("%w: sim reference Q must be strictly increasing (index %d)", models.ErrConfiguration, i)
		}
	}
	s := &Sim{q: append([]float64(nil), q...), qMax: simQ[len(simQ)-1]}
	if err := s.interp.Fit(simQ, simI); err != nil {
		return nil, fmt.Errorf("%w: sim reference curve: %v", models.ErrConfiguration, err)
	}
	return s, nil
}

// Evaluate returns I(Q·f)·f³ and the volume f³
func (s *Sim) Evaluate(params models.Parameters, static models.StaticParameters) ([]float64, float64, error) {
	f, ok := params["factor"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: sim needs a factor parameter", models.ErrConfiguration)
	}
	if !(f > 0) || math.IsInf(f, 0) {
		return nil, 0, fmt.Errorf("%w: factor %g", ErrParameterDomain, f)
	}
	y0 := merged(params, static, "extrapY0", 0)
	scaling := merged(params, static, "extrapScaling", 1)

	volume := f * f * f
	intensity := make([]float64, len(s.q))
	for i, q := range s.q {
		qs := q * f
		var v float64
		if qs > s.qMax {
			v = y0 + scaling/(qs*qs*qs*qs)
		} else {
			v = s.interp.Predict(qs)
		}
		// I·f⁶ is the volume-squared intensity; dividing by the volume gives I·f³.
		intensity[i] = v * volume
	}
	return intensity, volume, nil
}
