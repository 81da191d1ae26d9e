package montecarlo

import (
	"errors"
	"math"
	"sync"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// bumpEvaluator returns a unit Gaussian bump centred at the radius parameter
type bumpEvaluator struct {
	q []float64

	mu    sync.Mutex
	calls int
	// failAfter makes every call past this count fail with failErr (0 disables)
	failAfter int
	failErr   error
	released  bool
}

func (e *bumpEvaluator) Evaluate(params models.Parameters, _ models.StaticParameters) ([]float64, float64, error) {
	e.mu.Lock()
	e.calls++
	calls := e.calls
	e.mu.Unlock()
	if e.failAfter > 0 && calls > e.failAfter {
		return nil, 0, e.failErr
	}
	r := params["radius"]
	out := make([]float64, len(e.q))
	for i, q := range e.q {
		d := q - r
		out[i] = math.Exp(-d * d)
	}
	return out, r * r * r, nil
}

func (e *bumpEvaluator) Release() error {
	e.released = true
	return nil
}

// bumpMeasurement holds two bumps at 4 and 7 plus a flat background of 0.1
func bumpMeasurement() *models.MeasurementData {
	n := 60
	meas := &models.MeasurementData{
		Q:      make([]float64, n),
		I:      make([]float64, n),
		ISigma: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		q := 1 + 10*float64(i)/float64(n-1)
		a, b := q-4, q-7
		meas.Q[i] = q
		meas.I[i] = 3*math.Exp(-a*a) + 2*math.Exp(-b*b) + 0.1
		meas.ISigma[i] = 0.01 * meas.I[i]
	}
	return meas
}

var bumpBounds = models.ParameterBounds{"radius": {Lower: 1, Upper: 10}}

func bumpConfig(eval kernel.Evaluator, settings models.OptimizationSettings) CoreConfig {
	return CoreConfig{
		ModelName: "bump",
		NContrib:  10,
		Bounds:    bumpBounds,
		Seed:      1234,
		Settings:  settings,
		Evaluator: eval,
	}
}

var errBroken = errors.New("kernel broken")
