// Package population holds the contribution set of a single repetition.
package population

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
	"gonum.org/v1/gonum/floats"
)

// ModelState owns the contributions of one repetition: their parameters, volumes and
// cached intensities. It is not safe for concurrent use.
type ModelState struct {
	bounds    models.ParameterBounds
	names     []string
	static    models.StaticParameters
	evaluator kernel.Evaluator
	rng       *utils.RandSource

	params      models.ParameterSet
	volumes     []float64
	intensities [][]float64
}

// New draws nContrib contributions uniformly within bounds and evaluates each one once.
// Draws are row-major: every parameter of contribution 0, then contribution 1, and so
// on, parameters in sorted name order.
func New(nContrib int, bounds models.ParameterBounds, static models.StaticParameters, seed int64, evaluator kernel.Evaluator) (*ModelState, error) {
	if nContrib < 1 {
		return nil, fmt.Errorf("%w: nContrib must be positive, got %d", models.ErrConfiguration, nContrib)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if err := static.CheckDisjoint(bounds); err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, fmt.Errorf("%w: model evaluator is required", models.ErrConfiguration)
	}

	ms := &ModelState{
		bounds:      bounds.Clone(),
		names:       bounds.Names(),
		static:      static.Clone(),
		evaluator:   evaluator,
		rng:         utils.NewRandSource(seed),
		volumes:     make([]float64, nContrib),
		intensities: make([][]float64, nContrib),
	}
	ms.params = models.NewParameterSet(ms.names, nContrib)
	for i := 0; i < nContrib; i++ {
		ms.draw(ms.params.Values[i])
	}

	for i := 0; i < nContrib; i++ {
		intensity, volume, err := ms.Evaluate(ms.params.Row(i))
		if err != nil {
			if errors.Is(err, kernel.ErrParameterDomain) {
				return nil, fmt.Errorf("%w: initial contribution %d outside model domain, check bounds: %v", models.ErrConfiguration, i, err)
			}
			return nil, fmt.Errorf("initial contribution %d: %w", i, err)
		}
		if i > 0 && len(intensity) != len(ms.intensities[0]) {
			return nil, fmt.Errorf("%w: contribution %d intensity has %d points, expected %d",
				models.ErrModelEvaluation, i, len(intensity), len(ms.intensities[0]))
		}
		ms.intensities[i] = intensity
		ms.volumes[i] = volume
	}
	return ms, nil
}

func (ms *ModelState) draw(row []float64) {
	for j, name := range ms.names {
		b := ms.bounds[name]
		row[j] = ms.rng.UniformFloat64(b.Lower, b.Upper)
	}
}

// Pick draws one candidate from the same distribution without touching the stored set
func (ms *ModelState) Pick() models.Parameters {
	row := make([]float64, len(ms.names))
	ms.draw(row)
	out := make(models.Parameters, len(ms.names))
	for j, name := range ms.names {
		out[name] = row[j]
	}
	return out
}

// Evaluate computes the intensity and volume of a parameter draw merged with the static
// parameters. Domain violations keep kernel.ErrParameterDomain in the chain; every
// other failure is a models.ErrModelEvaluation.
func (ms *ModelState) Evaluate(params models.Parameters) ([]float64, float64, error) {
	intensity, volume, err := ms.evaluator.Evaluate(params, ms.static)
	if err != nil {
		if errors.Is(err, kernel.ErrParameterDomain) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %w", models.ErrModelEvaluation, err)
	}
	return intensity, volume, nil
}

// Replace commits an accepted candidate at index
func (ms *ModelState) Replace(index int, params models.Parameters, intensity []float64, volume float64) error {
	if err := ms.params.SetRow(index, params); err != nil {
		return fmt.Errorf("replace contribution: %w", err)
	}
	ms.intensities[index] = intensity
	ms.volumes[index] = volume
	return nil
}

// Len returns the number of contributions
func (ms *ModelState) Len() int {
	return ms.params.Len()
}

// Intensity returns the cached intensity of contribution i. The slice must not be modified.
func (ms *ModelState) Intensity(i int) []float64 {
	return ms.intensities[i]
}

// TotalIntensity returns the unnormalized sum of all contribution intensities
func (ms *ModelState) TotalIntensity() []float64 {
	if len(ms.intensities) == 0 {
		return nil
	}
	total := make([]float64, len(ms.intensities[0]))
	for _, in := range ms.intensities {
		floats.Add(total, in)
	}
	return total
}

// Parameters returns a copy of the contribution set
func (ms *ModelState) Parameters() models.ParameterSet {
	return ms.params.Clone()
}

// Volumes returns a copy of the contribution volumes
func (ms *ModelState) Volumes() []float64 {
	return append([]float64(nil), ms.volumes...)
}

// Bounds returns the fit parameter bounds
func (ms *ModelState) Bounds() models.ParameterBounds {
	return ms.bounds.Clone()
}

// Static returns the static parameters
func (ms *ModelState) Static() models.StaticParameters {
	return ms.static.Clone()
}

// Seed returns the seed actually used, which differs from the requested one when that was zero
func (ms *ModelState) Seed() int64 {
	return ms.rng.Seed()
}
