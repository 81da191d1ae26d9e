// Package kernel provides the model evaluators that turn one contribution's parameters
// into a scattering intensity over the measurement grid.
package kernel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// ErrParameterDomain is returned when a parameter draw lies outside the physical domain
// of a kernel (a non-positive radius, for example). Callers reject the candidate
// instead of aborting the run.
var ErrParameterDomain = errors.New("parameter outside model domain")

// ErrUnknownModel is returned by the registry for unregistered model names
var ErrUnknownModel = errors.New("unknown model")

// DType is the numeric type every kernel in this package computes in
const DType = "float64"

// Evaluator computes the volume-weighted intensity and the volume of one contribution.
// Evaluate must be deterministic for identical inputs. The returned slice is owned by
// the caller.
type Evaluator interface {
	Evaluate(params models.Parameters, static models.StaticParameters) ([]float64, float64, error)
}

// Releaser is implemented by evaluators holding resources that must be freed after a run
type Releaser interface {
	Release() error
}

// Options carries model-specific construction data
type Options struct {
	// SimQ and SimI hold the reference curve of the "sim" model
	SimQ []float64
	SimI []float64
}

// Factory builds a fresh evaluator bound to a Q grid. Each repetition calls the
// factory once so that no evaluator state is shared between goroutines.
type Factory func(q []float64, opts Options) (Evaluator, error)

var registry = map[string]Factory{
	"sphere":       newSphereFactory,
	"mcsas_sphere": newSphereFactory,
	"sim":          newSimFactory,
}

// New returns an evaluator for the named model, matched case-insensitively
func New(name string, q []float64, opts Options) (Evaluator, error) {
	factory, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q (available: %s)", models.ErrConfiguration, ErrUnknownModel, name, strings.Join(Names(), ", "))
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("%w: model %s needs a non-empty Q grid", models.ErrConfiguration, name)
	}
	return factory(q, opts)
}

// Exists reports whether a model name is registered
func Exists(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// Names lists the registered model names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release frees an evaluator's resources if it holds any
func Release(e Evaluator) error {
	if r, ok := e.(Releaser); ok {
		return r.Release()
	}
	return nil
}

func merged(params models.Parameters, static models.StaticParameters, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	if v, ok := static[key]; ok {
		return v
	}
	return fallback
}
