package kernel

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// Sphere is the analytic form factor of a homogeneous sphere.
// Parameters: radius (nm). Static: sld, sld_solvent (1e-6/Å²).
type Sphere struct {
	q []float64
}

func newSphereFactory(q []float64, _ Options) (Evaluator, error) {
	return NewSphere(q), nil
}

// NewSphere binds a sphere kernel to a Q grid (1/nm)
func NewSphere(q []float64) *Sphere {
	return &Sphere{q: append([]float64(nil), q...)}
}

// Evaluate returns V·(Δρ/100)²·F(qr)² and the volume 4/3·π·r³.
// The 1/100 converts the contrast from 1/Å² to 1/nm².
func (s *Sphere) Evaluate(params models.Parameters, static models.StaticParameters) ([]float64, float64, error) {
	r, ok := params["radius"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: sphere needs a radius parameter", models.ErrConfiguration)
	}
	if !(r > 0) || math.IsInf(r, 0) {
		return nil, 0, fmt.Errorf("%w: radius %g", ErrParameterDomain, r)
	}
	contrast := (merged(params, static, "sld", 1) - merged(params, static, "sld_solvent", 0)) / 1e2
	volume := 4.0 / 3.0 * math.Pi * r * r * r
	prefactor := volume * contrast * contrast

	intensity := make([]float64, len(s.q))
	for i, q := range s.q {
		f := sphereAmplitude(q * r)
		intensity[i] = prefactor * f * f
	}
	return intensity, volume, nil
}

// sphereAmplitude is 3(sin x − x cos x)/x³, with its series expansion near zero
func sphereAmplitude(x float64) float64 {
	if math.Abs(x) < 1e-4 {
		return 1 - x*x/10
	}
	return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
}
