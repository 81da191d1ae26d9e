package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"mcsas_sphere", "sim", "sphere"}, Names())
	assert.True(t, Exists("Sphere"))
	assert.False(t, Exists("cylinder"))

	_, err := New("cylinder", []float64{0.1}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = New("sphere", nil, Options{})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	e, err := New("MCSAS_SPHERE", []float64{0.1}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Sphere{}, e)
	assert.NoError(t, Release(e))
}

func TestSphereEvaluate(t *testing.T) {
	q := []float64{1e-6, 0.1, 1, 4.4934 / 10}
	s := NewSphere(q)

	intensity, volume, err := s.Evaluate(models.Parameters{"radius": 10}, models.StaticParameters{"sld": 11, "sld_solvent": 1})
	require.NoError(t, err)
	require.Len(t, intensity, len(q))

	wantV := 4.0 / 3.0 * math.Pi * 1000
	assert.InDelta(t, wantV, volume, 1e-9)

	// forward scattering: V·(Δρ/100)²
	assert.InEpsilon(t, wantV*0.01, intensity[0], 1e-6)

	// first zero of the amplitude at qr ≈ 4.4934
	assert.Less(t, intensity[3], intensity[0]*1e-8)

	// explicit form at q=0.1, r=10
	x := 1.0
	f := 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
	assert.InEpsilon(t, wantV*0.01*f*f, intensity[1], 1e-12)
}

func TestSphereDefaultsAndDomain(t *testing.T) {
	s := NewSphere([]float64{0.5})

	withDefaults, _, err := s.Evaluate(models.Parameters{"radius": 2}, nil)
	require.NoError(t, err)
	explicit, _, err := s.Evaluate(models.Parameters{"radius": 2}, models.StaticParameters{"sld": 1, "sld_solvent": 0})
	require.NoError(t, err)
	assert.Equal(t, explicit, withDefaults)

	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, _, err := s.Evaluate(models.Parameters{"radius": r}, nil)
		assert.ErrorIs(t, err, ErrParameterDomain, "radius %v", r)
	}

	_, _, err = s.Evaluate(models.Parameters{"length": 2}, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSimEvaluate(t *testing.T) {
	simQ := []float64{0.1, 0.2, 0.4}
	simI := []float64{100, 50, 10}
	s, err := NewSim([]float64{0.05, 0.15, 0.4, 1.0}, simQ, simI)
	require.NoError(t, err)

	static := models.StaticParameters{"extrapY0": 2, "extrapScaling": 0.5}
	intensity, volume, err := s.Evaluate(models.Parameters{"factor": 1}, static)
	require.NoError(t, err)
	assert.Equal(t, 1.0, volume)
	assert.InDelta(t, 100, intensity[0], 1e-12) // below table: first value held
	assert.InDelta(t, 75, intensity[1], 1e-12)  // interpolated
	assert.InDelta(t, 10, intensity[2], 1e-12)  // last table point
	assert.InDelta(t, 2+0.5, intensity[3], 1e-12)

	// factor 2 samples at 2Q and multiplies by 8
	intensity, volume, err = s.Evaluate(models.Parameters{"factor": 2}, static)
	require.NoError(t, err)
	assert.Equal(t, 8.0, volume)
	assert.InDelta(t, 8*100, intensity[0], 1e-9) // 0.1
	assert.InDelta(t, 8*(50-40*0.5), intensity[1], 1e-9)
	assert.InDelta(t, 8*(2+0.5/math.Pow(0.8, 4)), intensity[2], 1e-9)

	_, _, err = s.Evaluate(models.Parameters{"factor": 0}, static)
	assert.ErrorIs(t, err, ErrParameterDomain)
}

func TestNewSimValidation(t *testing.T) {
	_, err := NewSim([]float64{0.1}, []float64{0.1}, []float64{1})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = NewSim([]float64{0.1}, []float64{0.2, 0.1}, []float64{1, 2})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = New("sim", []float64{0.1}, Options{SimQ: []float64{0.1, 0.2}, SimI: []float64{1, 2}})
	assert.NoError(t, err)
}

func TestEvaluatorsAreDeterministic(t *testing.T) {
	q := []float64{0.01, 0.1, 1}
	a, _, err := NewSphere(q).Evaluate(models.Parameters{"radius": 3.3}, nil)
	require.NoError(t, err)
	b, _, err := NewSphere(q).Evaluate(models.Parameters{"radius": 3.3}, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.False(t, errors.Is(err, ErrParameterDomain))
}
