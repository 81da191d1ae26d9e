package montecarlo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoreBaseline(t *testing.T) {
	meas := bumpMeasurement()
	eval := &bumpEvaluator{q: meas.Q}
	core, err := NewCore(meas, bumpConfig(eval, models.OptimizationSettings{MaxIter: 10, ConvCrit: 1}))
	require.NoError(t, err)

	assert.Equal(t, PhaseInitialized, core.Phase())
	assert.Equal(t, models.TerminationNone, core.Termination())
	assert.Equal(t, 10, eval.calls)

	s := core.State()
	assert.Equal(t, 0, s.Step)
	assert.Equal(t, 0, s.Accepted)
	assert.Equal(t, []int{0}, s.AcceptedSteps)
	assert.Equal(t, []float64{s.Gof}, s.AcceptedGofs)
	assert.Len(t, s.ModelI, meas.Len())
	assert.False(t, math.IsNaN(s.Gof))
}

func TestIterateAcceptsOnlyImprovements(t *testing.T) {
	meas := bumpMeasurement()
	core, err := NewCore(meas, bumpConfig(&bumpEvaluator{q: meas.Q}, models.OptimizationSettings{MaxIter: 1000, ConvCrit: -1}))
	require.NoError(t, err)

	prev := core.State().Gof
	for i := 0; i < 400; i++ {
		accepted, err := core.Iterate()
		require.NoError(t, err)
		s := core.State()
		if accepted {
			assert.Less(t, s.Gof, prev, "iteration %d", i)
		} else {
			assert.Equal(t, prev, s.Gof, "iteration %d", i)
		}
		assert.Equal(t, i+1, s.Step)
		assert.LessOrEqual(t, s.Accepted, s.Step)
		prev = s.Gof
	}

	s := core.State()
	assert.Greater(t, s.Accepted, 0)
	require.Len(t, s.AcceptedSteps, s.Accepted+1)
	require.Len(t, s.AcceptedGofs, s.Accepted+1)
	for i := 1; i < len(s.AcceptedSteps); i++ {
		assert.Greater(t, s.AcceptedSteps[i], s.AcceptedSteps[i-1])
		assert.Less(t, s.AcceptedGofs[i], s.AcceptedGofs[i-1])
	}
	assert.Equal(t, PhaseIterating, core.Phase())
}

func TestModelIntensityTracksPopulation(t *testing.T) {
	meas := bumpMeasurement()
	core, err := NewCore(meas, bumpConfig(&bumpEvaluator{q: meas.Q}, models.OptimizationSettings{MaxIter: 500, ConvCrit: -1}))
	require.NoError(t, err)

	_, err = core.Optimize(context.Background())
	require.NoError(t, err)

	want := core.Population().TotalIntensity()
	got := core.State().ModelI
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9*math.Max(1, math.Abs(want[i])))
	}

	gof, err := core.fitter.ReducedChiSquare(got, core.State().X)
	require.NoError(t, err)
	assert.InDelta(t, core.State().Gof, gof, 1e-9)
}

func TestOptimizeTermination(t *testing.T) {
	tests := []struct {
		name      string
		settings  models.OptimizationSettings
		want      models.Termination
		checkStep func(t *testing.T, s State)
	}{
		{
			name:     "converged before first iteration",
			settings: models.OptimizationSettings{MaxIter: 100, ConvCrit: 1e12},
			want:     models.TerminationConverged,
			checkStep: func(t *testing.T, s State) {
				assert.Equal(t, 0, s.Step)
			},
		},
		{
			name:     "convergence wins over max iter",
			settings: models.OptimizationSettings{MaxIter: 1, ConvCrit: 1e12},
			want:     models.TerminationConverged,
		},
		{
			name:     "max accept",
			settings: models.OptimizationSettings{MaxIter: 100000, MaxAccept: 2, ConvCrit: -1},
			want:     models.TerminationMaxAccept,
			checkStep: func(t *testing.T, s State) {
				assert.Equal(t, 2, s.Accepted)
			},
		},
		{
			name:     "max iter",
			settings: models.OptimizationSettings{MaxIter: 25, ConvCrit: -1},
			want:     models.TerminationMaxIter,
			checkStep: func(t *testing.T, s State) {
				assert.Equal(t, 25, s.Step)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meas := bumpMeasurement()
			core, err := NewCore(meas, bumpConfig(&bumpEvaluator{q: meas.Q}, tt.settings))
			require.NoError(t, err)

			term, err := core.Optimize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, term)
			assert.Equal(t, tt.want, core.Termination())
			assert.Equal(t, PhaseTerminated, core.Phase())
			if tt.checkStep != nil {
				tt.checkStep(t, core.State())
			}
		})
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	meas := bumpMeasurement()
	settings := models.OptimizationSettings{MaxIter: 300, ConvCrit: -1}

	run := func() *models.RepetitionResult {
		core, err := NewCore(meas, bumpConfig(&bumpEvaluator{q: meas.Q}, settings))
		require.NoError(t, err)
		_, err = core.Optimize(context.Background())
		require.NoError(t, err)
		return core.Result()
	}

	a, b := run(), run()
	assert.Equal(t, a.Gof, b.Gof)
	assert.Equal(t, a.Scale, b.Scale)
	assert.Equal(t, a.Background, b.Background)
	assert.Equal(t, a.Contributions.Values, b.Contributions.Values)
	assert.Equal(t, a.AcceptedSteps, b.AcceptedSteps)
	assert.Equal(t, int64(1234), a.Seed)
}

func TestIterateRejectsDomainViolations(t *testing.T) {
	meas := bumpMeasurement()
	eval := &bumpEvaluator{q: meas.Q, failAfter: 10, failErr: kernel.ErrParameterDomain}
	core, err := NewCore(meas, bumpConfig(eval, models.OptimizationSettings{MaxIter: 20, ConvCrit: -1}))
	require.NoError(t, err)
	before := core.State()

	term, err := core.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TerminationMaxIter, term)

	after := core.State()
	assert.Equal(t, 20, after.Step)
	assert.Equal(t, 0, after.Accepted)
	assert.Equal(t, 20, core.rejected)
	assert.Equal(t, before.Gof, after.Gof)
	assert.Equal(t, before.ModelI, after.ModelI)
}

func TestOptimizeAbortsOnModelError(t *testing.T) {
	meas := bumpMeasurement()
	eval := &bumpEvaluator{q: meas.Q, failAfter: 10, failErr: errBroken}
	core, err := NewCore(meas, bumpConfig(eval, models.OptimizationSettings{MaxIter: 20, ConvCrit: -1}))
	require.NoError(t, err)

	term, err := core.Optimize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrModelEvaluation)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, models.TerminationModelError, term)
	assert.Equal(t, PhaseTerminated, core.Phase())

	_, err = core.Iterate()
	assert.Error(t, err, "a terminated core does not iterate")
}

func TestOptimizeCancelled(t *testing.T) {
	meas := bumpMeasurement()
	core, err := NewCore(meas, bumpConfig(&bumpEvaluator{q: meas.Q}, models.OptimizationSettings{MaxIter: 1000, ConvCrit: -1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	term, err := core.Optimize(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, models.TerminationCancelled, term)
	assert.Equal(t, 0, core.State().Step)
}

func TestNewCoreValidation(t *testing.T) {
	meas := bumpMeasurement()
	tests := []struct {
		name   string
		meas   *models.MeasurementData
		mutate func(c *CoreConfig)
	}{
		{name: "nil measurement", meas: nil},
		{name: "zero max iter", meas: meas, mutate: func(c *CoreConfig) { c.Settings.MaxIter = 0 }},
		{name: "negative max accept", meas: meas, mutate: func(c *CoreConfig) { c.Settings.MaxAccept = -1 }},
		{name: "NaN conv crit", meas: meas, mutate: func(c *CoreConfig) { c.Settings.ConvCrit = math.NaN() }},
		{name: "zero contributions", meas: meas, mutate: func(c *CoreConfig) { c.NContrib = 0 }},
		{name: "inverted bounds", meas: meas, mutate: func(c *CoreConfig) {
			c.Bounds = models.ParameterBounds{"radius": {Lower: 5, Upper: 1}}
		}},
		{name: "missing evaluator", meas: meas, mutate: func(c *CoreConfig) { c.Evaluator = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := bumpConfig(&bumpEvaluator{q: meas.Q}, models.OptimizationSettings{MaxIter: 10, ConvCrit: 1})
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, err := NewCore(tt.meas, cfg)
			assert.ErrorIs(t, err, models.ErrConfiguration)
		})
	}
}

func TestSpherePorodScenario(t *testing.T) {
	n := 100
	meas := &models.MeasurementData{Q: make([]float64, n), I: make([]float64, n), ISigma: make([]float64, n)}
	for i := 0; i < n; i++ {
		q := 0.01 * math.Pow(100, float64(i)/float64(n-1))
		meas.Q[i] = q
		meas.I[i] = 3*math.Pow(q, -4) + 0.5
		meas.ISigma[i] = 0.01 * meas.I[i]
	}

	core, err := NewCore(meas, CoreConfig{
		ModelName: "sphere",
		NContrib:  50,
		Bounds:    models.ParameterBounds{"radius": {Lower: 1, Upper: 100}},
		Seed:      7,
		Settings:  models.OptimizationSettings{MaxIter: 5000, MaxAccept: 200, ConvCrit: 1.5},
		Evaluator: kernel.NewSphere(meas.Q),
	})
	require.NoError(t, err)
	initial := core.State().Gof

	term, err := core.Optimize(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []models.Termination{
		models.TerminationConverged, models.TerminationMaxAccept, models.TerminationMaxIter,
	}, term)

	res := core.Result()
	assert.LessOrEqual(t, res.Gof, initial)
	assert.LessOrEqual(t, res.Accepted, 200)
	assert.LessOrEqual(t, res.Step, 5000)
	require.Len(t, res.AcceptedGofs, res.Accepted+1)
	assert.Equal(t, initial, res.AcceptedGofs[0])
	for i := 1; i < len(res.AcceptedGofs); i++ {
		assert.LessOrEqual(t, res.AcceptedGofs[i], res.AcceptedGofs[i-1], "accepted gof %d", i)
	}
	assert.Equal(t, res.Gof, res.AcceptedGofs[len(res.AcceptedGofs)-1])
	assert.Equal(t, "float64", res.ModelDType)
	assert.Len(t, res.Volumes, 50)
	radii, ok := res.Contributions.Column("radius")
	require.True(t, ok)
	for _, r := range radii {
		assert.GreaterOrEqual(t, r, 1.0)
		assert.LessOrEqual(t, r, 100.0)
	}
}
