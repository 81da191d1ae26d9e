package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/histogram"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = models.ParameterBounds{"radius": {Lower: 0, Upper: 100}}

func repetition(rep int, radii []float64, scale, gof float64) *models.RepetitionResult {
	ps := models.NewParameterSet([]string{"radius"}, len(radii))
	for i, r := range radii {
		ps.Values[i][0] = r
	}
	return &models.RepetitionResult{
		Repetition:         rep,
		ModelName:          "sphere",
		ModelDType:         "float64",
		Seed:               int64(rep + 1),
		FitParameterLimits: limits,
		StaticParameters:   models.StaticParameters{},
		Contributions:      ps,
		Volumes:            make([]float64, len(radii)),
		ModelIntensity:     []float64{10, 20},
		Scale:              scale,
		Background:         1,
		Gof:                gof,
		Step:               100,
		Accepted:           10,
		AcceptedSteps:      []int{0},
		AcceptedGofs:       []float64{gof},
		Settings:           models.OptimizationSettings{MaxIter: 100, ConvCrit: 1},
		Termination:        models.TerminationMaxIter,
	}
}

var twoBins = []models.HistogramRange{{
	Parameter: "radius", NBin: 2, BinScale: models.BinScaleLinear, BinWeighting: models.WeightingVolume, AutoRange: true,
}}

func TestComputeSingleRepetitionHasZeroSpread(t *testing.T) {
	agg, err := Compute([]*models.RepetitionResult{repetition(0, []float64{10, 20, 70}, 2, 1.5)}, twoBins, histogram.New(1), nil)
	require.NoError(t, err)

	for _, key := range models.OptKeys {
		ms, ok := agg.Optimization(key)
		require.True(t, ok)
		assert.Equal(t, 0.0, ms.Std, key)
	}
	ra, ok := agg.Range(0)
	require.True(t, ok)
	for _, key := range models.MomentKeys {
		assert.Equal(t, 0.0, ra.Moments[key].Std, key)
	}
	assert.Equal(t, []float64{0, 0}, ra.Average.YStd)
	assert.Equal(t, []float64{0, 0}, ra.Average.CDFStd)
	_, std := agg.ModelIntensity()
	assert.Equal(t, []float64{0, 0}, std)
}

func TestComputeAverages(t *testing.T) {
	a := repetition(0, []float64{10, 20, 70}, 2, 1)
	b := repetition(1, []float64{30, 60, 80}, 4, 3)
	agg, err := Compute([]*models.RepetitionResult{a, b}, twoBins, histogram.New(1), nil)
	require.NoError(t, err)

	gof, _ := agg.Optimization(models.OptGof)
	assert.InDelta(t, 2, gof.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, gof.Std, 1e-12)

	ra, _ := agg.Range(0)
	assert.Equal(t, []float64{0, 50, 100}, ra.Average.Edges)
	assert.Equal(t, []float64{25, 75}, ra.Average.XMean)
	assert.Equal(t, []float64{50, 50}, ra.Average.XWidth)
	// heights: a = [2·2, 1·2] = [4, 2], b = [1·4, 2·4] = [4, 8]
	assert.InDeltaSlice(t, []float64{4, 5}, ra.Average.YMean, 1e-12)
	assert.InDeltaSlice(t, []float64{0, math.Sqrt(18)}, ra.Average.YStd, 1e-12)
	// cdfs: a = [4, 6], b = [4, 12]
	assert.InDeltaSlice(t, []float64{4, 9}, ra.Average.CDFMean, 1e-12)
	assert.InDeltaSlice(t, []float64{0, math.Sqrt(18)}, ra.Average.CDFStd, 1e-12)

	// totals: a = 3·1·2 = 6, b = 3·1·4 = 12
	assert.InDelta(t, 9, ra.Moments[models.MomentTotalValue].Mean, 1e-12)
	assert.Len(t, ra.PerRepetition, 2)

	// scaled model intensity: a = [21, 41], b = [41, 81]
	mean, std := agg.ModelIntensity()
	assert.InDeltaSlice(t, []float64{31, 61}, mean, 1e-12)
	assert.InDeltaSlice(t, []float64{math.Sqrt(200), math.Sqrt(800)}, std, 1e-12)
}

func TestComputeOrdersByRepetitionID(t *testing.T) {
	agg, err := Compute([]*models.RepetitionResult{
		repetition(7, []float64{10}, 1, 1),
		repetition(2, []float64{20}, 1, 2),
		repetition(4, []float64{30}, 1, 3),
	}, twoBins, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 7}, agg.Repetitions())
	res, ok := agg.Result(4)
	require.True(t, ok)
	assert.Equal(t, 3.0, res.Gof)
	_, ok = agg.Result(3)
	assert.False(t, ok)
}

func TestComputeNaNMomentsAreSkipped(t *testing.T) {
	window := []models.HistogramRange{{
		Parameter: "radius", NBin: 2, BinScale: models.BinScaleLinear, BinWeighting: models.WeightingVolume,
		PresetRangeMin: 0, PresetRangeMax: 50,
	}}
	agg, err := Compute([]*models.RepetitionResult{
		repetition(0, []float64{10, 30}, 1, 1),
		repetition(1, []float64{60, 90}, 1, 1), // nothing inside the window
	}, window, histogram.New(1), nil)
	require.NoError(t, err)

	ra, _ := agg.Range(0)
	assert.InDelta(t, 20, ra.Moments[models.MomentMean].Mean, 1e-12)
	assert.Equal(t, 0.0, ra.Moments[models.MomentMean].Std)
	assert.InDelta(t, 1, ra.Moments[models.MomentTotalValue].Mean, 1e-12)
}

func TestComputeErrors(t *testing.T) {
	_, err := Compute(nil, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)

	_, err = Compute([]*models.RepetitionResult{repetition(1, []float64{10}, 1, 1), repetition(1, []float64{20}, 1, 1)}, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)

	short := repetition(2, []float64{10}, 1, 1)
	short.ModelIntensity = []float64{1}
	_, err = Compute([]*models.RepetitionResult{repetition(1, []float64{10}, 1, 1), short}, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)

	_, err = Compute([]*models.RepetitionResult{repetition(1, []float64{10}, 1, 1)}, nil, nil, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestComputeRejectsMismatchedEdges(t *testing.T) {
	a := repetition(0, []float64{10, 20}, 1, 1)
	b := repetition(1, []float64{10, 20}, 1, 1)
	b.FitParameterLimits = models.ParameterBounds{"radius": {Lower: 0, Upper: 200}}

	_, err := Compute([]*models.RepetitionResult{a, b}, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)
}

func TestAnalyzeStoreRoundTrip(t *testing.T) {
	s := store.NewMemory()
	w := store.NewResultWriter(s, 1)
	require.NoError(t, w.WriteRunInfo(limits, nil, "sphere", 6, 2))
	for _, r := range []int{0, 2, 5} {
		require.NoError(t, w.WriteRepetition(repetition(r, []float64{10, 20, 70}, float64(r+1), float64(r))))
	}

	meas := &models.MeasurementData{Q: []float64{0.1, 1}, I: []float64{1, 1}, ISigma: []float64{1, 1}}
	agg, err := Analyze(s, 1, twoBins, histogram.New(1e-5), meas)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, agg.Repetitions())
	assert.Equal(t, 1, agg.ResultIndex())
	assert.Equal(t, "sphere", agg.ModelName())

	require.NoError(t, agg.StoreAverages(s, 1))

	yMean, err := s.GetFloats(store.HistogramPath(1, 0) + "/average/yMean")
	require.NoError(t, err)
	ra, _ := agg.Range(0)
	assert.Equal(t, ra.Average.YMean, yMean)

	gof, err := s.GetFloatMap(store.OptimizationAveragePath(1) + "/gof")
	require.NoError(t, err)
	assert.InDelta(t, 7.0/3, gof["valMean"], 1e-12)

	perRep, err := histogram.ReadRepetition(s, 1, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, ra.PerRepetition[5].Heights, perRep.Heights)

	// stored averages do not count as repetitions
	reps, err := store.Repetitions(s, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, reps)

	report := agg.RunReport()
	assert.Contains(t, report, "averaged over 3 repetitions")
	assert.Contains(t, report, "Q (1/nm)")
}

func TestStoreAveragesReplacesEarlierRanges(t *testing.T) {
	s := store.NewMemory()
	w := store.NewResultWriter(s, 1)
	require.NoError(t, w.WriteRunInfo(limits, nil, "sphere", 2, 1))
	for _, r := range []int{0, 1} {
		require.NoError(t, w.WriteRepetition(repetition(r, []float64{10, 20, 70}, 1, 1)))
	}

	threeRanges := []models.HistogramRange{twoBins[0], twoBins[0], twoBins[0]}
	threeRanges[2].NBin = 4
	agg, err := Analyze(s, 1, threeRanges, histogram.New(1e-5), nil)
	require.NoError(t, err)
	require.NoError(t, agg.StoreAverages(s, 1))
	assert.True(t, s.Exists(store.HistogramPath(1, 2)))

	agg, err = Analyze(s, 1, twoBins, histogram.New(1e-5), nil)
	require.NoError(t, err)
	require.NoError(t, agg.StoreAverages(s, 1))

	ranges, err := s.List(store.HistogramsPath(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"histRange0"}, ranges)
	assert.True(t, s.Exists(store.HistogramPath(1, 0)+"/average"))
}

func TestAnalyzeWithoutRepetitions(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, store.NewResultWriter(s, 1).WriteRunInfo(limits, nil, "sphere", 3, 1))

	_, err := Analyze(s, 1, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)

	_, err = Analyze(s, 4, twoBins, nil, nil)
	assert.ErrorIs(t, err, models.ErrAggregation)
}

func TestReports(t *testing.T) {
	agg, err := Compute([]*models.RepetitionResult{
		repetition(0, []float64{10, 20, 70}, 2, 1),
		repetition(1, []float64{30, 60, 80}, 4, 3),
	}, twoBins, histogram.New(1), nil)
	require.NoError(t, err)

	report, err := agg.RangeReport(0)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(report), "\n")
	require.Len(t, lines, 8)
	assert.Contains(t, lines[1], "radius")
	assert.Equal(t, "totalValue:  9.00e+00 ±  4.24e+00 (±  47.14 %)", lines[3])

	run := agg.RunReport()
	assert.Contains(t, run, "gof       :  2.00e+00 ±  1.41e+00 (±  70.71 %)")
	assert.NotContains(t, run, "Q (1/nm)")
	assert.Contains(t, statLine("background", models.MeanStd{}), "background:  0.00e+00 ±  0.00e+00\n")

	_, err = agg.RangeReport(3)
	assert.ErrorIs(t, err, models.ErrAggregation)
}
