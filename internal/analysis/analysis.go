// Package analysis combines the repetitions of one stored result: it histograms every
// repetition, averages histograms, moments, optimization parameters and the scaled model
// intensity, and writes the averages back next to the per-repetition data.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/histogram"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
	"gonum.org/v1/gonum/floats"
)

// HistogramAverage is the per-bin average of one range over all repetitions
type HistogramAverage struct {
	Edges   []float64 `json:"binEdges"`
	XMean   []float64 `json:"xMean"`
	XWidth  []float64 `json:"xWidth"`
	YMean   []float64 `json:"yMean"`
	YStd    []float64 `json:"yStd"`
	CDFMean []float64 `json:"cdfMean"`
	CDFStd  []float64 `json:"cdfStd"`
}

// RangeAggregate is the cross-repetition view of one histogram range
type RangeAggregate struct {
	Index   int
	Range   models.HistogramRange
	Bounds  models.Bounds
	Average HistogramAverage
	Moments map[string]models.MeanStd
	// PerRepetition holds each repetition's histogram keyed by repetition id
	PerRepetition map[int]histogram.RangeResult
}

// Aggregate is the read-only result of analyzing a batch
type Aggregate struct {
	resultIndex   int
	modelName     string
	repetitions   []int
	ranges        []RangeAggregate
	optimization  map[string]models.MeanStd
	modelIMean    []float64
	modelIStd     []float64
	qMin, qMax    float64
	correction    float64
	repetitionRes map[int]*models.RepetitionResult
}

// Analyze reads every complete repetition of result index k from s and aggregates it.
// meas is optional and only used for the Q range of the run report.
func Analyze(s *store.Store, resultIndex int, ranges []models.HistogramRange, h *histogram.Histogrammer, meas *models.MeasurementData) (*Aggregate, error) {
	reps, err := store.Repetitions(s, resultIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: list repetitions of result %d: %w", models.ErrAggregation, resultIndex, err)
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("%w: result %d holds no complete repetition", models.ErrAggregation, resultIndex)
	}
	results := make([]*models.RepetitionResult, 0, len(reps))
	for _, r := range reps {
		res, err := store.ReadRepetition(s, resultIndex, r)
		if err != nil {
			return nil, fmt.Errorf("read repetition %d: %w", r, err)
		}
		results = append(results, res)
	}
	agg, err := Compute(results, ranges, h, meas)
	if err != nil {
		return nil, err
	}
	agg.resultIndex = resultIndex
	return agg, nil
}

// Compute aggregates in-memory repetition results. Repetitions are ordered by id, never
// by the order they are passed in.
func Compute(results []*models.RepetitionResult, ranges []models.HistogramRange, h *histogram.Histogrammer, meas *models.MeasurementData) (*Aggregate, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: at least one repetition is required", models.ErrAggregation)
	}
	if h == nil {
		h = histogram.New(0)
	}
	sorted := append([]*models.RepetitionResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Repetition < sorted[j].Repetition })

	agg := &Aggregate{
		modelName:     sorted[0].ModelName,
		correction:    h.CorrectionFactor(),
		repetitionRes: make(map[int]*models.RepetitionResult, len(sorted)),
		qMin:          math.NaN(),
		qMax:          math.NaN(),
	}
	for _, res := range sorted {
		if _, dup := agg.repetitionRes[res.Repetition]; dup {
			return nil, fmt.Errorf("%w: repetition %d appears twice", models.ErrAggregation, res.Repetition)
		}
		agg.repetitionRes[res.Repetition] = res
		agg.repetitions = append(agg.repetitions, res.Repetition)
	}
	if meas != nil && meas.Len() > 0 {
		qs := meas.QMagnitude()
		agg.qMin, agg.qMax = floats.Min(qs), floats.Max(qs)
	}

	perRep := make([][]histogram.RangeResult, len(sorted))
	for i, res := range sorted {
		out, err := h.Histogram(res, res.FitParameterLimits, ranges)
		if err != nil {
			return nil, fmt.Errorf("histogram repetition %d: %w", res.Repetition, err)
		}
		perRep[i] = out
	}
	for ri := range ranges {
		ra, err := aggregateRange(sorted, perRep, ri)
		if err != nil {
			return nil, err
		}
		agg.ranges = append(agg.ranges, ra)
	}

	agg.optimization = make(map[string]models.MeanStd, len(models.OptKeys))
	for _, key := range models.OptKeys {
		values := make([]float64, len(sorted))
		for i, res := range sorted {
			values[i] = res.OptValues()[key]
		}
		agg.optimization[key] = meanStd(values)
	}

	columns := make([][]float64, len(sorted))
	for i, res := range sorted {
		columns[i] = res.ScaledIntensity()
		if len(columns[i]) != len(columns[0]) {
			return nil, fmt.Errorf("%w: repetition %d model intensity has %d points, repetition %d has %d",
				models.ErrAggregation, res.Repetition, len(columns[i]), sorted[0].Repetition, len(columns[0]))
		}
	}
	agg.modelIMean, agg.modelIStd = columnMeanStd(columns)
	return agg, nil
}

func aggregateRange(sorted []*models.RepetitionResult, perRep [][]histogram.RangeResult, ri int) (RangeAggregate, error) {
	first := perRep[0][ri]
	ra := RangeAggregate{
		Index:         ri,
		Range:         first.Range,
		Bounds:        first.Bounds,
		Moments:       make(map[string]models.MeanStd, len(models.MomentKeys)),
		PerRepetition: make(map[int]histogram.RangeResult, len(sorted)),
	}

	heights := make([][]float64, len(sorted))
	cdfs := make([][]float64, len(sorted))
	for i, res := range sorted {
		hr := perRep[i][ri]
		if !floats.Equal(hr.Edges, first.Edges) {
			return RangeAggregate{}, fmt.Errorf("%w: histogram range %d: bin edges of repetition %d differ from repetition %d",
				models.ErrAggregation, ri, res.Repetition, sorted[0].Repetition)
		}
		ra.PerRepetition[res.Repetition] = hr
		heights[i] = hr.Heights
		cdfs[i] = floats.CumSum(make([]float64, len(hr.Heights)), hr.Heights)
	}

	for _, key := range models.MomentKeys {
		values := make([]float64, len(sorted))
		for i := range sorted {
			values[i] = perRep[i][ri].Moments.Get(key)
		}
		ra.Moments[key] = meanStd(values)
	}

	avg := HistogramAverage{Edges: append([]float64(nil), first.Edges...)}
	n := len(first.Edges) - 1
	avg.XWidth = make([]float64, n)
	avg.XMean = make([]float64, n)
	for j := 0; j < n; j++ {
		avg.XWidth[j] = first.Edges[j+1] - first.Edges[j]
		avg.XMean[j] = first.Edges[j] + 0.5*avg.XWidth[j]
	}
	avg.YMean, avg.YStd = columnMeanStd(heights)
	avg.CDFMean, avg.CDFStd = columnMeanStd(cdfs)
	ra.Average = avg
	return ra, nil
}

// meanStd is the NaN-skipping mean and sample standard deviation; one value has zero spread
func meanStd(values []float64) models.MeanStd {
	mean, _ := utils.NaNMean(values)
	return models.MeanStd{Mean: mean, Std: utils.NaNSampleStd(values)}
}

// columnMeanStd averages equally long rows point by point
func columnMeanStd(rows [][]float64) ([]float64, []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	n := len(rows[0])
	mean := make([]float64, n)
	std := make([]float64, n)
	col := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		ms := meanStd(col)
		mean[j], std[j] = ms.Mean, ms.Std
	}
	return mean, std
}

// ResultIndex returns the store result index the aggregate was read from (0 when computed in memory)
func (a *Aggregate) ResultIndex() int { return a.resultIndex }

// ModelName returns the model of the first repetition
func (a *Aggregate) ModelName() string { return a.modelName }

// Repetitions returns the aggregated repetition ids in ascending order
func (a *Aggregate) Repetitions() []int {
	return append([]int(nil), a.repetitions...)
}

// NumRanges returns the number of histogram ranges
func (a *Aggregate) NumRanges() int { return len(a.ranges) }

// Range returns the aggregate of histogram range i
func (a *Aggregate) Range(i int) (RangeAggregate, bool) {
	if i < 0 || i >= len(a.ranges) {
		return RangeAggregate{}, false
	}
	return a.ranges[i], true
}

// Optimization returns the mean and spread of an optimization parameter (see models.OptKeys)
func (a *Aggregate) Optimization(key string) (models.MeanStd, bool) {
	ms, ok := a.optimization[key]
	return ms, ok
}

// ModelIntensity returns the per-point mean and sample standard deviation of the scaled
// model intensity
func (a *Aggregate) ModelIntensity() (mean, std []float64) {
	return append([]float64(nil), a.modelIMean...), append([]float64(nil), a.modelIStd...)
}

// Result returns the repetition result with id r
func (a *Aggregate) Result(r int) (*models.RepetitionResult, bool) {
	res, ok := a.repetitionRes[r]
	return res, ok
}
