package fitd

import (
	"math"
	"strconv"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/analysis"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/config"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// RepetitionSummary is the outcome of one repetition of a fit
type RepetitionSummary struct {
	Repetition  int
	Status      string
	Termination string
	Gof         float64
	Step        int
	Accepted    int
	Error       string
}

// RangeSummary holds the averaged population statistics of one histogram range
type RangeSummary struct {
	Index     int
	Parameter string
	Bounds    models.Bounds
	Moments   map[string]models.MeanStd
	Report    string
}

// FitSummary is what a finished fit reports back
type FitSummary struct {
	ResultPath   string
	ResultIndex  int
	ModelName    string
	RunYAML      string
	BaseSeed     int64
	Workers      int
	Completed    int
	Failed       int
	DurationMs   int64
	Bounds       models.ParameterBounds
	Repetitions  []RepetitionSummary
	Optimization map[string]models.MeanStd
	Ranges       []RangeSummary
	RunReport    string
}

func newSummary(in *fitInput, run *montecarlo.RunSummary, resultPath string) *FitSummary {
	s := &FitSummary{
		ResultPath:  resultPath,
		ResultIndex: in.run.ResultIndex,
		ModelName:   in.run.ModelName,
		BaseSeed:    run.BaseSeed,
		Workers:     run.Workers,
		Completed:   run.Completed,
		Failed:      run.Failed,
		DurationMs:  run.Duration.Milliseconds(),
		Bounds:      run.Bounds,
	}
	if effective, err := config.MarshalRunYAML(in.run); err == nil {
		s.RunYAML = string(effective)
	} else {
		logger.Warn("failed to render effective run config", "error", err)
	}
	for _, o := range run.Outcomes {
		rs := RepetitionSummary{
			Repetition:  o.Repetition,
			Status:      string(o.Status),
			Termination: string(o.Termination),
			Gof:         o.Gof,
			Step:        o.Step,
			Accepted:    o.Accepted,
		}
		if o.Err != nil {
			rs.Error = o.Err.Error()
		}
		s.Repetitions = append(s.Repetitions, rs)
	}
	return s
}

func (s *FitSummary) addAnalysis(agg *analysis.Aggregate) {
	s.Optimization = make(map[string]models.MeanStd, len(models.OptKeys))
	for _, key := range models.OptKeys {
		if ms, ok := agg.Optimization(key); ok {
			s.Optimization[key] = ms
		}
	}
	s.RunReport = agg.RunReport()
	for i := 0; i < agg.NumRanges(); i++ {
		ra, _ := agg.Range(i)
		report, _ := agg.RangeReport(i)
		s.Ranges = append(s.Ranges, RangeSummary{
			Index:     ra.Index,
			Parameter: ra.Range.Parameter,
			Bounds:    ra.Bounds,
			Moments:   ra.Moments,
			Report:    report,
		})
	}
}

// jsonNumber maps non-finite values to nil, which both encoding/json and structpb
// render as null
func jsonNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func meanStdToJSON(m map[string]models.MeanStd) map[string]any {
	out := make(map[string]any, len(m))
	for k, ms := range m {
		out[k] = map[string]any{"valMean": jsonNumber(ms.Mean), "valStd": jsonNumber(ms.Std)}
	}
	return out
}

func boundsToJSON(b models.ParameterBounds) map[string]any {
	out := make(map[string]any, len(b))
	for _, name := range b.Names() {
		out[name] = []any{jsonNumber(b[name].Lower), jsonNumber(b[name].Upper)}
	}
	return out
}

// convertFitToJSON renders the job state. Only types structpb accepts are used, so the
// same map also backs the gRPC responses.
func convertFitToJSON(rec *FitRecord) map[string]any {
	return map[string]any{
		"id":                 rec.ID,
		"status":             string(rec.Status),
		"created_at_unix_ms": rec.CreatedAtUnixMs,
		"started_at_unix_ms": rec.StartedAtUnixMs,
		"ended_at_unix_ms":   rec.EndedAtUnixMs,
		"error":              rec.Error,
		"has_summary":        rec.Summary != nil,
	}
}

func convertSummaryToJSON(s *FitSummary) map[string]any {
	reps := make([]any, 0, len(s.Repetitions))
	for _, r := range s.Repetitions {
		reps = append(reps, map[string]any{
			"repetition":  r.Repetition,
			"status":      r.Status,
			"termination": r.Termination,
			"gof":         jsonNumber(r.Gof),
			"step":        r.Step,
			"accepted":    r.Accepted,
			"error":       r.Error,
		})
	}
	ranges := make([]any, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		ranges = append(ranges, map[string]any{
			"index":     r.Index,
			"parameter": r.Parameter,
			"lower":     jsonNumber(r.Bounds.Lower),
			"upper":     jsonNumber(r.Bounds.Upper),
			"moments":   meanStdToJSON(r.Moments),
			"report":    r.Report,
		})
	}

	return map[string]any{
		"result_path":  s.ResultPath,
		"result_index": s.ResultIndex,
		"model_name":   s.ModelName,
		"run_yaml":     s.RunYAML,
		"base_seed":    strconv.FormatInt(s.BaseSeed, 10),
		"workers":      s.Workers,
		"completed":    s.Completed,
		"failed":       s.Failed,
		"duration_ms":  s.DurationMs,
		"bounds":       boundsToJSON(s.Bounds),
		"repetitions":  reps,
		"optimization": meanStdToJSON(s.Optimization),
		"ranges":       ranges,
		"run_report":   s.RunReport,
	}
}
