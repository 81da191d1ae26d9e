package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/fit"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
)

// RepetitionStatus is the outcome class of one repetition
type RepetitionStatus string

const (
	RepetitionCompleted RepetitionStatus = "completed"
	RepetitionFailed    RepetitionStatus = "failed"
	RepetitionCancelled RepetitionStatus = "cancelled"
)

// ResultSink persists repetition results. The orchestrator calls it from a single
// goroutine only.
type ResultSink interface {
	WriteRunInfo(limits models.ParameterBounds, static models.StaticParameters, modelName string, nRep, nWorkers int) error
	WriteRepetition(r *models.RepetitionResult) error
}

// Recorder receives per-repetition metrics
type Recorder interface {
	ObserveRepetition(status string, steps, accepted int, gof float64, duration time.Duration)
}

// EvaluatorFactory builds a fresh model evaluator for one repetition
type EvaluatorFactory func(meas *models.MeasurementData) (kernel.Evaluator, error)

// RunSpec is everything a batch of repetitions shares
type RunSpec struct {
	ModelName     string
	NContrib      int
	Limits        models.FitLimits
	Static        models.StaticParameters
	Settings      models.OptimizationSettings
	Seed          int64 // 0 = time-based
	KernelOptions kernel.Options
	FitBounds     *fit.Bounds
}

// RepetitionOutcome summarizes one repetition of a batch
type RepetitionOutcome struct {
	Repetition  int
	Seed        int64
	Status      RepetitionStatus
	Termination models.Termination
	Gof         float64
	Step        int
	Accepted    int
	Duration    time.Duration
	Err         error
}

// RunSummary is the outcome of Run, ordered by repetition index
type RunSummary struct {
	Bounds    models.ParameterBounds
	BaseSeed  int64
	Workers   int
	Outcomes  []RepetitionOutcome
	Results   map[int]*models.RepetitionResult
	Completed int
	Failed    int
	Duration  time.Duration
}

// Orchestrator runs independent repetitions of the optimizer
type Orchestrator struct {
	spec     RunSpec
	sink     ResultSink
	factory  EvaluatorFactory
	recorder Recorder
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator. sink may be nil to keep results in memory only.
func NewOrchestrator(spec RunSpec, sink ResultSink) *Orchestrator {
	o := &Orchestrator{
		spec: spec,
		sink: sink,
		log:  logger.Default,
	}
	o.factory = o.defaultFactory
	return o
}

// WithEvaluatorFactory replaces the registry-based evaluator construction
func (o *Orchestrator) WithEvaluatorFactory(f EvaluatorFactory) *Orchestrator {
	o.factory = f
	return o
}

// WithRecorder sets a metrics recorder
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// WithLogger sets the logger used for batch-level messages
func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	o.log = l
	return o
}

func (o *Orchestrator) defaultFactory(meas *models.MeasurementData) (kernel.Evaluator, error) {
	return kernel.New(o.spec.ModelName, meas.QMagnitude(), o.spec.KernelOptions)
}

// ResolveWorkers maps a requested worker count to the effective one: 0 means
// min(available parallelism, nRep), and no more workers than repetitions are used.
func ResolveWorkers(nWorkers, nRep int) int {
	if nWorkers <= 0 {
		nWorkers = runtime.GOMAXPROCS(0)
	}
	return utils.MinInt(nWorkers, nRep)
}

// Run executes nRep repetitions with nWorkers concurrent workers. Auto limits are
// resolved once from meas before any repetition starts. A failed repetition is logged
// and left out; Run only fails on configuration errors, cancellation, or when no
// repetition completed.
func (o *Orchestrator) Run(ctx context.Context, meas *models.MeasurementData, nRep, nWorkers int) (*RunSummary, error) {
	start := time.Now()
	if nRep < 1 {
		return nil, fmt.Errorf("%w: nRep must be positive, got %d", models.ErrConfiguration, nRep)
	}
	if nWorkers < 0 {
		return nil, fmt.Errorf("%w: nWorkers cannot be negative, got %d", models.ErrConfiguration, nWorkers)
	}
	if meas == nil {
		return nil, fmt.Errorf("%w: measurement data is required", models.ErrConfiguration)
	}
	if err := meas.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSettings(o.spec.Settings); err != nil {
		return nil, err
	}
	bounds, err := o.spec.Limits.Resolve(meas)
	if err != nil {
		return nil, err
	}
	if err := o.spec.Static.CheckDisjoint(bounds); err != nil {
		return nil, err
	}

	baseSeed := o.spec.Seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}
	workers := ResolveWorkers(nWorkers, nRep)

	if o.sink != nil {
		if err := o.sink.WriteRunInfo(bounds, o.spec.Static, o.spec.ModelName, nRep, workers); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
	}

	o.log.Info("repetitions starting",
		"model", o.spec.ModelName,
		"repetitions", nRep,
		"workers", workers,
		"base_seed", baseSeed)

	summary := &RunSummary{
		Bounds:   bounds,
		BaseSeed: baseSeed,
		Workers:  workers,
		Results:  make(map[int]*models.RepetitionResult),
	}
	jobs := make([]repetitionJob, nRep)
	for r := range jobs {
		jobs[r] = repetitionJob{repetition: r, seed: utils.DeriveSeed(baseSeed, r)}
	}

	if workers == 1 {
		o.runSequential(ctx, meas, bounds, jobs, summary)
	} else {
		o.runParallel(ctx, meas, bounds, jobs, workers, summary)
	}

	sort.Slice(summary.Outcomes, func(i, j int) bool {
		return summary.Outcomes[i].Repetition < summary.Outcomes[j].Repetition
	})
	summary.Duration = time.Since(start)

	o.log.Info("repetitions finished",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"duration", summary.Duration)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if summary.Completed == 0 {
		return summary, fmt.Errorf("all %d repetitions failed: %w", nRep, firstError(summary.Outcomes))
	}
	return summary, nil
}

type repetitionJob struct {
	repetition int
	seed       int64
}

type repetitionDone struct {
	outcome RepetitionOutcome
	result  *models.RepetitionResult
}

func (o *Orchestrator) runSequential(ctx context.Context, meas *models.MeasurementData, bounds models.ParameterBounds, jobs []repetitionJob, summary *RunSummary) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			o.collect(repetitionDone{outcome: RepetitionOutcome{
				Repetition: job.repetition, Seed: job.seed, Status: RepetitionCancelled, Err: ctx.Err(),
			}}, summary)
			continue
		}
		o.collect(o.runRepetition(ctx, meas, bounds, job), summary)
	}
}

// runRepetition owns a fresh evaluator and core for the whole repetition
func (o *Orchestrator) runRepetition(ctx context.Context, meas *models.MeasurementData, bounds models.ParameterBounds, job repetitionJob) repetitionDone {
	start := time.Now()
	log := o.log.With("repetition", job.repetition, "seed", job.seed)
	out := RepetitionOutcome{Repetition: job.repetition, Seed: job.seed}
	fail := func(err error) repetitionDone {
		out.Err = err
		out.Status = RepetitionFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.Status = RepetitionCancelled
		}
		out.Duration = time.Since(start)
		return repetitionDone{outcome: out}
	}

	evaluator, err := o.factory(meas)
	if err != nil {
		return fail(fmt.Errorf("create evaluator: %w", err))
	}
	defer func() {
		if err := kernel.Release(evaluator); err != nil {
			log.Warn("kernel release failed", "error", err)
		}
	}()

	core, err := NewCore(meas, CoreConfig{
		Repetition: job.repetition,
		ModelName:  o.spec.ModelName,
		NContrib:   o.spec.NContrib,
		Bounds:     bounds,
		Static:     o.spec.Static,
		Seed:       job.seed,
		Settings:   o.spec.Settings,
		Evaluator:  evaluator,
		FitBounds:  o.spec.FitBounds,
		Logger:     log,
	})
	if err != nil {
		return fail(err)
	}
	term, err := core.Optimize(ctx)
	out.Termination = term
	if err != nil {
		return fail(err)
	}

	result := core.Result()
	out.Status = RepetitionCompleted
	out.Gof = result.Gof
	out.Step = result.Step
	out.Accepted = result.Accepted
	out.Duration = time.Since(start)
	return repetitionDone{outcome: out, result: result}
}

// collect is the single write phase: it persists a finished repetition and records its outcome
func (o *Orchestrator) collect(done repetitionDone, summary *RunSummary) {
	out := done.outcome
	if done.result != nil && o.sink != nil {
		if err := o.sink.WriteRepetition(done.result); err != nil {
			out.Status = RepetitionFailed
			out.Err = fmt.Errorf("%w: repetition %d: %w", models.ErrPersistence, out.Repetition, err)
		}
	}

	switch out.Status {
	case RepetitionCompleted:
		summary.Completed++
		summary.Results[out.Repetition] = done.result
	case RepetitionFailed:
		summary.Failed++
		o.log.Error("repetition failed", "repetition", out.Repetition, "seed", out.Seed, "error", out.Err)
	case RepetitionCancelled:
		o.log.Warn("repetition cancelled", "repetition", out.Repetition)
	}
	summary.Outcomes = append(summary.Outcomes, out)

	if o.recorder != nil {
		o.recorder.ObserveRepetition(string(out.Status), out.Step, out.Accepted, out.Gof, out.Duration)
	}
}

func firstError(outcomes []RepetitionOutcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return errors.New("no repetition completed")
}
