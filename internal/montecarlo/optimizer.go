package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/fit"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/population"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"gonum.org/v1/gonum/floats"
)

// progressInterval is the step spacing of progress log lines
const progressInterval = 1000

// CoreConfig describes one repetition
type CoreConfig struct {
	Repetition int
	ModelName  string
	NContrib   int
	Bounds     models.ParameterBounds
	Static     models.StaticParameters
	Seed       int64
	Settings   models.OptimizationSettings
	Evaluator  kernel.Evaluator
	// FitBounds overrides the default scale/background bounds when set
	FitBounds *fit.Bounds
	// Conditions overrides DefaultConditions when set
	Conditions []TerminationCondition
	Logger     *slog.Logger
}

// Core is the single-threaded Monte-Carlo replacement optimizer of one repetition
type Core struct {
	cfg        CoreConfig
	population *population.ModelState
	fitter     *fit.ScaleBackgroundFitter
	conditions []TerminationCondition
	log        *slog.Logger

	state       State
	trial       []float64
	phase       Phase
	termination models.Termination
	rejected    int // candidates rejected for a parameter-domain violation
}

// ValidateSettings checks the optimization thresholds
func ValidateSettings(s models.OptimizationSettings) error {
	if s.MaxIter < 1 {
		return fmt.Errorf("%w: maxIter must be positive, got %d", models.ErrConfiguration, s.MaxIter)
	}
	if s.MaxAccept < 0 {
		return fmt.Errorf("%w: maxAccept cannot be negative, got %d", models.ErrConfiguration, s.MaxAccept)
	}
	if math.IsNaN(s.ConvCrit) {
		return fmt.Errorf("%w: convCrit must be a number", models.ErrConfiguration)
	}
	return nil
}

// NewCore draws and evaluates the initial population, fits it once and records step 0
// as the accepted baseline. The returned core is in PhaseInitialized.
func NewCore(meas *models.MeasurementData, cfg CoreConfig) (*Core, error) {
	if meas == nil {
		return nil, fmt.Errorf("%w: measurement data is required", models.ErrConfiguration)
	}
	if err := meas.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSettings(cfg.Settings); err != nil {
		return nil, err
	}

	fitter, err := fit.NewScaleBackgroundFitter(meas.I, meas.ISigma, cfg.FitBounds)
	if err != nil {
		return nil, err
	}
	ms, err := population.New(cfg.NContrib, cfg.Bounds, cfg.Static, cfg.Seed, cfg.Evaluator)
	if err != nil {
		return nil, err
	}

	modelI := ms.TotalIntensity()
	if len(modelI) != meas.Len() {
		return nil, fmt.Errorf("%w: model intensity has %d points, measurement %d", models.ErrModelEvaluation, len(modelI), meas.Len())
	}
	x, gof, err := fitter.Match(modelI, nil)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.ForRepetition(cfg.Repetition, ms.Seed())
	}
	conditions := cfg.Conditions
	if conditions == nil {
		conditions = DefaultConditions()
	}

	return &Core{
		cfg:        cfg,
		population: ms,
		fitter:     fitter,
		conditions: conditions,
		log:        log,
		state:      newState(modelI, x, gof, cfg.Settings),
		trial:      make([]float64, len(modelI)),
		phase:      PhaseInitialized,
	}, nil
}

// Iterate performs one pick → evaluate → fit → accept/reject step and always advances
// the step counter. A candidate outside the model's parameter domain is rejected;
// any other evaluation failure is returned and the run must be aborted.
func (c *Core) Iterate() (bool, error) {
	if c.phase == PhaseTerminated {
		return false, fmt.Errorf("repetition %d already terminated (%s)", c.cfg.Repetition, c.termination)
	}
	c.phase = PhaseIterating

	index := c.state.Step % c.population.Len()
	candidate := c.population.Pick()
	intensity, volume, err := c.population.Evaluate(candidate)
	if err != nil {
		if errors.Is(err, kernel.ErrParameterDomain) {
			c.rejected++
			c.state.Step++
			return false, nil
		}
		return false, fmt.Errorf("step %d: %w", c.state.Step, err)
	}
	if len(intensity) != len(c.state.ModelI) {
		return false, fmt.Errorf("%w: step %d: candidate intensity has %d points, expected %d",
			models.ErrModelEvaluation, c.state.Step, len(intensity), len(c.state.ModelI))
	}

	floats.SubTo(c.trial, c.state.ModelI, c.population.Intensity(index))
	floats.Add(c.trial, intensity)

	x, gof, err := c.fitter.Match(c.trial, &c.state.X)
	if err != nil {
		return false, fmt.Errorf("step %d: %w", c.state.Step, err)
	}

	accepted := gof < c.state.Gof
	if accepted {
		if err := c.population.Replace(index, candidate, intensity, volume); err != nil {
			return false, err
		}
		c.state.ModelI, c.trial = c.trial, c.state.ModelI
		c.state.recordAccept(x, gof)
	}
	c.state.Step++
	return accepted, nil
}

// Optimize iterates until a termination condition holds. All conditions are checked
// before every iteration. The context is consulted between iterations only; a
// cancelled run returns the context error and records models.TerminationCancelled.
func (c *Core) Optimize(ctx context.Context) (models.Termination, error) {
	c.log.Info("optimization started",
		"model", c.cfg.ModelName,
		"gof", c.state.Gof,
		"accepted", c.state.Accepted,
		"step", c.state.Step)

	for {
		if t := CheckTermination(&c.state, c.conditions); t != models.TerminationNone {
			c.terminate(t)
			break
		}
		if err := ctx.Err(); err != nil {
			c.terminate(models.TerminationCancelled)
			return c.termination, err
		}
		if _, err := c.Iterate(); err != nil {
			c.terminate(models.TerminationModelError)
			c.log.Error("optimization aborted", "step", c.state.Step, "error", err)
			return c.termination, err
		}
		if c.state.Step%progressInterval == 1 {
			c.log.Debug("optimization progress",
				"gof", c.state.Gof,
				"accepted", c.state.Accepted,
				"step", c.state.Step)
		}
	}

	c.log.Info("optimization finished",
		"termination", c.termination,
		"gof", c.state.Gof,
		"accepted", c.state.Accepted,
		"step", c.state.Step,
		"domain_rejections", c.rejected)
	return c.termination, nil
}

func (c *Core) terminate(t models.Termination) {
	c.phase = PhaseTerminated
	c.termination = t
}

// Phase returns the current state-machine phase
func (c *Core) Phase() Phase {
	return c.phase
}

// Termination returns the terminal state, or models.TerminationNone while running
func (c *Core) Termination() models.Termination {
	return c.termination
}

// State returns a snapshot of the optimization state
func (c *Core) State() State {
	s := c.state
	s.ModelI = append([]float64(nil), c.state.ModelI...)
	s.AcceptedSteps = append([]int(nil), c.state.AcceptedSteps...)
	s.AcceptedGofs = append([]float64(nil), c.state.AcceptedGofs...)
	return s
}

// Population returns the contribution set being optimized
func (c *Core) Population() *population.ModelState {
	return c.population
}

// Result assembles the persisted form of the repetition
func (c *Core) Result() *models.RepetitionResult {
	s := c.State()
	return &models.RepetitionResult{
		Repetition:         c.cfg.Repetition,
		ModelName:          c.cfg.ModelName,
		ModelDType:         kernel.DType,
		Seed:               c.population.Seed(),
		FitParameterLimits: c.population.Bounds(),
		StaticParameters:   c.population.Static(),
		Contributions:      c.population.Parameters(),
		Volumes:            c.population.Volumes(),
		ModelIntensity:     s.ModelI,
		Scale:              s.X.Scale,
		Background:         s.X.Background,
		Gof:                s.Gof,
		Step:               s.Step,
		Accepted:           s.Accepted,
		AcceptedSteps:      s.AcceptedSteps,
		AcceptedGofs:       s.AcceptedGofs,
		Settings:           s.Settings,
		Termination:        c.termination,
	}
}
