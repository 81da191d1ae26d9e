// Package fitd runs Monte-Carlo fits as asynchronous jobs behind HTTP and gRPC APIs
package fitd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/analysis"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/histogram"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/metrics"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
)

// FitExecutor manages asynchronous fit execution and per-fit cancellation.
type FitExecutor struct {
	store    *JobStore
	dataDir  string
	recorder *metrics.Recorder
	log      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewFitExecutor creates an executor. Results are written to <dataDir>/<fit id>.pb, or
// kept in memory when dataDir is empty.
func NewFitExecutor(store *JobStore, dataDir string, recorder *metrics.Recorder) *FitExecutor {
	return &FitExecutor{
		store:    store,
		dataDir:  dataDir,
		recorder: recorder,
		log:      logger.Default,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start begins executing a fit asynchronously.
// Returns the updated fit state (running) or an error.
func (e *FitExecutor) Start(id string) (*FitRecord, error) {
	if id == "" {
		return nil, ErrFitIDMissing
	}

	rec, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFitNotFound, id)
	}
	switch {
	case rec.Status == StatusRunning:
		return rec, nil
	case rec.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrFitTerminal, id)
	}

	// the cancel func is registered before the fit turns running, so a Stop that sees
	// the running state always finds it
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if _, started := e.cancels[id]; started {
		e.mu.Unlock()
		cancel()
		current, _ := e.store.Get(id)
		return current, nil
	}
	e.cancels[id] = cancel
	e.mu.Unlock()

	updated, err := e.store.SetStatus(id, StatusRunning, "")
	if err != nil {
		e.cleanup(id)
		return nil, err
	}

	e.recorder.FitStarted()
	e.wg.Add(1)
	go e.execute(ctx, id)
	return updated, nil
}

// Stop marks a fit cancelled and cancels its context if it is running
func (e *FitExecutor) Stop(id string) (*FitRecord, error) {
	if id == "" {
		return nil, ErrFitIDMissing
	}
	if _, ok := e.store.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrFitNotFound, id)
	}

	updated, err := e.store.SetStatus(id, StatusCancelled, "")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return updated, nil
}

// Wait blocks until every started fit has finished
func (e *FitExecutor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels all running fits and waits for them, or for ctx
func (e *FitExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *FitExecutor) cleanup(id string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	e.mu.Unlock()
}

func (e *FitExecutor) execute(ctx context.Context, id string) {
	defer e.wg.Done()
	defer e.cleanup(id)

	status, errMsg := e.runFit(ctx, id)
	final := status
	if _, err := e.store.SetStatus(id, status, errMsg); err != nil {
		// Stopped while finishing; the cancelled state stands.
		if rec, ok := e.store.Get(id); ok {
			final = rec.Status
		}
	}
	e.recorder.FitFinished(string(final))
	e.log.Info("fit finished", "fit_id", id, "status", final)
}

func (e *FitExecutor) resultPath(id string) string {
	if e.dataDir == "" {
		return ""
	}
	return filepath.Join(e.dataDir, id+".pb")
}

// runFit runs the repetitions and the optional analysis and returns the terminal state
func (e *FitExecutor) runFit(ctx context.Context, id string) (FitStatus, string) {
	log := e.log.With("fit_id", id)

	rec, ok := e.store.Get(id)
	if !ok {
		return StatusFailed, "fit disappeared"
	}
	in, err := rec.Request.compile()
	if err != nil {
		log.Error("invalid fit request", "error", err)
		return StatusFailed, fmt.Sprintf("invalid request: %v", err)
	}

	path := e.resultPath(id)
	s := store.NewMemory()
	if path != "" {
		if s, err = store.Open(path); err != nil {
			log.Error("failed to open result store", "path", path, "error", err)
			return StatusFailed, err.Error()
		}
	}
	index := in.run.ResultIndex

	orch := montecarlo.NewOrchestrator(montecarlo.SpecFromConfig(in.run), store.NewResultWriter(s, index)).
		WithRecorder(e.recorder).
		WithLogger(log)
	log.Info("starting fit", "model", in.run.ModelName, "repetitions", in.run.NRep, "points", in.meas.Len())
	run, err := orch.Run(ctx, in.meas, in.run.NRep, in.run.NCores)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			log.Info("fit cancelled")
			return StatusCancelled, ""
		}
		log.Error("fit failed", "error", err)
		return StatusFailed, err.Error()
	}

	summary := newSummary(in, run, path)
	if in.hist != nil {
		agg, err := analysis.Analyze(s, index, in.hist.Ranges, histogram.New(in.hist.CorrectionFactor), in.meas)
		if err != nil {
			log.Error("analysis failed", "error", err)
			return StatusFailed, err.Error()
		}
		if err := agg.StoreAverages(s, index); err != nil {
			log.Error("failed to store averages", "error", err)
			return StatusFailed, err.Error()
		}
		summary.addAnalysis(agg)
	}
	if err := e.store.SetSummary(id, summary); err != nil {
		return StatusFailed, err.Error()
	}
	return StatusCompleted, ""
}
