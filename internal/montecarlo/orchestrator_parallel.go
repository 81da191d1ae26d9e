package montecarlo

import (
	"context"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"golang.org/x/sync/errgroup"
)

// runParallel runs jobs on at most workers goroutines. Finished repetitions are sent
// over a channel to the calling goroutine, which is the only one writing to the sink.
func (o *Orchestrator) runParallel(ctx context.Context, meas *models.MeasurementData, bounds models.ParameterBounds, jobs []repetitionJob, workers int, summary *RunSummary) {
	results := make(chan repetitionDone, workers)

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, job := range jobs {
			job := job
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					results <- repetitionDone{outcome: RepetitionOutcome{
						Repetition: job.repetition, Seed: job.seed, Status: RepetitionCancelled, Err: err,
					}}
					return nil
				}
				// a repetition failure is reported through its outcome and never cancels the others
				results <- o.runRepetition(ctx, meas, bounds, job)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for done := range results {
		o.collect(done, summary)
	}
}
