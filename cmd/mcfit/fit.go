package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/analysis"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/data"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/histogram"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/config"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit a measurement and store every repetition in a result file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringP("data", "f", "", "measurement table")
	f.StringP("read-config", "F", "", "data read configuration (YAML)")
	f.StringP("run-config", "R", "", "run configuration (YAML)")
	f.StringP("result", "r", "", "result file")
	f.IntP("index", "i", -1, "result index (default: resultIndex of the run configuration)")
	f.BoolP("delete", "d", false, "delete an existing result file first")
	f.IntP("threads", "t", -1, "parallel repetitions, 0 = all cores (default: nCores of the run configuration)")
	f.StringP("hist-config", "H", "", "histogram configuration (YAML) to analyze right after the run")
	return cmd
}

func newHistogramCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histogram",
		Short: "Histogram and average the repetitions of a stored result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistogram(v, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringP("result", "r", "", "result file")
	f.StringP("hist-config", "H", "", "histogram configuration (YAML)")
	f.IntP("index", "i", 1, "result index")
	f.String("data", "", "measurement table, adds the Q range to the report")
	f.StringP("read-config", "F", "", "data read configuration (YAML)")
	return cmd
}

// loadMeasurement reads the measurement named by the data flag; nil without one
func loadMeasurement(v *viper.Viper) (*models.MeasurementData, error) {
	path := v.GetString("data")
	if path == "" {
		return nil, nil
	}
	readCfg, err := config.ParseReadYAML(nil)
	if p := v.GetString("read-config"); p != "" {
		readCfg, err = config.LoadReadConfig(p)
	}
	if err != nil {
		return nil, err
	}
	return data.LoadFile(path, *readCfg)
}

func runFit(ctx context.Context, v *viper.Viper, out io.Writer) error {
	runCfg, err := config.LoadRunConfig(v.GetString("run-config"))
	if err != nil {
		return err
	}
	if err := existingFile("data", v.GetString("data")); err != nil {
		return err
	}
	meas, err := loadMeasurement(v)
	if err != nil {
		return err
	}
	var hist *config.HistConfig
	if p := v.GetString("hist-config"); p != "" {
		if hist, err = config.LoadHistConfig(p); err != nil {
			return err
		}
	}

	if i := v.GetInt("index"); i >= 0 {
		runCfg.ResultIndex = i
	}
	if t := v.GetInt("threads"); t >= 0 {
		runCfg.NCores = t
	}

	resultPath := v.GetString("result")
	if resultPath == "" {
		return errors.New("result file is required")
	}
	if v.GetBool("delete") {
		if err := os.Remove(resultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete result file: %w", err)
		}
	}
	s, err := store.Open(resultPath)
	if err != nil {
		return err
	}

	orch := montecarlo.NewOrchestrator(montecarlo.SpecFromConfig(runCfg), store.NewResultWriter(s, runCfg.ResultIndex)).
		WithLogger(logger.Default)
	summary, err := orch.Run(ctx, meas, runCfg.NRep, runCfg.NCores)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d repetitions completed in %s (%d workers, base seed %d)\n",
		summary.Completed, len(summary.Outcomes), summary.Duration.Round(time.Millisecond), summary.Workers, summary.BaseSeed)
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(out, "  repetition %d %s: %v\n", o.Repetition, o.Status, o.Err)
		}
	}

	if hist == nil {
		return nil
	}
	return analyze(s, runCfg.ResultIndex, hist, meas, out)
}

func runHistogram(v *viper.Viper, out io.Writer) error {
	resultPath := v.GetString("result")
	if err := existingFile("result", resultPath); err != nil {
		return err
	}
	hist, err := config.LoadHistConfig(v.GetString("hist-config"))
	if err != nil {
		return err
	}
	meas, err := loadMeasurement(v)
	if err != nil {
		return err
	}
	s, err := store.Open(resultPath)
	if err != nil {
		return err
	}
	return analyze(s, v.GetInt("index"), hist, meas, out)
}

// analyze histograms every stored repetition, stores the averages and prints the reports
func analyze(s *store.Store, index int, hist *config.HistConfig, meas *models.MeasurementData, out io.Writer) error {
	agg, err := analysis.Analyze(s, index, hist.Ranges, histogram.New(hist.CorrectionFactor), meas)
	if err != nil {
		return err
	}
	if err := agg.StoreAverages(s, index); err != nil {
		return err
	}
	for i := 0; i < agg.NumRanges(); i++ {
		report, err := agg.RangeReport(i)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report)
	}
	fmt.Fprint(out, agg.RunReport())
	return nil
}
