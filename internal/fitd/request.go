package fitd

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/data"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/config"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// FitRequest is the payload of a fit job. The measurement is given either as table
// text in Data, read with ReadYAML, or directly as arrays in Measurement.
type FitRequest struct {
	RunYAML     string                  `json:"run_yaml"`
	HistYAML    string                  `json:"hist_yaml,omitempty"`
	ReadYAML    string                  `json:"read_yaml,omitempty"`
	Data        string                  `json:"data,omitempty"`
	Measurement *models.MeasurementData `json:"measurement,omitempty"`
}

type fitInput struct {
	run  *config.RunConfig
	hist *config.HistConfig
	meas *models.MeasurementData
}

// compile parses every part of the request and prepares the measurement
func (r *FitRequest) compile() (*fitInput, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: request is empty", models.ErrConfiguration)
	}
	run, err := config.ParseRunYAMLString(r.RunYAML)
	if err != nil {
		return nil, err
	}
	if !kernel.Exists(run.ModelName) {
		return nil, fmt.Errorf("%w: unknown model %q", models.ErrConfiguration, run.ModelName)
	}
	in := &fitInput{run: run}

	if strings.TrimSpace(r.HistYAML) != "" {
		if in.hist, err = config.ParseHistYAMLString(r.HistYAML); err != nil {
			return nil, err
		}
	}

	readCfg, err := config.ParseReadYAML([]byte(r.ReadYAML))
	if err != nil {
		return nil, err
	}
	switch {
	case r.Measurement != nil && r.Data != "":
		return nil, fmt.Errorf("%w: give either data or measurement, not both", models.ErrConfiguration)
	case r.Measurement != nil:
		in.meas, err = data.Prepare(r.Measurement, *readCfg)
	case r.Data != "":
		in.meas, err = data.Load(strings.NewReader(r.Data), *readCfg)
	default:
		return nil, fmt.Errorf("%w: a measurement is required", models.ErrConfiguration)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}
