package montecarlo

import (
	"github.com/GoSim-25-26J-441/mcfit-core/internal/kernel"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/config"
)

// SpecFromConfig builds the run spec described by a parsed run configuration
func SpecFromConfig(cfg *config.RunConfig) RunSpec {
	spec := RunSpec{
		ModelName: cfg.ModelName,
		NContrib:  cfg.NContrib,
		Limits:    cfg.Limits(),
		Static:    cfg.Static(),
		Settings:  cfg.Settings(),
		Seed:      cfg.Seed,
	}
	if cfg.SimData != nil {
		spec.KernelOptions = kernel.Options{SimQ: cfg.SimData.Q, SimI: cfg.SimData.I}
	}
	return spec
}
