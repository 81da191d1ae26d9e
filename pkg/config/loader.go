package config

import (
	"fmt"
	"math"
	"os"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// LoadRunConfig loads and parses a run configuration file
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file %s: %w", path, err)
	}
	cfg, err := ParseRunYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadHistConfig loads and parses a histogram configuration file
func LoadHistConfig(path string) (*HistConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read histogram config file %s: %w", path, err)
	}
	cfg, err := ParseHistYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse histogram config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadReadConfig loads and parses a data read configuration file
func LoadReadConfig(path string) (*ReadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data config file %s: %w", path, err)
	}
	cfg, err := ParseReadYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyRunDefaults(cfg *RunConfig) {
	if cfg.NContrib == 0 {
		cfg.NContrib = DefaultNContrib
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = DefaultMaxIter
	}
	if cfg.ConvCrit == nil {
		convCrit := DefaultConvCrit
		cfg.ConvCrit = &convCrit
	}
	if cfg.NRep == 0 {
		cfg.NRep = DefaultNRep
	}
}

func applyHistDefaults(cfg *HistConfig) {
	if cfg.CorrectionFactor == 0 {
		cfg.CorrectionFactor = DefaultCorrectionFactor
	}
	for i := range cfg.Ranges {
		if cfg.Ranges[i].BinWeighting == "" {
			cfg.Ranges[i].BinWeighting = models.WeightingVolume
		}
		if cfg.Ranges[i].BinScale == "" {
			cfg.Ranges[i].BinScale = models.BinScaleLinear
		}
	}
}

func applyReadDefaults(cfg *ReadConfig) {
	if len(cfg.Columns) == 0 {
		cfg.Columns = append([]string(nil), DefaultColumns...)
	}
	if cfg.IEmin == 0 {
		cfg.IEmin = DefaultIEmin
	}
}

// validateRunConfig performs validation on the run configuration
func validateRunConfig(cfg *RunConfig) error {
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: modelName cannot be empty", models.ErrConfiguration)
	}
	if cfg.NContrib < 1 {
		return fmt.Errorf("%w: nContrib must be positive, got %d", models.ErrConfiguration, cfg.NContrib)
	}
	if err := cfg.Limits().Validate(); err != nil {
		return fmt.Errorf("fitParameterLimits: %w", err)
	}
	if err := cfg.Static().CheckDisjoint(cfg.Limits().Bounds()); err != nil {
		return err
	}
	for name, v := range cfg.StaticParameters {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: static parameter %s must be finite", models.ErrConfiguration, name)
		}
	}
	if cfg.SimData != nil {
		if len(cfg.SimData.Q) < 2 || len(cfg.SimData.Q) != len(cfg.SimData.I) {
			return fmt.Errorf("%w: simData needs at least two Q/I pairs of equal length", models.ErrConfiguration)
		}
	}
	if cfg.MaxIter < 1 {
		return fmt.Errorf("%w: maxIter must be positive, got %d", models.ErrConfiguration, cfg.MaxIter)
	}
	if cfg.MaxAccept < 0 {
		return fmt.Errorf("%w: maxAccept cannot be negative, got %d", models.ErrConfiguration, cfg.MaxAccept)
	}
	if cfg.ConvCrit != nil && (math.IsNaN(*cfg.ConvCrit) || *cfg.ConvCrit < 0) {
		return fmt.Errorf("%w: convCrit must be a non-negative number, got %g", models.ErrConfiguration, *cfg.ConvCrit)
	}
	if cfg.NRep < 1 {
		return fmt.Errorf("%w: nRep must be positive, got %d", models.ErrConfiguration, cfg.NRep)
	}
	if cfg.NCores < 0 {
		return fmt.Errorf("%w: nCores cannot be negative, got %d", models.ErrConfiguration, cfg.NCores)
	}
	if cfg.ResultIndex < 0 {
		return fmt.Errorf("%w: resultIndex cannot be negative, got %d", models.ErrConfiguration, cfg.ResultIndex)
	}
	return nil
}

// validateHistConfig checks the parts of each range that do not depend on the run
func validateHistConfig(cfg *HistConfig) error {
	if len(cfg.Ranges) == 0 {
		return fmt.Errorf("%w: at least one histogram range must be defined", models.ErrConfiguration)
	}
	if cfg.CorrectionFactor <= 0 {
		return fmt.Errorf("%w: correctionFactor must be positive, got %g", models.ErrConfiguration, cfg.CorrectionFactor)
	}
	for i, r := range cfg.Ranges {
		if r.Parameter == "" {
			return fmt.Errorf("%w: range %d: parameter cannot be empty", models.ErrConfiguration, i)
		}
		// Checking against a bound set holding only this parameter validates everything
		// except membership, which needs the run's fit parameters.
		placeholder := models.ParameterBounds{r.Parameter: {Lower: 1, Upper: 2}}
		if err := r.Validate(placeholder); err != nil {
			return fmt.Errorf("range %d: %w", i, err)
		}
	}
	return nil
}

// ValidateRanges checks histogram ranges against the fit parameters of a run
func (c *HistConfig) ValidateRanges(bounds models.ParameterBounds) error {
	for i, r := range c.Ranges {
		if err := r.Validate(bounds); err != nil {
			return fmt.Errorf("range %d: %w", i, err)
		}
	}
	return nil
}

// validateReadConfig performs validation on the read configuration
func validateReadConfig(cfg *ReadConfig) error {
	seen := make(map[string]bool)
	for _, c := range cfg.Columns {
		switch c {
		case "Q", "Qy", "I", "ISigma", "skip":
		default:
			return fmt.Errorf("%w: unknown column %q (must be Q, Qy, I, ISigma or skip)", models.ErrConfiguration, c)
		}
		if c != "skip" && seen[c] {
			return fmt.Errorf("%w: duplicate column %q", models.ErrConfiguration, c)
		}
		seen[c] = true
	}
	for _, required := range []string{"Q", "I", "ISigma"} {
		if !seen[required] {
			return fmt.Errorf("%w: column %s is required", models.ErrConfiguration, required)
		}
	}
	if cfg.SkipRows < 0 {
		return fmt.Errorf("%w: skipRows cannot be negative", models.ErrConfiguration)
	}
	if cfg.QMin < 0 || (cfg.QMax != 0 && cfg.QMax <= cfg.QMin) {
		return fmt.Errorf("%w: invalid Q clip range [%g, %g]", models.ErrConfiguration, cfg.QMin, cfg.QMax)
	}
	for i, r := range cfg.OmitQRanges {
		if len(r) != 2 || r[0] >= r[1] {
			return fmt.Errorf("%w: omitQRanges[%d] must be an ordered [lower, upper] pair", models.ErrConfiguration, i)
		}
	}
	if cfg.IEmin < 0 || cfg.IEmin >= 1 {
		return fmt.Errorf("%w: IEmin must be in [0, 1), got %g", models.ErrConfiguration, cfg.IEmin)
	}
	return nil
}
