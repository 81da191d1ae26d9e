package models

import (
	"fmt"
)

// Limit is a configured fit parameter range, either explicit or derived from the
// measured Q range.
type Limit struct {
	Auto   bool
	Bounds Bounds
}

// FitLimits maps fit parameter names to configured limits
type FitLimits map[string]Limit

// Validate checks explicit bounds. Auto limits are checked at resolution time.
func (fl FitLimits) Validate() error {
	if len(fl) == 0 {
		return fmt.Errorf("%w: at least one fit parameter is required", ErrConfiguration)
	}
	for name, l := range fl {
		if name == "" {
			return fmt.Errorf("%w: fit parameter name cannot be empty", ErrConfiguration)
		}
		if l.Auto {
			continue
		}
		if err := l.Bounds.Validate(); err != nil {
			return fmt.Errorf("fit parameter %s: %w", name, err)
		}
	}
	return nil
}

// HasAuto reports whether any limit needs the measurement to resolve
func (fl FitLimits) HasAuto() bool {
	for _, l := range fl {
		if l.Auto {
			return true
		}
	}
	return false
}

// Resolve replaces every auto limit with [π/max|Q|, π/min|Q|] of the measurement.
// The measurement is only consulted when at least one limit is auto.
func (fl FitLimits) Resolve(meas *MeasurementData) (ParameterBounds, error) {
	if err := fl.Validate(); err != nil {
		return nil, err
	}
	var auto Bounds
	if fl.HasAuto() {
		if meas == nil {
			return nil, fmt.Errorf("%w: auto limits need measurement data", ErrConfiguration)
		}
		b, err := meas.AutoBounds()
		if err != nil {
			return nil, err
		}
		auto = b
	}
	out := make(ParameterBounds, len(fl))
	for name, l := range fl {
		if l.Auto {
			out[name] = auto
		} else {
			out[name] = l.Bounds
		}
	}
	return out, nil
}

// Bounds returns the configured bounds without resolving auto entries, which map to the
// zero Bounds. Useful where only the parameter names matter.
func (fl FitLimits) Bounds() ParameterBounds {
	out := make(ParameterBounds, len(fl))
	for name, l := range fl {
		out[name] = l.Bounds
	}
	return out
}

// LimitsFromBounds wraps explicit bounds as limits
func LimitsFromBounds(pb ParameterBounds) FitLimits {
	out := make(FitLimits, len(pb))
	for name, b := range pb {
		out[name] = Limit{Bounds: b}
	}
	return out
}
