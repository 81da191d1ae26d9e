package models

import (
	"fmt"
	"math"
)

// MeasurementData is the prepared scattering curve a run is fitted against. For 2D data
// Q holds Qx and Qy holds the second coordinate; for 1D data Qy is nil.
type MeasurementData struct {
	Q      []float64 `json:"Q"`
	Qy     []float64 `json:"Qy,omitempty"`
	I      []float64 `json:"I"`
	ISigma []float64 `json:"ISigma"`
}

// Len returns the number of data points
func (m *MeasurementData) Len() int {
	return len(m.I)
}

// Is2D reports whether the measurement carries two coordinate arrays
func (m *MeasurementData) Is2D() bool {
	return m.Qy != nil
}

// Validate checks equal non-empty lengths, finite values and strictly positive uncertainty
func (m *MeasurementData) Validate() error {
	n := len(m.I)
	if n == 0 {
		return fmt.Errorf("%w: measurement has no data points", ErrConfiguration)
	}
	if len(m.Q) != n || len(m.ISigma) != n {
		return fmt.Errorf("%w: measurement arrays differ in length (Q=%d, I=%d, ISigma=%d)",
			ErrConfiguration, len(m.Q), n, len(m.ISigma))
	}
	if m.Qy != nil && len(m.Qy) != n {
		return fmt.Errorf("%w: Qy has %d points, expected %d", ErrConfiguration, len(m.Qy), n)
	}
	for i := 0; i < n; i++ {
		if !finite(m.Q[i]) || !finite(m.I[i]) || !finite(m.ISigma[i]) || (m.Qy != nil && !finite(m.Qy[i])) {
			return fmt.Errorf("%w: non-finite measurement value at index %d", ErrConfiguration, i)
		}
		if m.ISigma[i] <= 0 {
			return fmt.Errorf("%w: uncertainty must be positive, got %g at index %d", ErrConfiguration, m.ISigma[i], i)
		}
	}
	return nil
}

// QMagnitude returns |Q| per point
func (m *MeasurementData) QMagnitude() []float64 {
	out := make([]float64, len(m.Q))
	for i, q := range m.Q {
		if m.Qy != nil {
			out[i] = math.Hypot(q, m.Qy[i])
		} else {
			out[i] = math.Abs(q)
		}
	}
	return out
}

// AutoBounds returns the size bounds [π/max|Q|, π/min|Q|] implied by the measured Q range
func (m *MeasurementData) AutoBounds() (Bounds, error) {
	qs := m.QMagnitude()
	if len(qs) == 0 {
		return Bounds{}, fmt.Errorf("%w: cannot derive auto bounds from empty measurement", ErrConfiguration)
	}
	qMin, qMax := qs[0], qs[0]
	for _, q := range qs[1:] {
		qMin = math.Min(qMin, q)
		qMax = math.Max(qMax, q)
	}
	if qMin <= 0 {
		return Bounds{}, fmt.Errorf("%w: auto bounds need a strictly positive minimum Q, got %g", ErrConfiguration, qMin)
	}
	b := Bounds{Lower: math.Pi / qMax, Upper: math.Pi / qMin}
	if err := b.Validate(); err != nil {
		return Bounds{}, fmt.Errorf("auto bounds: %w", err)
	}
	return b, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
