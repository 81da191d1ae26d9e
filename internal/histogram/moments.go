package histogram

import (
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"gonum.org/v1/gonum/stat"
)

// ComputeMoments returns the five population moments of the values inside [b.Lower,
// b.Upper], both ends included, with unit weight per contribution. The total value is
// the in-range count scaled to absolute units. Variance is the population variance;
// skew and kurtosis are the standardized third and fourth central moments (kurtosis is
// not excess). An empty range yields a zero total and NaN for the rest; zero variance
// yields NaN skew and kurtosis.
func ComputeMoments(values []float64, b models.Bounds, scale, correction float64) models.Moments {
	inside := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= b.Lower && v <= b.Upper {
			inside = append(inside, v)
		}
	}
	nan := math.NaN()
	if len(inside) == 0 {
		return models.Moments{Mean: nan, Variance: nan, Skew: nan, Kurtosis: nan}
	}

	mean, variance := stat.PopMeanVariance(inside, nil)
	m := models.Moments{
		TotalValue: float64(len(inside)) * correction * scale,
		Mean:       mean,
		Variance:   variance,
		Skew:       nan,
		Kurtosis:   nan,
	}
	if variance > 0 {
		sigma := math.Sqrt(variance)
		m.Skew = stat.Moment(3, inside, nil) / (sigma * sigma * sigma)
		m.Kurtosis = stat.Moment(4, inside, nil) / (variance * variance)
	}
	return m
}
