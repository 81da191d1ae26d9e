package histogram

import (
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
	"gonum.org/v1/gonum/floats"
)

// maxAutoBins caps the bin count chosen by the auto rule for pathological inputs
const maxAutoBins = 10000

// BinEdges returns the bin edges of one range over [b.Lower, b.Upper]. Linear and log
// scales give NBin+1 edges; auto picks the count from the values inside the range with
// the smaller of the Freedman-Diaconis and Sturges widths.
func BinEdges(hr models.HistogramRange, b models.Bounds, values []float64) ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	switch hr.BinScale {
	case models.BinScaleLinear:
		return floats.Span(make([]float64, hr.NBin+1), b.Lower, b.Upper), nil
	case models.BinScaleLog:
		if b.Lower <= 0 {
			return nil, fmt.Errorf("%w: log binning needs a positive range minimum, got %g", models.ErrConfiguration, b.Lower)
		}
		edges := floats.LogSpan(make([]float64, hr.NBin+1), b.Lower, b.Upper)
		edges[0], edges[len(edges)-1] = b.Lower, b.Upper
		return edges, nil
	case models.BinScaleAuto:
		n := autoBinCount(values, b)
		return floats.Span(make([]float64, n+1), b.Lower, b.Upper), nil
	}
	return nil, fmt.Errorf("%w: unknown bin scale %q", models.ErrConfiguration, hr.BinScale)
}

func autoBinCount(values []float64, b models.Bounds) int {
	inside := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= b.Lower && v <= b.Upper {
			inside = append(inside, v)
		}
	}
	width := autoBinWidth(inside)
	if width <= 0 || math.IsNaN(width) {
		return 1
	}
	n := int(math.Ceil((b.Upper - b.Lower) / width))
	if n < 1 {
		return 1
	}
	if n > maxAutoBins {
		return maxAutoBins
	}
	return n
}

func autoBinWidth(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sturges := floats.Max(x) - floats.Min(x)
	sturges /= math.Log2(float64(len(x))) + 1
	iqr := utils.Percentile(x, 75) - utils.Percentile(x, 25)
	fd := 2 * iqr * math.Pow(float64(len(x)), -1.0/3)
	if fd > 0 {
		return math.Min(fd, sturges)
	}
	return sturges
}

// Count bins values into edges. Bins are half-open [e_i, e_i+1) except the last, which
// also includes its upper edge; values outside the edges are not counted.
func Count(values, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	counts := make([]float64, len(edges)-1)
	lo, hi := edges[0], edges[len(edges)-1]
	for _, v := range values {
		if v < lo || v > hi || math.IsNaN(v) {
			continue
		}
		if v == hi {
			counts[len(counts)-1]++
			continue
		}
		// first edge strictly greater than v closes v's bin
		i := sort.Search(len(edges), func(k int) bool { return edges[k] > v }) - 1
		counts[i]++
	}
	return counts
}
