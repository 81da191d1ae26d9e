package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
)

// statLine formats one "name: mean ± std (± rel %)" row; the relative spread is left out
// when the mean is zero
func statLine(name string, ms models.MeanStd) string {
	if ms.Mean != 0 && !math.IsNaN(ms.Mean) {
		return fmt.Sprintf("%-10s: % .2e ± % .2e (± % .2f %%)\n", name, ms.Mean, ms.Std, ms.Std/ms.Mean*100)
	}
	return fmt.Sprintf("%-10s: % .2e ± % .2e\n", name, ms.Mean, ms.Std)
}

// RangeReport returns the population statistics of histogram range i as fixed-width text
func (a *Aggregate) RangeReport(i int) (string, error) {
	ra, ok := a.Range(i)
	if !ok {
		return "", fmt.Errorf("%w: no histogram range %d", models.ErrAggregation, i)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*** Population statistics for histogram range %d ***\n", i)
	fmt.Fprintf(&b, "For % .2e ≤ %s ≤ % .2e, vol-weighted\n", ra.Bounds.Lower, ra.Range.Parameter, ra.Bounds.Upper)
	b.WriteString(strings.Repeat("-", 47) + "\n")
	for _, key := range models.MomentKeys {
		b.WriteString(statLine(key, ra.Moments[key]))
	}
	return b.String(), nil
}

// RunReport returns the optimization statistics averaged over all repetitions
func (a *Aggregate) RunReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** Optimization statistics averaged over %d repetitions ***\n", len(a.repetitions))
	if !math.IsNaN(a.qMin) {
		fmt.Fprintf(&b, "For % .2e ≤ Q (1/nm) ≤ % .2e\n", a.qMin, a.qMax)
	}
	b.WriteString(strings.Repeat("-", 49) + "\n")
	for _, key := range models.OptKeys {
		b.WriteString(statLine(key, a.optimization[key]))
	}
	return b.String()
}
