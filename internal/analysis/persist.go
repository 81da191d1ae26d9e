package analysis

import (
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/histogram"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"google.golang.org/protobuf/types/known/structpb"
)

func meanStdValue(ms models.MeanStd) *structpb.Value {
	return store.FloatMapValue(map[string]float64{"valMean": ms.Mean, "valStd": ms.Std})
}

// StoreAverages writes the per-repetition histograms, the range settings and all
// averages under result index k, then syncs the store. Histograms from an earlier
// analysis of the same result are removed first.
func (a *Aggregate) StoreAverages(s *store.Store, index int) error {
	if s.Exists(store.HistogramsPath(index)) {
		if err := s.Delete(store.HistogramsPath(index)); err != nil {
			return fmt.Errorf("clear earlier histograms: %w", err)
		}
	}
	for _, ra := range a.ranges {
		for _, r := range a.repetitions {
			if err := histogram.WriteRepetition(s, index, r, []histogram.RangeResult{ra.PerRepetition[r]}); err != nil {
				return err
			}
		}
		if err := histogram.WriteRanges(s, index, []histogram.RangeResult{{Index: ra.Index, Range: ra.Range, Bounds: ra.Bounds}}); err != nil {
			return err
		}

		fields := map[string]*structpb.Value{
			"binEdges": store.FloatsValue(ra.Average.Edges),
			"xMean":    store.FloatsValue(ra.Average.XMean),
			"xWidth":   store.FloatsValue(ra.Average.XWidth),
			"yMean":    store.FloatsValue(ra.Average.YMean),
			"yStd":     store.FloatsValue(ra.Average.YStd),
			"cdfMean":  store.FloatsValue(ra.Average.CDFMean),
			"cdfStd":   store.FloatsValue(ra.Average.CDFStd),
		}
		for _, key := range models.MomentKeys {
			fields[key] = meanStdValue(ra.Moments[key])
		}
		p := store.HistogramPath(index, ra.Index) + "/average"
		if err := s.Put(p, structpb.NewStructValue(&structpb.Struct{Fields: fields})); err != nil {
			return fmt.Errorf("store average of histogram range %d: %w", ra.Index, err)
		}
	}

	fields := map[string]*structpb.Value{
		"modelIMean": store.FloatsValue(a.modelIMean),
		"modelIStd":  store.FloatsValue(a.modelIStd),
	}
	for _, key := range models.OptKeys {
		fields[key] = meanStdValue(a.optimization[key])
	}
	if err := s.Put(store.OptimizationAveragePath(index), structpb.NewStructValue(&structpb.Struct{Fields: fields})); err != nil {
		return fmt.Errorf("store optimization average: %w", err)
	}
	return s.Sync()
}
