package histogram

import (
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/store"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// WriteRanges stores the resolved settings of every range next to its histograms
func WriteRanges(s *store.Store, index int, results []RangeResult) error {
	for _, r := range results {
		fields := map[string]*structpb.Value{
			"parameter":      structpb.NewStringValue(r.Range.Parameter),
			"nBin":           structpb.NewNumberValue(float64(r.Range.NBin)),
			"binScale":       structpb.NewStringValue(string(r.Range.BinScale)),
			"binWeighting":   structpb.NewStringValue(r.Range.BinWeighting),
			"autoRange":      structpb.NewBoolValue(r.Range.AutoRange),
			"presetRangeMin": structpb.NewNumberValue(r.Range.PresetRangeMin),
			"presetRangeMax": structpb.NewNumberValue(r.Range.PresetRangeMax),
			"rangeMin":       structpb.NewNumberValue(r.Bounds.Lower),
			"rangeMax":       structpb.NewNumberValue(r.Bounds.Upper),
		}
		if err := s.Put(store.HistogramPath(index, r.Index)+"/settings", structpb.NewStructValue(&structpb.Struct{Fields: fields})); err != nil {
			return fmt.Errorf("store histogram range %d: %w", r.Index, err)
		}
	}
	return nil
}

// WriteRepetition stores the histograms and moments of repetition rep, replacing any
// earlier histogramming of the same repetition
func WriteRepetition(s *store.Store, index, rep int, results []RangeResult) error {
	for _, r := range results {
		fields := map[string]*structpb.Value{
			"binEdges": store.FloatsValue(r.Edges),
			"hist":     store.FloatsValue(r.Heights),
			"counts":   store.FloatsValue(r.Counts),
		}
		for _, key := range models.MomentKeys {
			fields[key] = structpb.NewNumberValue(r.Moments.Get(key))
		}
		p := store.HistogramPath(index, r.Index) + "/" + store.RepetitionKey(rep)
		if err := s.Put(p, structpb.NewStructValue(&structpb.Struct{Fields: fields})); err != nil {
			return fmt.Errorf("store histogram range %d repetition %d: %w", r.Index, rep, err)
		}
	}
	return nil
}

// ReadRepetition loads the stored histogram of one range and repetition
func ReadRepetition(s *store.Store, index, rangeIndex, rep int) (*RangeResult, error) {
	p := store.HistogramPath(index, rangeIndex) + "/" + store.RepetitionKey(rep)
	out := &RangeResult{Index: rangeIndex}
	var err error
	if out.Edges, err = s.GetFloats(p + "/binEdges"); err != nil {
		return nil, err
	}
	if out.Heights, err = s.GetFloats(p + "/hist"); err != nil {
		return nil, err
	}
	if out.Counts, err = s.GetFloats(p + "/counts"); err != nil {
		return nil, err
	}
	for _, key := range models.MomentKeys {
		v, err := s.GetFloat(p + "/" + key)
		if err != nil {
			return nil, err
		}
		out.Moments.Set(key, v)
	}
	return out, nil
}
