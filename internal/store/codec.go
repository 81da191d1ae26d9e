package store

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"google.golang.org/protobuf/types/known/structpb"
)

const repetitionPrefix = "repetition"

// ResultPath returns the root of result index k
func ResultPath(index int) string {
	return fmt.Sprintf("/analyses/MCResult%d", index)
}

// HistogramPath returns the node of histogram range i within result index k
func HistogramPath(index, rangeIndex int) string {
	return fmt.Sprintf("%s/histRange%d", HistogramsPath(index), rangeIndex)
}

// HistogramsPath returns the node holding every histogram range of result index k
func HistogramsPath(index int) string {
	return ResultPath(index) + "/histograms"
}

// OptimizationAveragePath returns the node holding the averaged optimization parameters
func OptimizationAveragePath(index int) string {
	return ResultPath(index) + "/optimization/average"
}

// RepetitionKey returns the node name of repetition r
func RepetitionKey(r int) string {
	return repetitionPrefix + strconv.Itoa(r)
}

// RunInfo is the batch-level part of a stored result
type RunInfo struct {
	ModelName string
	Limits    models.ParameterBounds
	Static    models.StaticParameters
	NRep      int
	NCores    int
}

// ResultWriter persists an optimization batch under one result index. It is the
// orchestrator's sink and syncs the store after every write.
type ResultWriter struct {
	store *Store
	index int
}

// NewResultWriter binds a writer to a store and result index
func NewResultWriter(s *Store, index int) *ResultWriter {
	return &ResultWriter{store: s, index: index}
}

// WriteRunInfo clears any earlier result under the index and writes the batch settings
func (w *ResultWriter) WriteRunInfo(limits models.ParameterBounds, static models.StaticParameters, modelName string, nRep, nWorkers int) error {
	root := ResultPath(w.index)
	if w.store.Exists(root) {
		if err := w.store.Delete(root); err != nil {
			return err
		}
	}

	limitFields := make(map[string]*structpb.Value, len(limits))
	for name, b := range limits {
		limitFields[name] = FloatsValue([]float64{b.Lower, b.Upper})
	}
	puts := []struct {
		path string
		v    *structpb.Value
	}{
		{root + "/model/fitParameterLimits", structpb.NewStructValue(&structpb.Struct{Fields: limitFields})},
		{root + "/model/staticParameters", FloatMapValue(static)},
		{root + "/model/modelName", structpb.NewStringValue(modelName)},
		{root + "/optimization/nRep", structpb.NewNumberValue(float64(nRep))},
		{root + "/optimization/nCores", structpb.NewNumberValue(float64(nWorkers))},
	}
	for _, p := range puts {
		if err := w.store.Put(p.path, p.v); err != nil {
			return err
		}
	}
	return w.store.Sync()
}

// WriteRepetition stores one repetition's contributions and optimization state
func (w *ResultWriter) WriteRepetition(r *models.RepetitionResult) error {
	if r == nil {
		return errors.New("nil repetition result")
	}
	modelPath := ResultPath(w.index) + "/model/" + RepetitionKey(r.Repetition)
	optPath := ResultPath(w.index) + "/optimization/" + RepetitionKey(r.Repetition)

	columns := make(map[string]*structpb.Value, len(r.Contributions.Names))
	for _, name := range r.Contributions.Names {
		col, _ := r.Contributions.Column(name)
		columns[name] = FloatsValue(col)
	}
	puts := []struct {
		path string
		v    *structpb.Value
	}{
		{modelPath + "/parameterSet", structpb.NewStructValue(&structpb.Struct{Fields: columns})},
		{modelPath + "/volumes", FloatsValue(r.Volumes)},
		// decimal string keeps all 64 bits of the seed
		{modelPath + "/seed", structpb.NewStringValue(strconv.FormatInt(r.Seed, 10))},
		{modelPath + "/modelDType", structpb.NewStringValue(r.ModelDType)},
		{optPath + "/accepted", structpb.NewNumberValue(float64(r.Accepted))},
		{optPath + "/step", structpb.NewNumberValue(float64(r.Step))},
		{optPath + "/gof", structpb.NewNumberValue(r.Gof)},
		{optPath + "/convCrit", structpb.NewNumberValue(r.Settings.ConvCrit)},
		{optPath + "/maxIter", structpb.NewNumberValue(float64(r.Settings.MaxIter))},
		{optPath + "/maxAccept", structpb.NewNumberValue(float64(r.Settings.MaxAccept))},
		{optPath + "/modelI", FloatsValue(r.ModelIntensity)},
		{optPath + "/x0", FloatsValue([]float64{r.Scale, r.Background})},
		{optPath + "/acceptedSteps", IntsValue(r.AcceptedSteps)},
		{optPath + "/acceptedGofs", FloatsValue(r.AcceptedGofs)},
		{optPath + "/termination", structpb.NewStringValue(string(r.Termination))},
	}
	for _, p := range puts {
		if err := w.store.Put(p.path, p.v); err != nil {
			return w.discard(err, modelPath, optPath)
		}
	}
	if err := w.store.Sync(); err != nil {
		return w.discard(err, modelPath, optPath)
	}
	return nil
}

// discard drops the subtrees of a repetition whose write failed, so a later Sync of
// another repetition does not persist it
func (w *ResultWriter) discard(cause error, paths ...string) error {
	for _, p := range paths {
		if err := w.store.Delete(p); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w (discarding %s: %v)", cause, p, err)
		}
	}
	return cause
}

// ReadRunInfo reads the batch settings of result index k
func ReadRunInfo(s *Store, index int) (*RunInfo, error) {
	root := ResultPath(index)
	info := &RunInfo{Limits: models.ParameterBounds{}}
	var err error

	if info.ModelName, err = s.GetString(root + "/model/modelName"); err != nil {
		return nil, err
	}
	names, err := s.List(root + "/model/fitParameterLimits")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		pair, err := s.GetFloats(root + "/model/fitParameterLimits/" + name)
		if err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: limits of %s hold %d values", models.ErrPersistence, name, len(pair))
		}
		info.Limits[name] = models.Bounds{Lower: pair[0], Upper: pair[1]}
	}
	static, err := s.GetFloatMap(root + "/model/staticParameters")
	if err != nil {
		return nil, err
	}
	info.Static = static
	if info.NRep, err = s.GetInt(root + "/optimization/nRep"); err != nil {
		return nil, err
	}
	if info.NCores, err = s.GetInt(root + "/optimization/nCores"); err != nil {
		return nil, err
	}
	return info, nil
}

// Repetitions returns the sorted ids of the repetitions present under result index k.
// A repetition counts only when both its model and optimization nodes exist; gaps left
// by failed repetitions are skipped.
func Repetitions(s *Store, index int) ([]int, error) {
	root := ResultPath(index)
	modelKeys, err := s.List(root + "/model")
	if err != nil {
		return nil, err
	}
	optKeys, err := s.List(root + "/optimization")
	if err != nil {
		return nil, err
	}
	inOpt := make(map[string]bool, len(optKeys))
	for _, k := range optKeys {
		inOpt[k] = true
	}

	var reps []int
	for _, k := range modelKeys {
		if !strings.HasPrefix(k, repetitionPrefix) || !inOpt[k] {
			continue
		}
		r, err := strconv.Atoi(strings.TrimPrefix(k, repetitionPrefix))
		if err != nil || r < 0 {
			continue
		}
		reps = append(reps, r)
	}
	sort.Ints(reps)
	return reps, nil
}

// ReadRepetition reconstructs repetition r of result index k
func ReadRepetition(s *Store, index, r int) (*models.RepetitionResult, error) {
	info, err := ReadRunInfo(s, index)
	if err != nil {
		return nil, err
	}
	modelPath := ResultPath(index) + "/model/" + RepetitionKey(r)
	optPath := ResultPath(index) + "/optimization/" + RepetitionKey(r)

	res := &models.RepetitionResult{
		Repetition:         r,
		ModelName:          info.ModelName,
		FitParameterLimits: info.Limits,
		StaticParameters:   info.Static,
	}

	names, err := s.List(modelPath + "/parameterSet")
	if err != nil {
		return nil, err
	}
	columns := make([][]float64, len(names))
	for j, name := range names {
		if columns[j], err = s.GetFloats(modelPath + "/parameterSet/" + name); err != nil {
			return nil, err
		}
		if len(columns[j]) != len(columns[0]) {
			return nil, fmt.Errorf("%w: parameter %s has %d values, expected %d",
				models.ErrPersistence, name, len(columns[j]), len(columns[0]))
		}
	}
	n := 0
	if len(columns) > 0 {
		n = len(columns[0])
	}
	res.Contributions = models.NewParameterSet(names, n)
	for i := 0; i < n; i++ {
		for j := range names {
			res.Contributions.Values[i][j] = columns[j][i]
		}
	}

	if res.Volumes, err = s.GetFloats(modelPath + "/volumes"); err != nil {
		return nil, err
	}
	seed, err := s.GetString(modelPath + "/seed")
	if err != nil {
		return nil, err
	}
	if res.Seed, err = strconv.ParseInt(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: seed of repetition %d: %w", models.ErrPersistence, r, err)
	}
	if res.ModelDType, err = s.GetString(modelPath + "/modelDType"); err != nil {
		return nil, err
	}

	if res.Accepted, err = s.GetInt(optPath + "/accepted"); err != nil {
		return nil, err
	}
	if res.Step, err = s.GetInt(optPath + "/step"); err != nil {
		return nil, err
	}
	if res.Gof, err = s.GetFloat(optPath + "/gof"); err != nil {
		return nil, err
	}
	if res.Settings.ConvCrit, err = s.GetFloat(optPath + "/convCrit"); err != nil {
		return nil, err
	}
	if res.Settings.MaxIter, err = s.GetInt(optPath + "/maxIter"); err != nil {
		return nil, err
	}
	if res.Settings.MaxAccept, err = s.GetInt(optPath + "/maxAccept"); err != nil {
		return nil, err
	}
	if res.ModelIntensity, err = s.GetFloats(optPath + "/modelI"); err != nil {
		return nil, err
	}
	x0, err := s.GetFloats(optPath + "/x0")
	if err != nil {
		return nil, err
	}
	if len(x0) != 2 {
		return nil, fmt.Errorf("%w: x0 of repetition %d holds %d values", models.ErrPersistence, r, len(x0))
	}
	res.Scale, res.Background = x0[0], x0[1]
	if res.AcceptedSteps, err = s.GetInts(optPath + "/acceptedSteps"); err != nil {
		return nil, err
	}
	if res.AcceptedGofs, err = s.GetFloats(optPath + "/acceptedGofs"); err != nil {
		return nil, err
	}
	term, err := s.GetString(optPath + "/termination")
	if err != nil {
		return nil, err
	}
	res.Termination = models.Termination(term)
	return res, nil
}
