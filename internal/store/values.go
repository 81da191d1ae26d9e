package store

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// FloatsValue encodes a float slice as a list value. structpb.NewList would need an
// []any copy first.
func FloatsValue(xs []float64) *structpb.Value {
	values := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		values[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// IntsValue encodes an int slice as a list value
func IntsValue(xs []int) *structpb.Value {
	values := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		values[i] = structpb.NewNumberValue(float64(x))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// FloatMapValue encodes a string-keyed float map as a node
func FloatMapValue(m map[string]float64) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewNumberValue(v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

// PutFloat stores a number
func (s *Store) PutFloat(p string, v float64) error {
	return s.Put(p, structpb.NewNumberValue(v))
}

// PutFloats stores a number list
func (s *Store) PutFloats(p string, xs []float64) error {
	return s.Put(p, FloatsValue(xs))
}

// PutString stores a string
func (s *Store) PutString(p, v string) error {
	return s.Put(p, structpb.NewStringValue(v))
}

// GetFloat reads a number
func (s *Store) GetFloat(p string) (float64, error) {
	v, err := s.Get(p)
	if err != nil {
		return 0, err
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", models.ErrPersistence, p)
	}
	return n.NumberValue, nil
}

// GetInt reads a number that must hold an integer
func (s *Store) GetInt(p string) (int, error) {
	f, err := s.GetFloat(p)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s holds non-integer %g", models.ErrPersistence, p, f)
	}
	return int(f), nil
}

// GetString reads a string
func (s *Store) GetString(p string) (string, error) {
	v, err := s.Get(p)
	if err != nil {
		return "", err
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", models.ErrPersistence, p)
	}
	return str.StringValue, nil
}

// GetFloats reads a number list
func (s *Store) GetFloats(p string) ([]float64, error) {
	v, err := s.Get(p)
	if err != nil {
		return nil, err
	}
	return floatsOf(p, v)
}

// GetInts reads a number list holding integers
func (s *Store) GetInts(p string) ([]int, error) {
	xs, err := s.GetFloats(p)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out, nil
}

// GetFloatMap reads a node whose children are all numbers
func (s *Store) GetFloatMap(p string) (map[string]float64, error) {
	v, err := s.Get(p)
	if err != nil {
		return nil, err
	}
	node := v.GetStructValue()
	if node == nil {
		return nil, fmt.Errorf("%w: %s is not a node", models.ErrPersistence, p)
	}
	out := make(map[string]float64, len(node.Fields))
	for k, item := range node.Fields {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s is not a number", models.ErrPersistence, p, k)
		}
		out[k] = n.NumberValue
	}
	return out, nil
}

func floatsOf(p string, v *structpb.Value) ([]float64, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s is not a list", models.ErrPersistence, p)
	}
	out := make([]float64, len(list.Values))
	for i, item := range list.Values {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is not a number", models.ErrPersistence, p, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}
