// Package store is the hierarchical result store. Values live in a tree of
// google.protobuf.Struct nodes addressed by slash-separated paths and are persisted as
// binary protobuf, rewritten atomically on Sync.
package store

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned for paths that do not exist in the tree
var ErrNotFound = errors.New("path not found")

// Store is a mutex-guarded hierarchical key/value tree. A Store opened without a file
// path lives in memory only and Sync is a no-op.
type Store struct {
	mu    sync.RWMutex
	path  string
	root  *structpb.Struct
	dirty bool
}

// NewMemory returns an empty in-memory store
func NewMemory() *Store {
	return &Store{root: &structpb.Struct{Fields: map[string]*structpb.Value{}}}
}

// Open loads the store at path, or starts an empty one when the file does not exist yet
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: store path cannot be empty", models.ErrConfiguration)
	}
	s := NewMemory()
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrPersistence, path, err)
	}
	if err := proto.Unmarshal(data, s.root); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", models.ErrPersistence, path, err)
	}
	if s.root.Fields == nil {
		s.root.Fields = map[string]*structpb.Value{}
	}
	return s, nil
}

// Path returns the backing file, or "" for an in-memory store
func (s *Store) Path() string {
	return s.path
}

func splitPath(p string) ([]string, error) {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty store path %q", models.ErrPersistence, p)
	}
	return parts, nil
}

// Put stores v at path, replacing whatever was there. Missing intermediate nodes are
// created; a leaf found on the way is replaced by a node.
func (s *Store) Put(p string, v *structpb.Value) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.root
	for _, part := range parts[:len(parts)-1] {
		next := node.Fields[part].GetStructValue()
		if next == nil {
			next = &structpb.Struct{Fields: map[string]*structpb.Value{}}
			node.Fields[part] = structpb.NewStructValue(next)
		}
		if next.Fields == nil {
			next.Fields = map[string]*structpb.Value{}
		}
		node = next
	}
	node.Fields[parts[len(parts)-1]] = v
	s.dirty = true
	return nil
}

func (s *Store) lookup(parts []string) (*structpb.Value, bool) {
	cur := structpb.NewStructValue(s.root)
	for _, part := range parts {
		node := cur.GetStructValue()
		if node == nil {
			return nil, false
		}
		next, ok := node.Fields[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Get returns a copy of the value at path
func (s *Store) Get(p string) (*structpb.Value, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lookup(parts)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", models.ErrPersistence, ErrNotFound, p)
	}
	return proto.Clone(v).(*structpb.Value), nil
}

// Exists reports whether path holds a value or node
func (s *Store) Exists(p string) bool {
	parts, err := splitPath(p)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(parts)
	return ok
}

// List returns the sorted child keys of the node at path. "/" lists the root.
func (s *Store) List(p string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node := s.root
	if strings.Trim(p, "/") != "" {
		parts, err := splitPath(p)
		if err != nil {
			return nil, err
		}
		v, ok := s.lookup(parts)
		if !ok {
			return nil, fmt.Errorf("%w: %w: %s", models.ErrPersistence, ErrNotFound, p)
		}
		node = v.GetStructValue()
		if node == nil {
			return nil, fmt.Errorf("%w: %s is a leaf", models.ErrPersistence, p)
		}
	}
	keys := make([]string, 0, len(node.Fields))
	for k := range node.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the value or subtree at path
func (s *Store) Delete(p string) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.lookup(parts[:len(parts)-1])
	if !ok || parent.GetStructValue() == nil {
		return fmt.Errorf("%w: %w: %s", models.ErrPersistence, ErrNotFound, p)
	}
	fields := parent.GetStructValue().Fields
	leaf := parts[len(parts)-1]
	if _, ok := fields[leaf]; !ok {
		return fmt.Errorf("%w: %w: %s", models.ErrPersistence, ErrNotFound, p)
	}
	delete(fields, leaf)
	s.dirty = true
	return nil
}

// Sync writes the tree to its file through a temporary file and rename, so a reader
// never sees a partial store. It does nothing for in-memory stores or when nothing changed.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" || !s.dirty {
		return nil
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(s.root)
	if err != nil {
		return fmt.Errorf("%w: encode store: %w", models.ErrPersistence, err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", models.ErrPersistence, tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", models.ErrPersistence, s.path, err)
	}
	s.dirty = false
	return nil
}

// ExportJSON writes the tree, or the subtree at path when path is not "/", as indented
// protojson. Non-finite numbers are written as the strings "NaN", "Infinity" and
// "-Infinity" because google.protobuf.Value cannot hold them in JSON.
func (s *Store) ExportJSON(w io.Writer, p string) error {
	var v *structpb.Value
	if strings.Trim(p, "/") == "" {
		s.mu.RLock()
		v = structpb.NewStructValue(proto.Clone(s.root).(*structpb.Struct))
		s.mu.RUnlock()
	} else {
		got, err := s.Get(p)
		if err != nil {
			return err
		}
		v = got
	}
	replaceNonFinite(v)

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: export json: %w", models.ErrPersistence, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	return nil
}

func replaceNonFinite(v *structpb.Value) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		switch f := k.NumberValue; {
		case math.IsNaN(f):
			v.Kind = &structpb.Value_StringValue{StringValue: "NaN"}
		case math.IsInf(f, 1):
			v.Kind = &structpb.Value_StringValue{StringValue: "Infinity"}
		case math.IsInf(f, -1):
			v.Kind = &structpb.Value_StringValue{StringValue: "-Infinity"}
		}
	case *structpb.Value_ListValue:
		for _, item := range k.ListValue.GetValues() {
			replaceNonFinite(item)
		}
	case *structpb.Value_StructValue:
		for _, item := range k.StructValue.GetFields() {
			replaceNonFinite(item)
		}
	}
}
