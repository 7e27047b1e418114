package core

import (
	"maps"
	"slices"
)

// SharedState is the accumulating key-value context threaded through a run.
// It is owned by a single runner and is not safe for concurrent mutation.
type SharedState struct {
	values map[string]string
}

// NewSharedState seeds a state with a copy of initial.
func NewSharedState(initial map[string]string) *SharedState {
	values := make(map[string]string, len(initial))
	maps.Copy(values, initial)
	return &SharedState{values: values}
}

// Get returns the value stored under key.
func (s *SharedState) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present. Empty values count as present.
func (s *SharedState) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Set stores value under key.
func (s *SharedState) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
}

// Keys returns the present keys in sorted order.
func (s *SharedState) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of keys.
func (s *SharedState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Snapshot returns a copy of the current values.
func (s *SharedState) Snapshot() map[string]string {
	out := make(map[string]string, s.Len())
	if s != nil {
		maps.Copy(out, s.values)
	}
	return out
}
