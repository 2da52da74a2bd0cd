// Package datamgr holds the dataflow values plugins produce during a
// pipeline run and merges them when more than one plugin produces the same
// key.
package datamgr

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/semrel-kernel/semrel/flow"
)

// Manager stores, for each dataflow key, every value a plugin has produced
// for it. Most keys have exactly one producer; a handful (files_to_commit,
// artifacts) legitimately have several, which PrepareValue merges.
type Manager struct {
	global map[string][]json.RawMessage
}

// New creates a Manager seeded with any literal values already present in
// the project configuration.
func New(initial map[string]flow.Value) *Manager {
	m := &Manager{global: make(map[string][]json.RawMessage)}
	for key, v := range initial {
		if payload, ok := v.Payload(); ok {
			m.global[key] = []json.RawMessage{cloneRaw(payload)}
		}
	}
	return m
}

// InsertGlobal records a value produced for key. Values are deduplicated
// by structural (not byte-for-byte) equality: re-inserting the same value
// twice, e.g. because two plugins compute the same changelog header, does
// not create a duplicate producer entry.
func (m *Manager) InsertGlobal(key string, v flow.Value) {
	payload, ok := v.Payload()
	if !ok {
		return
	}
	existing := m.global[key]
	for _, e := range existing {
		if jsonEqual(e, payload) {
			return
		}
	}
	m.global[key] = append(existing, cloneRaw(payload))
}

// DataNotAvailableError reports that no plugin has produced a value for
// the requested key.
type DataNotAvailableError struct {
	Key string
}

func (e *DataNotAvailableError) Error() string {
	return fmt.Sprintf("datamgr: no data available for key %q", e.Key)
}

// PrepareValue resolves the current value of srcKey into a ready Value
// addressed under dstKey, merging across producers if there is more than
// one. Zero producers is an error; exactly one producer is passed through
// verbatim; multiple producers are merged with mergeValues.
func (m *Manager) PrepareValue(dstKey, srcKey string) (flow.Value, error) {
	values, ok := m.global[srcKey]
	if !ok || len(values) == 0 {
		return flow.Value{}, &DataNotAvailableError{Key: srcKey}
	}

	var payload json.RawMessage
	if len(values) == 1 {
		payload = values[0]
	} else {
		merged, err := mergeValues(values)
		if err != nil {
			return flow.Value{}, err
		}
		payload = merged
	}
	return flow.NewBuilder(dstKey).Value(payload).Build(), nil
}

// PrepareValueSameKey is PrepareValue for the common case where the
// destination key and source key are identical.
func (m *Manager) PrepareValueSameKey(key string) (flow.Value, error) {
	return m.PrepareValue(key, key)
}

// mergeValues implements the only merge policy the kernel supports:
// values that are themselves JSON arrays are flattened into the result,
// everything else is kept as a single element; the result is always a
// JSON array. This is sufficient because every key that legitimately has
// multiple producers (files_to_commit, artifacts) is list-typed.
func mergeValues(values []json.RawMessage) (json.RawMessage, error) {
	merged := make([]any, 0, len(values))
	for _, v := range values {
		var parsed any
		if err := json.Unmarshal(v, &parsed); err != nil {
			return nil, fmt.Errorf("datamgr: stored value is not valid JSON: %w", err)
		}
		if arr, ok := parsed.([]any); ok {
			merged = append(merged, arr...)
		} else {
			merged = append(merged, parsed)
		}
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("datamgr: cannot marshal merged value: %w", err)
	}
	return out, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(av, bv)
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}
