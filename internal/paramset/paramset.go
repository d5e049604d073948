// Copyright 2025 James Ross
// Package paramset defines the canonical parameter-set data model shared by
// every component in the crawler: the explorer binds layers into a
// ParameterSet, the ledger keys its state by the set's canonical string, and
// the API client forwards the set's clauses verbatim to the search API.
package paramset

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Operator is one of the fixed comparison operators the search API accepts.
// The core treats operators as opaque strings; it never branches on their
// value, only forwards them.
type Operator string

const (
	OpSince        Operator = "since"
	OpBefore       Operator = "before"
	OpGreaterThan  Operator = "greater than"
	OpLessThan     Operator = "less than"
	OpIsOneOf      Operator = "is one of"
	OpIsNotOneOf   Operator = "is not one of"
)

// Clause is a single filter condition: a value (or list of values) compared
// with Operator. Value is kept as interface{} because the API accepts either
// a scalar string or a string slice here.
type Clause struct {
	Value    interface{} `json:"value"`
	Operator Operator    `json:"operator"`
}

// FilterValue is the list of clauses bound to one layer for one candidate
// value. Most layers bind a single clause; date ranges bind two (since/before).
type FilterValue []Clause

// Set is an immutable mapping from layer name to FilterValue. Construct with
// New or With; never mutate a Set's underlying map after construction.
type Set struct {
	layers map[string]FilterValue
}

// New returns an empty parameter set.
func New() Set {
	return Set{layers: map[string]FilterValue{}}
}

// With returns a new Set equal to s plus the binding layer=value. s is left
// unmodified; this is the only way to extend a Set, which keeps every
// ParameterSet in the explorer's recursion tree independent of its siblings.
func (s Set) With(layer string, value FilterValue) Set {
	next := make(map[string]FilterValue, len(s.layers)+1)
	for k, v := range s.layers {
		next[k] = v
	}
	next[layer] = value
	return Set{layers: next}
}

// Get returns the FilterValue bound to layer, and whether it was present.
func (s Set) Get(layer string) (FilterValue, bool) {
	v, ok := s.layers[layer]
	return v, ok
}

// Raw returns the underlying layer->value map for marshaling into the API
// request payload. Callers must not mutate the returned map.
func (s Set) Raw() map[string]FilterValue {
	return s.layers
}

// Key returns the canonical identity of this parameter set: a JSON object
// with layer names sorted lexically, so that two Sets built in any
// construction order with the same bindings always produce the same string.
// This string is what the Ledger uses as its primary key.
func (s Set) Key() string {
	names := make([]string, 0, len(s.layers))
	for k := range s.layers {
		names = append(names, k)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(encodeNoEscape(name))
		buf.WriteByte(':')
		buf.Write(encodeNoEscape(s.layers[name]))
	}
	buf.WriteByte('}')
	return buf.String()
}

// encodeNoEscape marshals v without HTML-escaping '<', '>', and '&', and
// without the trailing newline json.Encoder normally appends, so that the
// canonical key depends only on the bindings themselves.
func encodeNoEscape(v interface{}) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
