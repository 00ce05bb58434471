package coerce

import (
	"encoding/json"
	"sort"
)

// Record is the decoded form of an Object descriptor.
//
// A field is either unset (its key was absent from the input) or set, possibly to nil
// when the input carried an explicit JSON null. The two states are never conflated:
// Has reports presence, Get returns the stored value.
//
// A Record is not safe for concurrent mutation. Records produced by the decoder are
// owned by the caller.
type Record struct {
	fields map[string]any
}

// NewRecord returns an empty record with no fields set
func NewRecord() *Record {
	return &Record{fields: make(map[string]any)}
}

// Has reports whether the field is set
func (r *Record) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fields[name]
	return ok
}

// Get returns the field value and whether it is set
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.fields[name]
	return v, ok
}

// Set stores a value for the field, marking it set
func (r *Record) Set(name string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = value
}

// Unset returns the field to its unset state
func (r *Record) Unset(name string) {
	delete(r.fields, name)
}

// Fields returns the names of the set fields in sorted order
func (r *Record) Fields() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of set fields
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// Map returns a shallow copy of the set fields
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	if r == nil {
		return out
	}
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes only the set fields
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Field returns a set field converted to T.
// ok is false when the field is unset, explicitly null, or holds a value of another type.
func Field[T any](r *Record, name string) (value T, ok bool) {
	raw, set := r.Get(name)
	if !set || raw == nil {
		return value, false
	}
	value, ok = raw.(T)
	return value, ok
}

// Plain converts records nested anywhere in v into map[string]any, producing new
// lists and maps along the way. Consumers that only understand decoded-JSON shapes,
// such as CEL activations, use it on decoder output.
func Plain(v any) any {
	switch x := v.(type) {
	case *Record:
		if x == nil {
			return nil
		}
		out := make(map[string]any, len(x.fields))
		for k, item := range x.fields {
			out[k] = Plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	}
	return v
}
