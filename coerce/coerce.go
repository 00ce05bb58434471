package coerce

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when coercing a string to a Date
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// MismatchHook observes values passed through unchanged in lenient mode.
// It may be called from many goroutines at once.
type MismatchHook func(*TypeMismatchError)

// Option configures a Decoder
type Option func(*Decoder)

// WithStrict makes the decoder fail with a *TypeMismatchError instead of passing
// mismatched values through
func WithStrict() Option {
	return func(d *Decoder) { d.strict = true }
}

// WithMismatchHook registers a hook called for every lenient pass-through
func WithMismatchHook(hook MismatchHook) Option {
	return func(d *Decoder) { d.onMismatch = hook }
}

// Decoder reinterprets JSON-decoded values according to descriptors.
// A Decoder holds no per-call state and is safe for concurrent use.
type Decoder struct {
	strict     bool
	onMismatch MismatchHook
}

// NewDecoder creates a decoder. Without options it is lenient.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strict reports whether the decoder reports mismatches as errors
func (d *Decoder) Strict() bool { return d.strict }

var lenient = NewDecoder()

// Coerce decodes value against desc with the lenient policy: values that cannot be
// coerced are returned unchanged
func Coerce(value any, desc Descriptor) any {
	out, _ := lenient.Coerce(value, desc)
	return out
}

// Coerce decodes value against desc.
// The input is never mutated; lists, mappings and records in the result are new.
// An error is only returned in strict mode.
func (d *Decoder) Coerce(value any, desc Descriptor) (any, error) {
	return d.coerce(value, desc, nil)
}

// DecodeInto populates target from value using an Object descriptor. When target is
// nil a fresh record is allocated. Fields absent from value keep their current state
// on target. Fields are decoded into a scratch record first, so a strict failure
// leaves target unchanged.
//
// A nil value leaves target untouched and returns it. A value that is not a keyed
// collection is a mismatch: strict decoders return an error, lenient ones return
// target untouched.
func (d *Decoder) DecodeInto(target *Record, value any, desc *ObjectDescriptor) (*Record, error) {
	if value == nil {
		return target, nil
	}
	fields, ok := keyedFields(value)
	if !ok {
		if err := d.mismatch(KindObject, value, nil); err != nil {
			return nil, err
		}
		return target, nil
	}

	decoded := NewRecord()
	if err := d.populate(decoded, fields, desc, nil); err != nil {
		return nil, err
	}
	if target == nil {
		return decoded, nil
	}
	for name, v := range decoded.fields {
		target.Set(name, v)
	}
	return target, nil
}

func (d *Decoder) coerce(value any, desc Descriptor, at *path) (any, error) {
	switch desc := desc.(type) {
	case *PrimitiveDescriptor:
		return d.primitive(value, desc.kind, at)
	case *ListDescriptor:
		return d.list(value, desc, at)
	case *MappingDescriptor:
		return d.mapping(value, desc, at)
	case *ObjectDescriptor:
		return d.object(value, desc, at)
	case nil:
		return value, nil
	}
	// Foreign descriptor implementations are treated like Any
	return value, nil
}

func (d *Decoder) primitive(value any, kind Kind, at *path) (any, error) {
	if value == nil || kind == KindAny {
		return value, nil
	}

	var (
		out any
		ok  bool
	)
	switch kind {
	case KindString:
		out, ok = toString(value)
	case KindNumber:
		out, ok = toNumber(value)
	case KindBoolean:
		out, ok = toBoolean(value)
	case KindDate:
		out, ok = toDate(value)
	}
	if ok {
		return out, nil
	}
	if err := d.mismatch(kind, value, at); err != nil {
		return nil, err
	}
	return value, nil
}

func (d *Decoder) list(value any, desc *ListDescriptor, at *path) (any, error) {
	if value == nil {
		return nil, nil
	}

	if items, ok := value.([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			v, err := d.coerce(item, desc.elem, at.elem(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	// Typed slices built in Go code rather than by encoding/json
	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Slice && !rv.IsNil()) || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			v, err := d.coerce(rv.Index(i).Interface(), desc.elem, at.elem(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	// a typed nil slice is an absent list, like nil
	if rv.Kind() == reflect.Slice {
		return value, nil
	}

	if err := d.mismatch(KindList, value, at); err != nil {
		return nil, err
	}
	return value, nil
}

func (d *Decoder) mapping(value any, desc *MappingDescriptor, at *path) (any, error) {
	if value == nil {
		return nil, nil
	}

	fields, ok := keyedFields(value)
	if !ok {
		if err := d.mismatch(KindMapping, value, at); err != nil {
			return nil, err
		}
		return value, nil
	}

	out := make(map[string]any, len(fields))
	for key, item := range fields {
		v, err := d.coerce(item, desc.value, at.child(key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (d *Decoder) object(value any, desc *ObjectDescriptor, at *path) (any, error) {
	if value == nil {
		return nil, nil
	}

	fields, ok := keyedFields(value)
	if !ok {
		if err := d.mismatch(KindObject, value, at); err != nil {
			return nil, err
		}
		return value, nil
	}

	rec := NewRecord()
	if err := d.populate(rec, fields, desc, at); err != nil {
		return nil, err
	}
	return rec, nil
}

// populate sets every descriptor field whose key is present in fields
func (d *Decoder) populate(rec *Record, fields map[string]any, desc *ObjectDescriptor, at *path) error {
	for _, name := range desc.names {
		raw, present := fields[name]
		if !present {
			continue
		}
		v, err := d.coerce(raw, desc.fields[name], at.child(name))
		if err != nil {
			return err
		}
		rec.Set(name, v)
	}
	return nil
}

func (d *Decoder) mismatch(expected Kind, value any, at *path) error {
	if !d.strict && d.onMismatch == nil {
		return nil
	}
	err := &TypeMismatchError{Expected: expected, Actual: value, Path: at.String()}
	if d.strict {
		return err
	}
	d.onMismatch(err)
	return nil
}

// keyedFields exposes the string-keyed entries of a keyed collection without
// copying when the input is already a map[string]any. Callers must not write to the
// returned map.
func keyedFields(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case *Record:
		if v == nil {
			return nil, false
		}
		return v.fields, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func toString(value any) (any, bool) {
	if _, ok := value.(json.Number); ok {
		return nil, false
	}
	if reflect.TypeOf(value).Kind() == reflect.String {
		return value, true
	}
	return nil, false
}

func toNumber(value any) (any, bool) {
	switch v := value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return value, true
	case json.Number:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	}
	return nil, false
}

// parseNumber accepts decimal and exponent notation with surrounding whitespace.
// Empty strings, NaN and infinities are rejected so results stay JSON-encodable.
// Go literal syntax that ParseFloat also takes, digit separators and hex
// mantissas, is rejected too.
func parseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsRune(s, '_') || hexPrefixed(s) {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func hexPrefixed(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func toBoolean(value any) (any, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

func toDate(value any) (any, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return nil, false
}
