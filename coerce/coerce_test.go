package coerce

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorizationRequestDescriptor() *ObjectDescriptor {
	return Object(map[string]Descriptor{
		"action":   String(),
		"context":  Mapping(Any()),
		"id":       String(),
		"resource": String(),
		"scopes":   List(String()),
		"secret":   String(),
	})
}

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

// TestPrimitiveNilPassesThrough verifies absence is never coerced
func TestPrimitiveNilPassesThrough(t *testing.T) {
	for _, kind := range []Kind{KindString, KindNumber, KindBoolean, KindDate, KindAny} {
		t.Run(kind.String(), func(t *testing.T) {
			assert.Nil(t, Coerce(nil, Primitive(kind)))

			out, err := NewDecoder(WithStrict()).Coerce(nil, Primitive(kind))
			assert.NoError(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestContainerNilPassesThrough(t *testing.T) {
	assert.Nil(t, Coerce(nil, List(String())))
	assert.Nil(t, Coerce(nil, Mapping(Number())))
	assert.Nil(t, Coerce(nil, authorizationRequestDescriptor()))
}

func TestPrimitiveCoercion(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	testCases := []struct {
		name  string
		value any
		desc  Descriptor
		want  any
	}{
		{"string stays string", "view", String(), "view"},
		{"number under string unchanged", 42.0, String(), 42.0},
		{"numeric string to number", "42", Number(), 42.0},
		{"padded numeric string", " 3.5 ", Number(), 3.5},
		{"exponent", "1e3", Number(), 1000.0},
		{"non-numeric string unchanged", "abc", Number(), "abc"},
		{"empty string unchanged", "", Number(), ""},
		{"NaN unchanged", "NaN", Number(), "NaN"},
		{"digit separators unchanged", "1_000", Number(), "1_000"},
		{"hex float unchanged", "0x1p4", Number(), "0x1p4"},
		{"signed hex unchanged", "-0X10", Number(), "-0X10"},
		{"number stays number", 7.25, Number(), 7.25},
		{"int stays int", 7, Number(), 7},
		{"json.Number to float", json.Number("12"), Number(), 12.0},
		{"bool under number unchanged", true, Number(), true},
		{"true string", "true", Boolean(), true},
		{"false string", "false", Boolean(), false},
		{"numeric boolean string", "1", Boolean(), true},
		{"bad boolean string unchanged", "yes", Boolean(), "yes"},
		{"bool stays bool", false, Boolean(), false},
		{"rfc3339 date", "2024-01-15T10:30:00Z", Date(), ts},
		{"local date-time", "2024-01-15T10:30:00", Date(), ts},
		{"date only", "2024-01-15", Date(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"bad date unchanged", "yesterday", Date(), "yesterday"},
		{"time stays time", ts, Date(), ts},
		{"any keeps object", map[string]any{"ip": "127.0.0.1"}, Any(), map[string]any{"ip": "127.0.0.1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Coerce(tc.value, tc.desc))
		})
	}
}

func TestDateWithOffset(t *testing.T) {
	out := Coerce("2024-01-15T12:30:00.123+02:00", Date())
	ts, ok := out.(time.Time)
	require.True(t, ok, "expected time.Time, got %T", out)
	assert.True(t, ts.Equal(time.Date(2024, 1, 15, 10, 30, 0, 123000000, time.UTC)))
}

func TestListCoercion(t *testing.T) {
	in := []any{"1", "2.5", "x", nil}
	out := Coerce(in, List(Number()))

	list, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, list, len(in))
	for i, v := range in {
		assert.Equal(t, Coerce(v, Number()), list[i], "element %d", i)
	}
	assert.Equal(t, []any{1.0, 2.5, "x", nil}, list)
}

func TestListFromTypedSlice(t *testing.T) {
	out := Coerce([]string{"read", "write"}, List(String()))
	assert.Equal(t, []any{"read", "write"}, out)
}

func TestListTypedNilSlice(t *testing.T) {
	var scopes []string

	out, err := NewDecoder(WithStrict()).Coerce(scopes, List(String()))
	require.NoError(t, err)
	assert.Equal(t, scopes, out)

	mismatches := 0
	dec := NewDecoder(WithMismatchHook(func(*TypeMismatchError) { mismatches++ }))
	_, err = dec.Coerce(scopes, List(String()))
	require.NoError(t, err)
	assert.Zero(t, mismatches)
}

func TestListNonSequenceUnchanged(t *testing.T) {
	assert.Equal(t, "not-a-list", Coerce("not-a-list", List(String())))
	assert.Equal(t, 3.0, Coerce(3.0, List(Number())))
}

func TestMappingCoercion(t *testing.T) {
	in := map[string]any{"a": "1", "b": "true", "c": nil}
	out := Coerce(in, Mapping(Number()))

	m, ok := out.(map[string]any)
	require.True(t, ok)
	require.Len(t, m, len(in))
	for k, v := range in {
		assert.Contains(t, m, k)
		assert.Equal(t, Coerce(v, Number()), m[k])
	}
	assert.Equal(t, 1.0, m["a"])
	assert.Equal(t, "true", m["b"])
	assert.Nil(t, m["c"])
}

func TestMappingFromTypedMap(t *testing.T) {
	out := Coerce(map[string]string{"age": "30"}, Mapping(Number()))
	assert.Equal(t, map[string]any{"age": 30.0}, out)
}

func TestMappingNonKeyedUnchanged(t *testing.T) {
	in := []any{"a"}
	assert.Equal(t, in, Coerce(in, Mapping(String())))
}

// TestAuthorizationRequestScenario decodes a partial warden request
func TestAuthorizationRequestScenario(t *testing.T) {
	in := decodeJSON(t, `{"action":"view","context":{"ip":"127.0.0.1"},"scopes":["read","write"]}`)

	out := Coerce(in, authorizationRequestDescriptor())
	rec, ok := out.(*Record)
	require.True(t, ok, "expected *Record, got %T", out)

	action, ok := Field[string](rec, "action")
	assert.True(t, ok)
	assert.Equal(t, "view", action)

	ctx, _ := rec.Get("context")
	assert.Equal(t, map[string]any{"ip": "127.0.0.1"}, ctx)

	scopes, _ := rec.Get("scopes")
	assert.Equal(t, []any{"read", "write"}, scopes)

	for _, name := range []string{"id", "resource", "secret"} {
		assert.False(t, rec.Has(name), "%s should be unset", name)
	}
	assert.Equal(t, []string{"action", "context", "scopes"}, rec.Fields())
}

func TestObjectIgnoresUnknownKeys(t *testing.T) {
	rec := Coerce(map[string]any{"action": "view", "extra": 1.0}, authorizationRequestDescriptor()).(*Record)
	assert.False(t, rec.Has("extra"))
	assert.Equal(t, 1, rec.Len())
}

// TestExplicitNullIsDistinctFromAbsent checks the set-to-null state survives decoding
func TestExplicitNullIsDistinctFromAbsent(t *testing.T) {
	in := decodeJSON(t, `{"id":null}`)
	rec := Coerce(in, authorizationRequestDescriptor()).(*Record)

	assert.True(t, rec.Has("id"))
	v, ok := rec.Get("id")
	assert.True(t, ok)
	assert.Nil(t, v)

	assert.False(t, rec.Has("secret"))
	_, ok = rec.Get("secret")
	assert.False(t, ok)

	_, ok = Field[string](rec, "id")
	assert.False(t, ok)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null}`, string(data))
}

func TestObjectNonKeyedUnchanged(t *testing.T) {
	assert.Equal(t, "nope", Coerce("nope", authorizationRequestDescriptor()))
}

func TestScopesMismatchLenient(t *testing.T) {
	in := decodeJSON(t, `{"scopes":"not-a-list"}`)
	rec := Coerce(in, authorizationRequestDescriptor()).(*Record)

	scopes, ok := rec.Get("scopes")
	assert.True(t, ok)
	assert.Equal(t, "not-a-list", scopes)
}

func TestScopesMismatchStrict(t *testing.T) {
	in := decodeJSON(t, `{"scopes":"not-a-list"}`)

	out, err := NewDecoder(WithStrict()).Coerce(in, authorizationRequestDescriptor())
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, KindList, mismatch.Expected)
	assert.Equal(t, "not-a-list", mismatch.Actual)
	assert.Equal(t, "scopes", mismatch.Path)
	assert.Contains(t, err.Error(), "scopes")
}

func TestStrictPaths(t *testing.T) {
	desc := Object(map[string]Descriptor{
		"scopes":  List(String()),
		"context": Mapping(Number()),
		"nested":  Object(map[string]Descriptor{"items": List(Object(map[string]Descriptor{"n": Number()}))}),
	})
	strict := NewDecoder(WithStrict())

	testCases := []struct {
		name     string
		input    string
		expected Kind
		path     string
	}{
		{"list element", `{"scopes":["read",3]}`, KindString, "scopes[1]"},
		{"mapping value", `{"context":{"ip":"x"}}`, KindNumber, "context.ip"},
		{"deep", `{"nested":{"items":[{"n":1},{"n":"two"}]}}`, KindNumber, "nested.items[1].n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := strict.Coerce(decodeJSON(t, tc.input), desc)
			var mismatch *TypeMismatchError
			require.True(t, errors.As(err, &mismatch), "expected mismatch, got %v", err)
			assert.Equal(t, tc.expected, mismatch.Expected)
			assert.Equal(t, tc.path, mismatch.Path)
		})
	}
}

func TestStrictRootMismatch(t *testing.T) {
	_, err := NewDecoder(WithStrict()).Coerce("abc", Number())
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "", mismatch.Path)
	assert.Contains(t, err.Error(), "<root>")
}

func TestStrictAcceptsWellTypedInput(t *testing.T) {
	in := decodeJSON(t, `{"action":"view","context":{"n":1},"id":"abc","resource":"r","scopes":["a"],"secret":"s"}`)
	out, err := NewDecoder(WithStrict()).Coerce(in, authorizationRequestDescriptor())
	require.NoError(t, err)
	assert.Equal(t, 6, out.(*Record).Len())
}

func TestMismatchHookSeesEveryPassThrough(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	dec := NewDecoder(WithMismatchHook(func(err *TypeMismatchError) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, err.Path)
	}))

	in := decodeJSON(t, `{"scopes":["a",1,true],"action":5}`)
	out, err := dec.Coerce(in, authorizationRequestDescriptor())
	require.NoError(t, err)

	rec := out.(*Record)
	action, _ := rec.Get("action")
	assert.Equal(t, 5.0, action)
	assert.ElementsMatch(t, []string{"action", "scopes[1]", "scopes[2]"}, seen)
}

// TestDecodeTwiceYieldsDistinctRecords verifies nothing is cached between calls
func TestDecodeTwiceYieldsDistinctRecords(t *testing.T) {
	in := decodeJSON(t, `{"action":"view","scopes":["read"]}`)
	desc := authorizationRequestDescriptor()

	first := Coerce(in, desc).(*Record)
	second := Coerce(in, desc).(*Record)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestIdempotence(t *testing.T) {
	desc := Object(map[string]Descriptor{
		"action":  String(),
		"amount":  Number(),
		"when":    Date(),
		"scopes":  List(String()),
		"limits":  Mapping(Number()),
		"owner":   Object(map[string]Descriptor{"age": Number(), "admin": Boolean()}),
		"context": Any(),
	})
	in := decodeJSON(t, `{
		"action": "view",
		"amount": "12.5",
		"when": "2024-01-15T10:30:00Z",
		"scopes": ["read", 4],
		"limits": {"daily": "100"},
		"owner": {"age": "30", "admin": "false"},
		"context": {"k": [1, 2]}
	}`)

	once := Coerce(in, desc)
	twice := Coerce(once, desc)
	assert.Equal(t, once, twice)

	rec := once.(*Record)
	owner, ok := Field[*Record](rec, "owner")
	require.True(t, ok)
	age, _ := owner.Get("age")
	assert.Equal(t, 30.0, age)
	admin, _ := owner.Get("admin")
	assert.Equal(t, false, admin)
}

func TestInputIsNotMutated(t *testing.T) {
	in := decodeJSON(t, `{"scopes":["1","2"],"context":{"n":"5"},"action":"view"}`)
	snapshot := decodeJSON(t, `{"scopes":["1","2"],"context":{"n":"5"},"action":"view"}`)

	desc := Object(map[string]Descriptor{
		"scopes":  List(Number()),
		"context": Mapping(Number()),
		"action":  String(),
	})
	rec := Coerce(in, desc).(*Record)

	assert.Equal(t, snapshot, in)
	scopes, _ := rec.Get("scopes")
	assert.Equal(t, []any{1.0, 2.0}, scopes)
}

func TestDecodeIntoReusesTarget(t *testing.T) {
	desc := authorizationRequestDescriptor()
	dec := NewDecoder()

	target := NewRecord()
	target.Set("secret", "kept")

	out, err := dec.DecodeInto(target, decodeJSON(t, `{"action":"view"}`), desc)
	require.NoError(t, err)
	assert.Same(t, target, out)

	action, _ := out.Get("action")
	assert.Equal(t, "view", action)
	secret, _ := out.Get("secret")
	assert.Equal(t, "kept", secret)
}

func TestDecodeIntoAllocatesWhenTargetNil(t *testing.T) {
	out, err := NewDecoder().DecodeInto(nil, map[string]any{"id": "abc"}, authorizationRequestDescriptor())
	require.NoError(t, err)
	require.NotNil(t, out)
	id, _ := Field[string](out, "id")
	assert.Equal(t, "abc", id)
}

func TestDecodeIntoNilValue(t *testing.T) {
	target := NewRecord()
	out, err := NewDecoder().DecodeInto(target, nil, authorizationRequestDescriptor())
	require.NoError(t, err)
	assert.Same(t, target, out)

	out, err = NewDecoder().DecodeInto(nil, nil, authorizationRequestDescriptor())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecodeIntoNonKeyedValue(t *testing.T) {
	target := NewRecord()
	out, err := NewDecoder().DecodeInto(target, "oops", authorizationRequestDescriptor())
	require.NoError(t, err)
	assert.Same(t, target, out)

	_, err = NewDecoder(WithStrict()).DecodeInto(target, "oops", authorizationRequestDescriptor())
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestDecodeIntoStrictFailureLeavesTarget(t *testing.T) {
	target := NewRecord()
	target.Set("action", "view")

	_, err := NewDecoder(WithStrict()).DecodeInto(target, decodeJSON(t, `{"action":"edit","scopes":"all"}`), authorizationRequestDescriptor())
	require.ErrorIs(t, err, ErrTypeMismatch)

	action, _ := target.Get("action")
	assert.Equal(t, "view", action)
	assert.False(t, target.Has("scopes"))
	assert.Equal(t, 1, target.Len())
}

func TestConcurrentDecodeOfSharedPayload(t *testing.T) {
	in := decodeJSON(t, `{"action":"view","context":{"ip":"127.0.0.1"},"scopes":["read","write"]}`)
	desc := authorizationRequestDescriptor()
	want := Coerce(in, desc)

	var wg sync.WaitGroup
	results := make([]any, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Coerce(in, desc)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestPlainFlattensNestedRecords(t *testing.T) {
	desc := Object(map[string]Descriptor{
		"User":  Object(map[string]Descriptor{"Age": Number()}),
		"Items": List(Object(map[string]Descriptor{"Sku": String()})),
	})
	out := Coerce(decodeJSON(t, `{"User":{"Age":"30"},"Items":[{"Sku":"a"}]}`), desc)

	assert.Equal(t, map[string]any{
		"User":  map[string]any{"Age": 30.0},
		"Items": []any{map[string]any{"Sku": "a"}},
	}, Plain(out))
	assert.Nil(t, Plain((*Record)(nil)))
	assert.Equal(t, "x", Plain("x"))
}
