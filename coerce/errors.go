package coerce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTypeMismatch is matched by every *TypeMismatchError via errors.Is
var ErrTypeMismatch = errors.New("type mismatch")

// TypeMismatchError reports a value that could not be coerced to the expected kind.
// Path identifies the field and index chain from the decode root, e.g. "scopes[1]" or
// "context.ip"; it is empty when the root value itself mismatched.
type TypeMismatchError struct {
	Expected Kind
	Actual   any
	Path     string
}

func (e *TypeMismatchError) Error() string {
	where := e.Path
	if where == "" {
		where = "<root>"
	}
	return fmt.Sprintf("type mismatch at %s: expected %s, got %s", where, e.Expected, describe(e.Actual))
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// describe renders a value and its JSON type for error messages
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "string " + strconv.Quote(x)
	case bool:
		return fmt.Sprintf("boolean %t", x)
	case []any:
		return fmt.Sprintf("array of length %d", len(x))
	case map[string]any:
		return fmt.Sprintf("object with %d keys", len(x))
	case *Record:
		return fmt.Sprintf("record with %d fields", x.Len())
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}

// path is a lazily rendered field/index chain. Segments are only joined into a string
// when a mismatch is reported.
type path struct {
	parent *path
	field  string
	index  int
	isElem bool
}

func (p *path) child(field string) *path {
	return &path{parent: p, field: field}
}

func (p *path) elem(i int) *path {
	return &path{parent: p, index: i, isElem: true}
}

func (p *path) String() string {
	if p == nil {
		return ""
	}
	var segments []*path
	for n := p; n != nil; n = n.parent {
		segments = append(segments, n)
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s.isElem {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.field)
	}
	return b.String()
}
