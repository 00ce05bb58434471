package coerce

import (
	"fmt"
	"strings"
)

// scalarTypes maps schema type names to primitive descriptors.
// bytes and duration travel as strings on the wire.
var scalarTypes = map[string]*PrimitiveDescriptor{
	"string":    stringDescriptor,
	"bytes":     stringDescriptor,
	"duration":  stringDescriptor,
	"int":       numberDescriptor,
	"int64":     numberDescriptor,
	"float64":   numberDescriptor,
	"number":    numberDescriptor,
	"bool":      booleanDescriptor,
	"timestamp": dateDescriptor,
	"dyn":       anyDescriptor,
}

// ParseType parses a schema type expression into a descriptor.
//
// Grammar:
//
//	type   = scalar | "list<" type ">" | "map<" type ">"
//	scalar = string | bytes | duration | int | int64 | float64 | number | bool | timestamp | dyn
//
// Names are case-sensitive and whitespace is not permitted anywhere in the expression.
func ParseType(expr string) (Descriptor, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty type expression")
	}
	if strings.ContainsAny(expr, " \t\r\n") {
		return nil, fmt.Errorf("type expression %q must not contain whitespace", expr)
	}
	d, err := parseType(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid type expression %q: %w", expr, err)
	}
	return d, nil
}

func parseType(expr string) (Descriptor, error) {
	if d, ok := scalarTypes[expr]; ok {
		return d, nil
	}
	if inner, ok := unwrap(expr, "list"); ok {
		elem, err := parseType(inner)
		if err != nil {
			return nil, err
		}
		return List(elem), nil
	}
	if inner, ok := unwrap(expr, "map"); ok {
		value, err := parseType(inner)
		if err != nil {
			return nil, err
		}
		return Mapping(value), nil
	}
	return nil, fmt.Errorf("unknown type %q", expr)
}

// unwrap strips "name<" and the matching trailing ">"
func unwrap(expr, name string) (string, bool) {
	prefix := name + "<"
	if !strings.HasPrefix(expr, prefix) || !strings.HasSuffix(expr, ">") {
		return "", false
	}
	inner := expr[len(prefix) : len(expr)-1]
	if inner == "" {
		return "", false
	}
	return inner, true
}

// ObjectFromTypes builds an Object descriptor from field name -> type expression
func ObjectFromTypes(fields map[string]string) (*ObjectDescriptor, error) {
	out := make(map[string]Descriptor, len(fields))
	for name, expr := range fields {
		d, err := ParseType(expr)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = d
	}
	return Object(out), nil
}
