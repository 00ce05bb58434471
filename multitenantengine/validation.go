package multitenantengine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/liamcoop/warden/coerce"
)

const (
	maxObjects         = 100
	maxFieldsPerObject = 200
	maxIdentifierLen   = 100
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSchema checks object and field names, size limits and field type expressions.
// Objects and fields are visited in sorted order so the reported error is stable.
func ValidateSchema(schema Schema) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema cannot be empty, must contain at least one object definition")
	}

	if len(schema) > maxObjects {
		return fmt.Errorf("schema contains %d objects, maximum allowed is %d", len(schema), maxObjects)
	}

	for _, objectName := range sortedKeys(schema) {
		fields := schema[objectName]

		if err := validateIdentifier(objectName); err != nil {
			return fmt.Errorf("invalid object name %q: %w", objectName, err)
		}

		if len(fields) == 0 {
			return fmt.Errorf("object %q must contain at least one field", objectName)
		}

		if len(fields) > maxFieldsPerObject {
			return fmt.Errorf("object %q contains %d fields, maximum allowed is %d", objectName, len(fields), maxFieldsPerObject)
		}

		for _, fieldName := range sortedKeys(fields) {
			typeName := fields[fieldName]

			if err := validateIdentifier(fieldName); err != nil {
				return fmt.Errorf("invalid field name %q in object %q: %w", fieldName, objectName, err)
			}

			if typeName == "" {
				return fmt.Errorf("field %q in object %q has empty type name", fieldName, objectName)
			}

			if strings.TrimSpace(typeName) != typeName {
				return fmt.Errorf("field %q in object %q has type with leading/trailing whitespace: %q", fieldName, objectName, typeName)
			}

			if !isValidFieldType(typeName) {
				return fmt.Errorf("field %q in object %q has invalid type %q (must be one of: int, int64, float64, number, string, bool, bytes, timestamp, duration, dyn, list<T>, map<T>)", fieldName, objectName, typeName)
			}
		}
	}

	return nil
}

// validateIdentifier checks an object or field name: 1-100 characters,
// ^[a-zA-Z_][a-zA-Z0-9_]*$, and not a reserved keyword
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLen)
	}

	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}

	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}

	return nil
}

// isValidFieldType reports whether typeName is a type expression the decoder understands.
// Type names are case-sensitive.
func isValidFieldType(typeName string) bool {
	_, err := coerce.ParseType(typeName)
	return err == nil
}

var reservedKeywords = map[string]bool{
	// literals
	"true":  true,
	"false": true,
	"null":  true,
	// control flow
	"if":       true,
	"else":     true,
	"for":      true,
	"while":    true,
	"break":    true,
	"continue": true,
	"return":   true,
	// declarations
	"var":      true,
	"let":      true,
	"const":    true,
	"function": true,
	// reserved by CEL
	"in":        true,
	"as":        true,
	"import":    true,
	"package":   true,
	"namespace": true,
	"loop":      true,
	"void":      true,
}

// isReservedKeyword checks if a name is a CEL reserved keyword
func isReservedKeyword(name string) bool {
	return reservedKeywords[name]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
