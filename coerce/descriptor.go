package coerce

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the shape a descriptor expects
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindDate
	KindAny
	KindList
	KindMapping
	KindObject
)

var kindNames = map[Kind]string{
	KindString:  "String",
	KindNumber:  "Number",
	KindBoolean: "Boolean",
	KindDate:    "Date",
	KindAny:     "Any",
	KindList:    "List",
	KindMapping: "Mapping",
	KindObject:  "Object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsPrimitive reports whether k names a primitive kind
func (k Kind) IsPrimitive() bool {
	return k <= KindAny
}

// Descriptor describes the expected shape of a decoded value.
// Descriptors are immutable once constructed and safe to share between goroutines.
type Descriptor interface {
	Kind() Kind
	String() string
}

// PrimitiveDescriptor describes a scalar value
type PrimitiveDescriptor struct {
	kind Kind
}

// Predeclared primitive descriptors
var (
	stringDescriptor  = &PrimitiveDescriptor{kind: KindString}
	numberDescriptor  = &PrimitiveDescriptor{kind: KindNumber}
	booleanDescriptor = &PrimitiveDescriptor{kind: KindBoolean}
	dateDescriptor    = &PrimitiveDescriptor{kind: KindDate}
	anyDescriptor     = &PrimitiveDescriptor{kind: KindAny}
)

// Primitive returns the descriptor for a primitive kind.
// It panics if kind is not one of String, Number, Boolean, Date or Any.
func Primitive(kind Kind) *PrimitiveDescriptor {
	switch kind {
	case KindString:
		return stringDescriptor
	case KindNumber:
		return numberDescriptor
	case KindBoolean:
		return booleanDescriptor
	case KindDate:
		return dateDescriptor
	case KindAny:
		return anyDescriptor
	}
	panic(fmt.Sprintf("coerce: %s is not a primitive kind", kind))
}

// Shorthands for Primitive(kind)
func String() *PrimitiveDescriptor { return stringDescriptor }
func Number() *PrimitiveDescriptor { return numberDescriptor }
func Boolean() *PrimitiveDescriptor { return booleanDescriptor }
func Date() *PrimitiveDescriptor { return dateDescriptor }
func Any() *PrimitiveDescriptor { return anyDescriptor }

func (p *PrimitiveDescriptor) Kind() Kind { return p.kind }
func (p *PrimitiveDescriptor) String() string { return p.kind.String() }

// ListDescriptor describes an ordered sequence of values sharing one descriptor
type ListDescriptor struct {
	elem Descriptor
}

// List returns a descriptor for a sequence whose elements match elem
func List(elem Descriptor) *ListDescriptor {
	if elem == nil {
		elem = anyDescriptor
	}
	return &ListDescriptor{elem: elem}
}

func (l *ListDescriptor) Kind() Kind { return KindList }
func (l *ListDescriptor) Elem() Descriptor { return l.elem }
func (l *ListDescriptor) String() string { return "List(" + l.elem.String() + ")" }

// MappingDescriptor describes a string-keyed collection whose values share one descriptor
type MappingDescriptor struct {
	value Descriptor
}

// Mapping returns a descriptor for a keyed collection whose values match value
func Mapping(value Descriptor) *MappingDescriptor {
	if value == nil {
		value = anyDescriptor
	}
	return &MappingDescriptor{value: value}
}

func (m *MappingDescriptor) Kind() Kind { return KindMapping }
func (m *MappingDescriptor) Value() Descriptor { return m.value }
func (m *MappingDescriptor) String() string { return "Mapping(" + m.value.String() + ")" }

// ObjectDescriptor describes a named record with a fixed field set
type ObjectDescriptor struct {
	fields map[string]Descriptor
	names  []string // sorted
}

// Object returns a descriptor for a record with the given fields.
// The map is copied; nil field descriptors are treated as Any.
func Object(fields map[string]Descriptor) *ObjectDescriptor {
	o := &ObjectDescriptor{
		fields: make(map[string]Descriptor, len(fields)),
		names:  make([]string, 0, len(fields)),
	}
	for name, d := range fields {
		if d == nil {
			d = anyDescriptor
		}
		o.fields[name] = d
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	return o
}

func (o *ObjectDescriptor) Kind() Kind { return KindObject }

// Fields returns the field names in sorted order
func (o *ObjectDescriptor) Fields() []string {
	names := make([]string, len(o.names))
	copy(names, o.names)
	return names
}

// Field returns the descriptor for a single field
func (o *ObjectDescriptor) Field(name string) (Descriptor, bool) {
	d, ok := o.fields[name]
	return d, ok
}

// Len returns the number of fields
func (o *ObjectDescriptor) Len() int { return len(o.names) }

func (o *ObjectDescriptor) String() string {
	var b strings.Builder
	b.WriteString("Object({")
	for i, name := range o.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(o.fields[name].String())
	}
	b.WriteString("})")
	return b.String()
}
