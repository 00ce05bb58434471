package coerce

import (
	js "github.com/invopop/jsonschema"
)

// JSONSchema renders a descriptor as a JSON Schema document describing the wire shape
// the descriptor accepts without mismatches
func JSONSchema(desc Descriptor) *js.Schema {
	root := schemaFor(desc)
	root.Version = js.Version
	return root
}

func schemaFor(desc Descriptor) *js.Schema {
	switch desc := desc.(type) {
	case *PrimitiveDescriptor:
		switch desc.kind {
		case KindString:
			return &js.Schema{Type: "string"}
		case KindNumber:
			return &js.Schema{Type: "number"}
		case KindBoolean:
			return &js.Schema{Type: "boolean"}
		case KindDate:
			return &js.Schema{Type: "string", Format: "date-time"}
		}
		return &js.Schema{}
	case *ListDescriptor:
		return &js.Schema{Type: "array", Items: schemaFor(desc.elem)}
	case *MappingDescriptor:
		return &js.Schema{Type: "object", AdditionalProperties: schemaFor(desc.value)}
	case *ObjectDescriptor:
		props := js.NewProperties()
		for _, name := range desc.names {
			props.Set(name, schemaFor(desc.fields[name]))
		}
		return &js.Schema{Type: "object", Properties: props}
	}
	return &js.Schema{}
}
