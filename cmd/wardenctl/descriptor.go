package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/liamcoop/warden/authz"
	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/multitenantengine"
)

// descriptorFile is the TOML layout of a descriptor file: one table per object,
// mapping field names to type expressions
type descriptorFile struct {
	Objects multitenantengine.Schema `toml:"objects"`
}

// loadSchema reads and validates a descriptor file
func loadSchema(path string) (multitenantengine.Schema, error) {
	var f descriptorFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if err := multitenantengine.ValidateSchema(f.Objects); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Objects, nil
}

// resolveDescriptor picks the descriptor to decode with: every object of the file
// when object is empty, otherwise the named object. The authorization request is
// available as "Request" unless the file defines its own.
func resolveDescriptor(schema multitenantengine.Schema, object string) (*coerce.ObjectDescriptor, error) {
	desc, err := multitenantengine.DescriptorFromSchema(schema)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return desc, nil
	}

	field, ok := desc.Field(object)
	if !ok {
		if object == authz.RequestVariable {
			return authz.Descriptor(), nil
		}
		return nil, fmt.Errorf("object %q is not defined (have %v)", object, desc.Fields())
	}
	return field.(*coerce.ObjectDescriptor), nil
}
