package multitenantengine

import (
	"fmt"
	"strings"
	"testing"
)

func nObjects(n int) Schema {
	schema := make(Schema, n)
	for i := range n {
		schema[fmt.Sprintf("Object%d", i)] = map[string]string{"Field": "int"}
	}
	return schema
}

func nFields(n int) Schema {
	fields := make(map[string]string, n)
	for i := range n {
		fields[fmt.Sprintf("Field%d", i)] = "string"
	}
	return Schema{"Wide": fields}
}

func TestValidateSchema(t *testing.T) {
	testCases := []struct {
		name    string
		schema  Schema
		wantErr string // substring; empty means valid
	}{
		{
			name: "complete schema",
			schema: Schema{
				"User": {
					"Age":      "int",
					"Name":     "string",
					"Verified": "bool",
					"JoinedAt": "timestamp",
					"Tags":     "list<string>",
					"Prefs":    "map<dyn>",
				},
				"Transaction": {
					"Amount":  "float64",
					"Total":   "number",
					"Legs":    "list<map<float64>>",
					"Timeout": "duration",
					"Raw":     "bytes",
				},
			},
		},
		{name: "empty schema", schema: Schema{}, wantErr: "empty"},
		{name: "object without fields", schema: Schema{"User": {}}, wantErr: `"User"`},
		{name: "exactly 100 objects", schema: nObjects(100)},
		{name: "101 objects", schema: nObjects(101), wantErr: "maximum allowed is 100"},
		{name: "exactly 200 fields", schema: nFields(200)},
		{name: "201 fields", schema: nFields(201), wantErr: "maximum allowed is 200"},
		{name: "unknown type", schema: Schema{"User": {"Age": "integer"}}, wantErr: `invalid type "integer"`},
		{name: "types are case sensitive", schema: Schema{"User": {"Age": "Int"}}, wantErr: "invalid type"},
		{name: "unclosed list", schema: Schema{"User": {"Tags": "list<string"}}, wantErr: "invalid type"},
		{name: "empty element type", schema: Schema{"User": {"Tags": "list<>"}}, wantErr: "invalid type"},
		{name: "padded type", schema: Schema{"User": {"Age": " int"}}, wantErr: "whitespace"},
		{name: "empty type", schema: Schema{"User": {"Age": ""}}, wantErr: "empty type"},
		{name: "object name starts with digit", schema: Schema{"1User": {"Age": "int"}}, wantErr: "invalid object name"},
		{name: "object name with dash", schema: Schema{"my-user": {"Age": "int"}}, wantErr: "invalid object name"},
		{name: "reserved object name", schema: Schema{"null": {"Age": "int"}}, wantErr: "reserved keyword"},
		{name: "field name with dot", schema: Schema{"User": {"first.name": "string"}}, wantErr: "invalid field name"},
		{name: "reserved field name", schema: Schema{"User": {"return": "string"}}, wantErr: "reserved keyword"},
		{name: "reserved words are case sensitive", schema: Schema{"User": {"Return": "string", "NULL": "int"}}},
		{name: "identifier at limit", schema: Schema{"User": {strings.Repeat("a", 100): "int"}}},
		{name: "identifier over limit", schema: Schema{"User": {strings.Repeat("a", 101): "int"}}, wantErr: "exceeds maximum"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchema(tc.schema)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateSchema() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateSchema() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("ValidateSchema() error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

// TestValidateSchemaReportsFirstErrorInOrder checks errors are stable across map iteration orders
func TestValidateSchemaReportsFirstErrorInOrder(t *testing.T) {
	schema := Schema{
		"Zeta":  {"bad-field": "int"},
		"Alpha": {"Age": "integer"},
	}
	for range 20 {
		err := ValidateSchema(schema)
		if err == nil || !strings.Contains(err.Error(), `"Alpha"`) {
			t.Fatalf("ValidateSchema() error = %v, want the Alpha error first", err)
		}
	}
}

func TestIsValidFieldType(t *testing.T) {
	valid := []string{
		"int", "int64", "float64", "number", "string", "bytes", "duration", "bool",
		"timestamp", "dyn", "list<int>", "map<string>", "list<list<bool>>", "map<list<timestamp>>",
	}
	invalid := []string{
		"", "integer", "float", "String", "list", "list<>", "map<int", "list<int>>",
		"list<unknown>", "map< int>", "set<int>",
	}

	for _, typeName := range valid {
		if !isValidFieldType(typeName) {
			t.Errorf("isValidFieldType(%q) = false, want true", typeName)
		}
	}
	for _, typeName := range invalid {
		if isValidFieldType(typeName) {
			t.Errorf("isValidFieldType(%q) = true, want false", typeName)
		}
	}
}

func TestIsReservedKeyword(t *testing.T) {
	for _, word := range []string{"true", "false", "null", "in", "return", "var"} {
		if !isReservedKeyword(word) {
			t.Errorf("isReservedKeyword(%q) = false, want true", word)
		}
	}
	for _, word := range []string{"User", "inbox", "True", "Request"} {
		if isReservedKeyword(word) {
			t.Errorf("isReservedKeyword(%q) = true, want false", word)
		}
	}
}

// TestValidatedSchemaBuildsEnvironment checks every valid schema also yields a CEL environment
func TestValidatedSchemaBuildsEnvironment(t *testing.T) {
	schema := Schema{"User": {"Age": "int"}, "Device": {"Trusted": "bool"}}
	if err := ValidateSchema(schema); err != nil {
		t.Fatal(err)
	}
	env, err := CreateCELEnvFromSchema(schema)
	if err != nil {
		t.Fatalf("CreateCELEnvFromSchema() failed: %v", err)
	}
	if _, iss := env.Compile(`User.Age > 1.0 && Device.Trusted && Request.action == "read"`); iss.Err() != nil {
		t.Errorf("Compile() failed: %v", iss.Err())
	}
	if _, iss := env.Compile(`Account.Balance > 0.0`); iss.Err() == nil {
		t.Error("undeclared objects should not compile")
	}
}
