// Package authz models the warden OAuth2 client authorization request and
// evaluates it against a tenant's rules.
package authz

import (
	"encoding/json"

	"github.com/liamcoop/warden/coerce"
)

// Wire names of the authorization request fields
const (
	FieldAction   = "action"
	FieldContext  = "context"
	FieldID       = "id"
	FieldResource = "resource"
	FieldScopes   = "scopes"
	FieldSecret   = "secret"
)

var requestDescriptor = coerce.Object(map[string]coerce.Descriptor{
	FieldAction:   coerce.String(),
	FieldContext:  coerce.Mapping(coerce.Any()),
	FieldID:       coerce.String(),
	FieldResource: coerce.String(),
	FieldScopes:   coerce.List(coerce.String()),
	FieldSecret:   coerce.String(),
})

var lenient = coerce.NewDecoder()

// Descriptor returns the shape of an authorization request
func Descriptor() *coerce.ObjectDescriptor {
	return requestDescriptor
}

// AuthorizationRequest asks whether a client may perform an action on a resource.
// Every field is optional; accessors report whether the field was present in the
// decoded input and held a value of the expected type.
type AuthorizationRequest struct {
	rec *coerce.Record
}

// ConstructFromObject decodes data into obj, allocating a new request when obj is nil.
// Fields absent from data keep their previous value in obj. A nil data returns obj
// unchanged. Values of the wrong shape are kept as sent.
func ConstructFromObject(data any, obj *AuthorizationRequest) (*AuthorizationRequest, error) {
	return Decode(lenient, data, obj)
}

// Decode is ConstructFromObject with an explicit decoder, so callers can opt into
// strict decoding. On a strict mismatch obj is left as it was.
func Decode(dec *coerce.Decoder, data any, obj *AuthorizationRequest) (*AuthorizationRequest, error) {
	if data == nil {
		return obj, nil
	}
	if obj == nil {
		obj = &AuthorizationRequest{}
	}
	if obj.rec == nil {
		obj.rec = coerce.NewRecord()
	}

	rec, err := dec.DecodeInto(obj.rec, data, requestDescriptor)
	if err != nil {
		return nil, err
	}
	obj.rec = rec
	return obj, nil
}

// Record returns the underlying decoded record
func (r *AuthorizationRequest) Record() *coerce.Record {
	if r == nil {
		return nil
	}
	return r.rec
}

// Action returns the requested action
func (r *AuthorizationRequest) Action() (string, bool) {
	return coerce.Field[string](r.Record(), FieldAction)
}

// Context returns the free-form request context
func (r *AuthorizationRequest) Context() (map[string]any, bool) {
	return coerce.Field[map[string]any](r.Record(), FieldContext)
}

// ID returns the client id
func (r *AuthorizationRequest) ID() (string, bool) {
	return coerce.Field[string](r.Record(), FieldID)
}

// Resource returns the resource the action targets
func (r *AuthorizationRequest) Resource() (string, bool) {
	return coerce.Field[string](r.Record(), FieldResource)
}

// Scopes returns the requested scopes. ok is false unless every element is a string.
func (r *AuthorizationRequest) Scopes() ([]string, bool) {
	raw, ok := coerce.Field[[]any](r.Record(), FieldScopes)
	if !ok {
		return nil, false
	}
	scopes := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		scopes = append(scopes, s)
	}
	return scopes, true
}

// Secret returns the client secret
func (r *AuthorizationRequest) Secret() (string, bool) {
	return coerce.Field[string](r.Record(), FieldSecret)
}

// Facts returns the request as a plain map, without the client secret
func (r *AuthorizationRequest) Facts() map[string]any {
	facts, _ := coerce.Plain(r.Record()).(map[string]any)
	if facts == nil {
		facts = map[string]any{}
	}
	delete(facts, FieldSecret)
	return facts
}

// MarshalJSON encodes the fields that are set
func (r *AuthorizationRequest) MarshalJSON() ([]byte, error) {
	if r.Record() == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.rec)
}
