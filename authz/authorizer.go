package authz

import (
	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/rules"
)

// RequestVariable is the CEL variable an authorization request is bound to
const RequestVariable = "Request"

// Decision is the outcome of authorizing one request against a tenant's rules
type Decision struct {
	Allowed      bool
	MatchedRules []string
	Results      []*rules.EvaluationResult
}

// Authorizer evaluates authorization requests against rules engines.
// A request is allowed when at least one active rule matches without error.
type Authorizer struct {
	decoder *coerce.Decoder
}

// NewAuthorizer creates an Authorizer decoding requests with dec; nil means lenient
func NewAuthorizer(dec *coerce.Decoder) *Authorizer {
	if dec == nil {
		dec = lenient
	}
	return &Authorizer{decoder: dec}
}

// Decode decodes a raw request body into a fresh AuthorizationRequest
func (a *Authorizer) Decode(data any) (*AuthorizationRequest, error) {
	req, err := Decode(a.decoder, data, nil)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &AuthorizationRequest{}
	}
	return req, nil
}

// Facts builds the facts rules see for req: every context entry under its own
// name, and the request itself (without its secret) under RequestVariable.
// The engine decodes them against the tenant schema.
func Facts(req *AuthorizationRequest) map[string]any {
	facts := make(map[string]any)
	if ctx, ok := req.Context(); ok {
		for k, v := range ctx {
			facts[k] = v
		}
	}
	facts[RequestVariable] = req.Facts()
	return facts
}

// Authorize evaluates every active rule of engine against req
func (a *Authorizer) Authorize(engine *rules.Engine, req *AuthorizationRequest) (*Decision, error) {
	results, err := engine.EvaluateAll(Facts(req))
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		MatchedRules: []string{},
		Results:      results,
	}
	for _, r := range results {
		if r.Error == nil && r.Matched {
			decision.Allowed = true
			decision.MatchedRules = append(decision.MatchedRules, r.RuleID)
		}
	}
	return decision, nil
}
