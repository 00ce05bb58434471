package main

import (
	"time"

	"github.com/liamcoop/warden/multitenantengine"
	"github.com/liamcoop/warden/rules"
)

// API request and response models

// CreateTenantRequest represents the request body for creating a tenant
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// TenantResponse represents a tenant in API responses
type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Loaded    bool      `json:"loaded"` // an engine is active for the tenant
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantsListResponse represents the response for listing tenants
type TenantsListResponse struct {
	Tenants       []TenantResponse `json:"tenants"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// SchemaRequest is the body of schema create and update requests
type SchemaRequest struct {
	Definition multitenantengine.Schema `json:"definition"`
}

// SchemaResponse represents a schema in API responses
type SchemaResponse struct {
	Version         int                      `json:"version"`
	Status          string                   `json:"status"`
	Definition      multitenantengine.Schema `json:"definition"`
	RulesRecompiled *int                     `json:"rulesRecompiled,omitempty"`
	CreatedAt       *time.Time               `json:"created_at,omitempty"`
}

// CreateRuleRequest represents the request body for creating a rule.
// Active defaults to true.
type CreateRuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Active     *bool  `json:"active,omitempty"`
}

// UpdateRuleRequest represents the request body for updating a rule.
// Omitted fields keep their stored value.
type UpdateRuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Active     *bool  `json:"active,omitempty"`
}

// RulesListResponse represents the response for listing rules
type RulesListResponse struct {
	Rules         []*rules.Rule `json:"rules"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// EvaluateRequest represents the request body for evaluating rules.
// Strict rejects facts that do not match the tenant schema.
type EvaluateRequest struct {
	TenantID string         `json:"tenantId"`
	Facts    map[string]any `json:"facts"`
	Rules    []string       `json:"rules,omitempty"`
	Strict   bool           `json:"strict,omitempty"`
}

// EvaluationResultResponse represents a single rule evaluation result
type EvaluationResultResponse struct {
	RuleID   string  `json:"RuleID"`
	RuleName string  `json:"RuleName"`
	Matched  bool    `json:"Matched"`
	Error    *string `json:"Error,omitempty"`
}

// EvaluateResponse represents the response for rule evaluation
type EvaluateResponse struct {
	Results        []EvaluationResultResponse `json:"results"`
	EvaluationTime string                     `json:"evaluationTime"`
}

// DecodeRequest is the body of the decode endpoint
type DecodeRequest struct {
	Facts  map[string]any `json:"facts"`
	Strict bool           `json:"strict,omitempty"`
}

// DecodeResponse holds facts as the tenant's rules see them
type DecodeResponse struct {
	Facts map[string]any `json:"facts"`
}

// AuthorizeResponse is the decision for one authorization request
type AuthorizeResponse struct {
	Allowed        bool                       `json:"allowed"`
	MatchedRules   []string                   `json:"matchedRules"`
	Results        []EvaluationResultResponse `json:"results"`
	EvaluationTime string                     `json:"evaluationTime"`
}

// ErrorResponse represents an error response. Path locates the offending value
// when facts failed strict decoding.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Path    string `json:"path,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	TenantsLoaded int    `json:"tenantsLoaded"`
	Error         string `json:"error,omitempty"`
}

func toResultResponses(results []*rules.EvaluationResult) []EvaluationResultResponse {
	out := make([]EvaluationResultResponse, 0, len(results))
	for _, r := range results {
		resp := EvaluationResultResponse{
			RuleID:   r.RuleID,
			RuleName: r.RuleName,
			Matched:  r.Matched,
		}
		if r.Error != nil {
			msg := r.Error.Error()
			resp.Error = &msg
		}
		out = append(out, resp)
	}
	return out
}
