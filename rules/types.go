package rules

import "time"

// Rule is a CEL expression evaluated against a tenant's facts
type Rule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EvaluationResult contains the outcome of evaluating a rule
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Matched  bool
	Error    error
	Trace    any // CEL evaluation state (optional)
}

// DerivedField is a value computed from other facts before evaluation
type DerivedField struct {
	Name       string
	Expression string // CEL expression for computing the field
}
