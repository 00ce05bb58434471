package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/logger"
)

// costLimit bounds the runtime cost of a single rule or derived field evaluation
const costLimit = 1000000

// Engine manages the CEL environment, compiled rules and fact decoding.
// Safe for concurrent evaluation and compilation.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache             // cache for active rules list
	programs map[string]compiledRule
	mu       sync.RWMutex

	facts       *coerce.ObjectDescriptor // nil: facts are evaluated as given
	decoder     *coerce.Decoder
	derivedDefs []DerivedField
	derived     []compiledDerivedField
}

// compiledRule remembers the expression a program was built from. Another
// replica may change a rule through the shared store and cache, so a program is
// only reused while the expression still matches.
type compiledRule struct {
	expression string
	prog       cel.Program
}

type compiledDerivedField struct {
	name string
	prog cel.Program
}

// EngineOption configures optional Engine behaviour
type EngineOption func(*Engine)

// WithFactsDescriptor decodes facts against desc before every evaluation.
// Each top-level field of desc is one CEL variable.
func WithFactsDescriptor(desc *coerce.ObjectDescriptor) EngineOption {
	return func(en *Engine) { en.facts = desc }
}

// WithDecoder sets the decoder used for facts. The default is lenient.
func WithDecoder(dec *coerce.Decoder) EngineOption {
	return func(en *Engine) { en.decoder = dec }
}

// WithCache replaces the default in-memory active rules cache
func WithCache(cache RulesCache) EngineOption {
	return func(en *Engine) { en.cache = cache }
}

// WithDerivedFields computes each field with CEL after decoding and exposes the
// result as a top-level fact. Derived fields only see decoded facts, not each other.
// The environment must declare a variable for every derived field name.
func WithDerivedFields(fields ...DerivedField) EngineOption {
	return func(en *Engine) { en.derivedDefs = append(en.derivedDefs, fields...) }
}

// NewEngine creates a rules engine with the default User/Transaction environment
func NewEngine(store RuleStore, opts ...EngineOption) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("User", cel.DynType),
		cel.Variable("Transaction", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return NewEngineWithEnv(env, store, opts...)
}

// NewEngineWithEnv creates a rules engine with a custom CEL environment.
// Multi-tenant deployments use schema-specific environments.
// All active rules in store are compiled before returning.
func NewEngineWithEnv(env *cel.Env, store RuleStore, opts ...EngineOption) (*Engine, error) {
	en := &Engine{
		env:      env,
		store:    store,
		programs: make(map[string]compiledRule),
	}
	for _, opt := range opts {
		opt(en)
	}
	if en.cache == nil {
		en.cache = NewInMemoryRulesCache(DefaultCacheConfig())
	}
	if en.decoder == nil {
		en.decoder = coerce.NewDecoder()
	}

	for _, f := range en.derivedDefs {
		prog, err := en.compile(f.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile derived field %s: %w", f.Name, err)
		}
		en.derived = append(en.derived, compiledDerivedField{name: f.Name, prog: prog})
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// FactsDescriptor returns the descriptor facts are decoded against, or nil
func (en *Engine) FactsDescriptor() *coerce.ObjectDescriptor {
	return en.facts
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileRule compiles a rule expression and caches the program under ruleID
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = compiledRule{expression: expression, prog: prog}
	en.mu.Unlock()

	return nil
}

// program returns the compiled program for rule, compiling it when this engine
// has not seen the rule or its expression has changed since.
func (en *Engine) program(rule *Rule) (cel.Program, error) {
	en.mu.RLock()
	c, ok := en.programs[rule.ID]
	en.mu.RUnlock()
	if ok && c.expression == rule.Expression {
		return c.prog, nil
	}

	prog, err := en.compile(rule.Expression)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	en.mu.Lock()
	en.programs[rule.ID] = compiledRule{expression: rule.Expression, prog: prog}
	en.mu.Unlock()
	return prog, nil
}

// prune drops programs of rules that are no longer active
func (en *Engine) prune(active []*Rule) {
	keep := make(map[string]struct{}, len(active))
	for _, r := range active {
		keep[r.ID] = struct{}{}
	}

	en.mu.Lock()
	defer en.mu.Unlock()
	for id := range en.programs {
		if _, ok := keep[id]; !ok {
			delete(en.programs, id)
		}
	}
}

// DecodeFacts coerces raw facts against the engine's descriptor and computes
// derived fields. The result only contains decoded-JSON shapes and is ready for CEL.
// Without a descriptor the facts are copied unchanged.
func (en *Engine) DecodeFacts(facts map[string]any) (map[string]any, error) {
	var decoded map[string]any
	if en.facts == nil {
		decoded = make(map[string]any, len(facts)+len(en.derived))
		for k, v := range facts {
			decoded[k] = v
		}
	} else {
		rec, err := en.decoder.DecodeInto(nil, facts, en.facts)
		if err != nil {
			return nil, fmt.Errorf("failed to decode facts: %w", err)
		}
		decoded, _ = coerce.Plain(rec).(map[string]any)
		if decoded == nil {
			decoded = make(map[string]any, len(en.derived))
		}
	}

	if len(en.derived) == 0 {
		return decoded, nil
	}

	values := make(map[string]any, len(en.derived))
	for _, f := range en.derived {
		out, _, err := f.prog.Eval(decoded)
		if err != nil {
			return nil, fmt.Errorf("failed to compute derived field %s: %w", f.name, err)
		}
		values[f.name] = out.Value()
	}
	for name, v := range values {
		decoded[name] = v
	}

	return decoded, nil
}

// Evaluate evaluates a single rule against the provided facts.
// Non-boolean results count as unmatched.
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	decoded, err := en.DecodeFacts(facts)
	if err != nil {
		return nil, err
	}

	prog, err := en.program(rule)
	if err != nil {
		return nil, err
	}

	result := evaluate(rule, prog, decoded)
	return result, result.Error
}

// CompileAllRules compiles all active rules from the store and refreshes the cache
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)

	return nil
}

// AddRule validates, compiles and stores a new rule.
// A rule without an ID is assigned a random UUID.
func (en *Engine) AddRule(r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	// Don't overwrite the program of an existing rule
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule %s: %w", r.ID, ErrRuleExists)
	}

	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.invalidateCache()

	return nil
}

// UpdateRule validates the new expression, then updates and recompiles the rule
func (en *Engine) UpdateRule(r *Rule) error {
	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = compiledRule{expression: r.Expression, prog: prog}
	en.mu.Unlock()

	en.invalidateCache()

	return nil
}

// DeleteRule removes a rule from the store and compiled programs
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.invalidateCache()

	return nil
}

// invalidateCache drops the cached rules after a mutation. Caches configured
// with RefreshOnInvalidate are reloaded from the store immediately.
func (en *Engine) invalidateCache() {
	en.cache.Invalidate()

	cfg, ok := en.cache.(interface{ Config() CacheConfig })
	if !ok || !cfg.Config().RefreshOnInvalidate {
		return
	}
	rules, err := en.store.ListActive()
	if err != nil {
		logger.Warn("failed to refresh rules cache", "error", err)
		return
	}
	en.cache.Set(rules)
}

// ActiveRules returns the active rules, from cache when possible
func (en *Engine) ActiveRules() ([]*Rule, error) {
	rules := en.cache.Get()
	if rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(rules)
	return rules, nil
}

// EvaluateAll evaluates all active rules against the provided facts.
// Facts are decoded once; a failing rule does not stop the others.
// Rules changed by another engine sharing the store are recompiled first.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	decoded, err := en.DecodeFacts(facts)
	if err != nil {
		return nil, err
	}

	rules, err := en.ActiveRules()
	if err != nil {
		return nil, err
	}

	en.prune(rules)

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		prog, err := en.program(rule)
		if err != nil {
			results = append(results, &EvaluationResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    err,
			})
			continue
		}

		results = append(results, evaluate(rule, prog, decoded))
	}

	return results, nil
}

func evaluate(rule *Rule, prog cel.Program, facts map[string]any) *EvaluationResult {
	out, details, err := prog.Eval(facts)
	if err != nil {
		return &EvaluationResult{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Error:    err,
		}
	}

	matched := false
	if boolVal, ok := out.Value().(bool); ok {
		matched = boolVal
	}

	return &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Matched:  matched,
		Trace:    details.State(),
	}
}
