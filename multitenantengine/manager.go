package multitenantengine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/warden/authz"
	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/logger"
	"github.com/liamcoop/warden/rules"
)

var (
	// ErrTenantNotFound is returned for tenants without a loaded engine
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrInvalidSchema wraps schema validation failures and rules that no longer
	// compile against a new schema
	ErrInvalidSchema = errors.New("invalid schema")
)

// Schema represents a tenant's data schema.
// Maps object names to field name -> type expression.
type Schema map[string]map[string]string

// TenantEngine wraps a rules.Engine with tenant-specific metadata
type TenantEngine struct {
	TenantID   string
	Version    int // schema version; 0 when the schema was never persisted
	Schema     Schema
	Descriptor *coerce.ObjectDescriptor
	Engine     *rules.Engine
}

// Option configures a MultiTenantEngineManager
type Option func(*MultiTenantEngineManager)

// WithStrictDecoding makes every tenant engine reject facts that do not match the schema
func WithStrictDecoding(strict bool) Option {
	return func(m *MultiTenantEngineManager) { m.strict = strict }
}

// WithCacheFactory sets the active rules cache built for each tenant engine
func WithCacheFactory(factory func(tenantID string) rules.RulesCache) Option {
	return func(m *MultiTenantEngineManager) { m.newCache = factory }
}

// WithMismatchHook sets the decoder hook built for each tenant engine
func WithMismatchHook(factory func(tenantID string) coerce.MismatchHook) Option {
	return func(m *MultiTenantEngineManager) { m.newHook = factory }
}

// MultiTenantEngineManager manages engines for all tenants
type MultiTenantEngineManager struct {
	engines map[string]*TenantEngine
	db      *sql.DB
	mu      sync.RWMutex

	strict   bool
	newCache func(tenantID string) rules.RulesCache
	newHook  func(tenantID string) coerce.MismatchHook
}

// NewMultiTenantEngineManager creates a new manager instance
func NewMultiTenantEngineManager(db *sql.DB, opts ...Option) *MultiTenantEngineManager {
	m := &MultiTenantEngineManager{
		engines: make(map[string]*TenantEngine),
		db:      db,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateCELEnvFromSchema creates a CEL environment with one variable per schema object,
// plus the authorization request variable unless the schema defines an object of that name.
// Variables are dynamically typed; facts are shaped by the schema descriptor instead.
func CreateCELEnvFromSchema(schema Schema) (*cel.Env, error) {
	var opts []cel.EnvOption
	for _, objectName := range sortedKeys(schema) {
		opts = append(opts, cel.Variable(objectName, cel.DynType))
	}
	if _, ok := schema[authz.RequestVariable]; !ok {
		opts = append(opts, cel.Variable(authz.RequestVariable, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return env, nil
}

// DescriptorFromSchema builds the facts descriptor for a schema: one Object per
// schema object, each field typed by its type expression
func DescriptorFromSchema(schema Schema) (*coerce.ObjectDescriptor, error) {
	objects := make(map[string]coerce.Descriptor, len(schema))
	for objectName, fields := range schema {
		obj, err := coerce.ObjectFromTypes(fields)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", objectName, err)
		}
		objects[objectName] = obj
	}
	return coerce.Object(objects), nil
}

// withRequest adds the authorization request object to a facts descriptor
func withRequest(desc *coerce.ObjectDescriptor) *coerce.ObjectDescriptor {
	if _, ok := desc.Field(authz.RequestVariable); ok {
		return desc
	}
	fields := make(map[string]coerce.Descriptor, desc.Len()+1)
	for _, name := range desc.Fields() {
		fields[name], _ = desc.Field(name)
	}
	fields[authz.RequestVariable] = authz.Descriptor()
	return coerce.Object(fields)
}

// LoadAllTenants loads all tenants with an active schema and initializes their engines
func (m *MultiTenantEngineManager) LoadAllTenants() error {
	rows, err := m.db.Query(`
		SELECT t.id, s.version, s.definition
		FROM tenants t
		JOIN schemas s ON s.tenant_id = t.id
		WHERE s.active = true
	`)
	if err != nil {
		return fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	type row struct {
		tenantID string
		version  int
		schema   Schema
	}

	// engines are built after the cursor is closed: each one queries its rules
	var loaded []row
	for rows.Next() {
		var r row
		var schemaJSON []byte
		if err := rows.Scan(&r.tenantID, &r.version, &schemaJSON); err != nil {
			return fmt.Errorf("failed to scan tenant row: %w", err)
		}
		if err := json.Unmarshal(schemaJSON, &r.schema); err != nil {
			return fmt.Errorf("invalid schema for tenant %s: %w", r.tenantID, err)
		}
		loaded = append(loaded, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tenant rows: %w", err)
	}
	rows.Close()

	for _, r := range loaded {
		te, err := m.buildEngine(r.tenantID, r.version, r.schema)
		if err != nil {
			return fmt.Errorf("failed to initialize tenant %s: %w", r.tenantID, err)
		}
		m.mu.Lock()
		m.engines[r.tenantID] = te
		m.mu.Unlock()
	}

	logger.Info("tenants loaded", "count", len(loaded))
	return nil
}

// CreateTenant registers an engine for tenantID with the given schema without
// persisting the schema
func (m *MultiTenantEngineManager) CreateTenant(tenantID string, schema Schema) error {
	if err := ValidateSchema(schema); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	te, err := m.buildEngine(tenantID, 0, schema)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	m.mu.Lock()
	m.engines[tenantID] = te
	m.mu.Unlock()

	return nil
}

func (m *MultiTenantEngineManager) buildEngine(tenantID string, version int, schema Schema) (*TenantEngine, error) {
	env, err := CreateCELEnvFromSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	desc, err := DescriptorFromSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to build facts descriptor: %w", err)
	}
	desc = withRequest(desc)

	var decoderOpts []coerce.Option
	if m.strict {
		decoderOpts = append(decoderOpts, coerce.WithStrict())
	}
	if m.newHook != nil {
		decoderOpts = append(decoderOpts, coerce.WithMismatchHook(m.newHook(tenantID)))
	}

	engineOpts := []rules.EngineOption{
		rules.WithFactsDescriptor(desc),
		rules.WithDecoder(coerce.NewDecoder(decoderOpts...)),
	}
	if m.newCache != nil {
		engineOpts = append(engineOpts, rules.WithCache(m.newCache(tenantID)))
	}

	store := rules.NewPostgresRuleStore(m.db, tenantID)
	engine, err := rules.NewEngineWithEnv(env, store, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &TenantEngine{
		TenantID:   tenantID,
		Version:    version,
		Schema:     schema,
		Descriptor: desc,
		Engine:     engine,
	}, nil
}

// GetEngine retrieves the engine for a specific tenant
func (m *MultiTenantEngineManager) GetEngine(tenantID string) (*rules.Engine, error) {
	te, err := m.GetTenant(tenantID)
	if err != nil {
		return nil, err
	}
	return te.Engine, nil
}

// GetTenant retrieves the engine and schema metadata for a specific tenant
func (m *MultiTenantEngineManager) GetTenant(tenantID string) (*TenantEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	te, exists := m.engines[tenantID]
	if !exists {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrTenantNotFound)
	}

	return te, nil
}

// UpdateTenantSchema validates and persists a new schema version, recompiles all
// rules against it and swaps the tenant's engine. Requests in flight keep using
// the engine they already hold. Returns the new schema version.
func (m *MultiTenantEngineManager) UpdateTenantSchema(tenantID string, newSchema Schema) (int, error) {
	if err := ValidateSchema(newSchema); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	schemaJSON, err := json.Marshal(newSchema)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal schema: %w", err)
	}

	// Build the engine first so an incompatible schema leaves the stored version active
	te, err := m.buildEngine(tenantID, 0, newSchema)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE schemas
		SET active = false
		WHERE tenant_id = $1 AND active = true
	`, tenantID); err != nil {
		return 0, fmt.Errorf("failed to deactivate old schemas: %w", err)
	}

	var newVersion int
	err = tx.QueryRow(`
		INSERT INTO schemas (tenant_id, version, definition, active, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, true, NOW()
		FROM schemas
		WHERE tenant_id = $1
		RETURNING version
	`, tenantID, schemaJSON).Scan(&newVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to save new schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit schema: %w", err)
	}
	te.Version = newVersion

	m.mu.Lock()
	m.engines[tenantID] = te
	m.mu.Unlock()

	logger.Info("tenant schema updated", "tenantId", tenantID, "version", newVersion)
	return newVersion, nil
}

// ListTenants returns all loaded tenant IDs in sorted order
func (m *MultiTenantEngineManager) ListTenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]string, 0, len(m.engines))
	for tenantID := range m.engines {
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return tenants
}

// DeleteTenant removes a tenant's engine from memory.
// It does not delete the tenant from the database.
func (m *MultiTenantEngineManager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[tenantID]; !exists {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrTenantNotFound)
	}

	delete(m.engines, tenantID)
	return nil
}
