package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/warden/authz"
	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/config"
	"github.com/liamcoop/warden/internal/logger"
	"github.com/liamcoop/warden/internal/metrics"
	"github.com/liamcoop/warden/internal/paging"
	"github.com/liamcoop/warden/multitenantengine"
	"github.com/liamcoop/warden/rules"
)

type Server struct {
	db            *sql.DB
	redis         redis.UniversalClient
	cfg           *config.Config
	engineManager *multitenantengine.MultiTenantEngineManager
	metrics       *metrics.Metrics
	authorizer    *authz.Authorizer
	strict        *coerce.Decoder // per-request strict decoding
	router        *chi.Mux
}

// defaultConfig is used when a server is built without a loaded Config
func defaultConfig() *config.Config {
	return &config.Config{
		Port:                 "8080",
		ShutdownTimeout:      30 * time.Second,
		RequestTimeout:       60 * time.Second,
		SlowRequestThreshold: 500 * time.Millisecond,
	}
}

// NewServer connects to PostgreSQL, and to Redis when configured, then loads every tenant
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		rdb = client
	}

	return NewServerWithDB(db, cfg, rdb)
}

// NewServerWithDB builds a server on an open database. cfg may be nil for defaults
// and rdb nil to cache rules in process.
func NewServerWithDB(db *sql.DB, cfg *config.Config, rdb redis.UniversalClient) (*Server, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}

	m := metrics.New()
	cacheConfig := rules.CacheConfig{TTL: cfg.RulesCacheTTL}

	opts := []multitenantengine.Option{
		multitenantengine.WithStrictDecoding(cfg.StrictDecoding),
		multitenantengine.WithMismatchHook(m.MismatchHook),
	}
	switch {
	case rdb != nil:
		// Replicas share the cached list, so reload it as soon as one of them mutates a rule
		cacheConfig.RefreshOnInvalidate = true
		opts = append(opts, multitenantengine.WithCacheFactory(func(tenantID string) rules.RulesCache {
			return rules.NewRedisRulesCache(rdb, tenantID, cacheConfig)
		}))
	case cacheConfig.TTL > 0:
		opts = append(opts, multitenantengine.WithCacheFactory(func(string) rules.RulesCache {
			return rules.NewInMemoryRulesCache(cacheConfig)
		}))
	}

	engineManager := multitenantengine.NewMultiTenantEngineManager(db, opts...)

	logger.Info("loading tenants from database")
	if err := engineManager.LoadAllTenants(); err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}

	var authzDecoder *coerce.Decoder
	if cfg.StrictDecoding {
		authzDecoder = coerce.NewDecoder(coerce.WithStrict())
	}

	s := &Server{
		db:            db,
		redis:         rdb,
		cfg:           cfg,
		engineManager: engineManager,
		metrics:       m,
		authorizer:    authz.NewAuthorizer(authzDecoder),
		strict:        coerce.NewDecoder(coerce.WithStrict()),
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/evaluate", s.handleEvaluate)

	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}", func(r chi.Router) {
			r.Use(requireUUIDParam("tenantId"))

			r.Delete("/", s.handleDeleteTenant)

			r.Post("/schema", s.handleCreateSchema)
			r.Put("/schema", s.handleUpdateSchema)
			r.Get("/schema", s.handleGetSchema)
			r.Get("/schema/jsonschema", s.handleGetJSONSchema)

			r.Post("/decode", s.handleDecode)
			r.Post("/authorize", s.handleAuthorize)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Route("/rules/{ruleId}", func(r chi.Router) {
				r.Use(requireUUIDParam("ruleId"))
				r.Get("/", s.handleGetRule)
				r.Put("/", s.handleUpdateRule)
				r.Delete("/", s.handleDeleteRule)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database and Redis connections
func (s *Server) Close() error {
	var redisErr error
	if s.redis != nil {
		redisErr = s.redis.Close()
	}
	return errors.Join(s.db.Close(), redisErr)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		TenantsLoaded: len(s.engineManager.ListTenants()),
	})
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required", nil)
		return
	}

	if req.Facts == nil {
		respondError(w, http.StatusBadRequest, "facts are required", nil)
		return
	}

	te, err := s.engineManager.GetTenant(req.TenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	startTime := time.Now()

	if req.Strict {
		if _, err := s.strict.DecodeInto(nil, req.Facts, te.Descriptor); err != nil {
			respondDecodeError(w, err)
			return
		}
	}

	var results []*rules.EvaluationResult
	if len(req.Rules) > 0 {
		results = make([]*rules.EvaluationResult, 0, len(req.Rules))
		for _, ruleID := range req.Rules {
			result, err := te.Engine.Evaluate(ruleID, req.Facts)
			switch {
			case errors.Is(err, coerce.ErrTypeMismatch):
				respondDecodeError(w, err)
				return
			case result != nil:
				// The rule ran; a failed evaluation is reported in its result
				results = append(results, result)
			case err != nil:
				logger.Warn("skipping rule", "tenantId", te.TenantID, "ruleId", ruleID, "error", err)
			}
		}
	} else {
		results, err = te.Engine.EvaluateAll(req.Facts)
		if errors.Is(err, coerce.ErrTypeMismatch) {
			respondDecodeError(w, err)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "evaluation failed", err)
			return
		}
	}

	evaluationTime := time.Since(startTime)
	s.observeResults(te.TenantID, results)
	s.metrics.ObserveDuration("evaluate", evaluationTime)

	respondJSON(w, http.StatusOK, EvaluateResponse{
		Results:        toResultResponses(results),
		EvaluationTime: evaluationTime.String(),
	})
}

func (s *Server) observeResults(tenantID string, results []*rules.EvaluationResult) {
	for _, r := range results {
		s.metrics.ObserveRule(r.Matched, r.Error)
		if r.Error != nil {
			logger.RuleEvaluationFailed(tenantID, r.RuleID, r.Error)
		}
	}
}

// Decode handler: returns facts as the tenant's rules would see them
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Strict {
		if _, err := s.strict.DecodeInto(nil, req.Facts, te.Descriptor); err != nil {
			respondDecodeError(w, err)
			return
		}
	}

	facts, err := te.Engine.DecodeFacts(req.Facts)
	if errors.Is(err, coerce.ErrTypeMismatch) {
		respondDecodeError(w, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to decode facts", err)
		return
	}

	respondJSON(w, http.StatusOK, DecodeResponse{Facts: facts})
}

// Authorize handler: the body is an authorization request
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var body any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	startTime := time.Now()

	req, err := s.authorizer.Decode(body)
	if err != nil {
		respondDecodeError(w, err)
		return
	}

	decision, err := s.authorizer.Authorize(te.Engine, req)
	if errors.Is(err, coerce.ErrTypeMismatch) {
		respondDecodeError(w, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "authorization failed", err)
		return
	}

	evaluationTime := time.Since(startTime)
	s.observeResults(te.TenantID, decision.Results)
	s.metrics.ObserveDecision(decision.Allowed)
	s.metrics.ObserveDuration("authorize", evaluationTime)

	action, _ := req.Action()
	logger.Debug("authorization decided",
		"tenantId", te.TenantID,
		"action", action,
		"allowed", decision.Allowed,
		"matched", len(decision.MatchedRules),
	)

	respondJSON(w, http.StatusOK, AuthorizeResponse{
		Allowed:        decision.Allowed,
		MatchedRules:   decision.MatchedRules,
		Results:        toResultResponses(decision.Results),
		EvaluationTime: evaluationTime.String(),
	})
}

// List tenants handler. Pages oldest first via page_size and page_token.
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	page, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pagination", err)
		return
	}
	after, paged, _ := page.Cursor()
	limit := page.Limit()

	var rows *sql.Rows
	if paged {
		rows, err = s.db.QueryContext(r.Context(), `
			SELECT id, name, created_at, updated_at FROM tenants
			WHERE (created_at, id) > ($1, $2)
			ORDER BY created_at ASC, id ASC LIMIT $3
		`, after.CreatedAt, after.ID, limit+1)
	} else {
		rows, err = s.db.QueryContext(r.Context(), `
			SELECT id, name, created_at, updated_at FROM tenants
			ORDER BY created_at ASC, id ASC LIMIT $1
		`, limit+1)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}
	defer rows.Close()

	tenants := []TenantResponse{}
	for rows.Next() {
		var t TenantResponse
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan tenant", err)
			return
		}
		_, err := s.engineManager.GetTenant(t.ID)
		t.Loaded = err == nil
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}

	resp := TenantsListResponse{Tenants: tenants}
	if len(tenants) > limit {
		last := tenants[limit-1]
		resp.Tenants = tenants[:limit]
		resp.NextPageToken = paging.Encode(paging.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create tenant handler
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	var t TenantResponse
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO tenants (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id, name, created_at, updated_at
	`, req.Name).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		respondError(w, http.StatusConflict, "tenant name already exists", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}

	logger.Info("tenant created", "tenantId", t.ID, "name", t.Name)
	respondJSON(w, http.StatusCreated, t)
}

// Delete tenant handler. Schemas and rules go with it through ON DELETE CASCADE.
func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	res, err := s.db.ExecContext(r.Context(), `DELETE FROM tenants WHERE id = $1`, tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete tenant", err)
		return
	}
	if n, err := res.RowsAffected(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete tenant", err)
		return
	} else if n == 0 {
		respondError(w, http.StatusNotFound, "tenant not found", nil)
		return
	}

	// A tenant without a schema never had an engine
	if err := s.engineManager.DeleteTenant(tenantID); err != nil && !errors.Is(err, multitenantengine.ErrTenantNotFound) {
		logger.Error("failed to unload tenant engine", "tenantId", tenantID, "error", err)
	}
	if s.redis != nil {
		if err := s.redis.Del(r.Context(), rules.RedisKey(tenantID)).Err(); err != nil {
			logger.Warn("failed to drop cached rules", "tenantId", tenantID, "error", err)
		}
	}

	logger.Info("tenant deleted", "tenantId", tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// Create schema handler: only for tenants without a schema
func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if te, err := s.engineManager.GetTenant(tenantID); err == nil && te.Version > 0 {
		respondError(w, http.StatusConflict, "schema already exists, use PUT to update it", nil)
		return
	}
	s.saveSchema(w, r, http.StatusCreated)
}

// Update schema handler: stores a new version and swaps the tenant's engine
func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	s.saveSchema(w, r, http.StatusOK)
}

func (s *Server) saveSchema(w http.ResponseWriter, r *http.Request, status int) {
	tenantID := chi.URLParam(r, "tenantId")

	var req SchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var exists bool
	if err := s.db.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to look up tenant", err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "tenant not found", nil)
		return
	}

	version, err := s.engineManager.UpdateTenantSchema(tenantID, req.Definition)
	if errors.Is(err, multitenantengine.ErrInvalidSchema) {
		respondError(w, http.StatusBadRequest, "schema rejected", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update schema", err)
		return
	}

	var recompiled int
	if engine, err := s.engineManager.GetEngine(tenantID); err == nil {
		if active, err := engine.ActiveRules(); err == nil {
			recompiled = len(active)
		}
	}

	respondJSON(w, status, SchemaResponse{
		Version:         version,
		Status:          "active",
		Definition:      req.Definition,
		RulesRecompiled: &recompiled,
	})
}

// Get schema handler
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var schemaJSON []byte
	var resp SchemaResponse
	var createdAt time.Time
	err := s.db.QueryRowContext(r.Context(), `
		SELECT version, definition, created_at
		FROM schemas
		WHERE tenant_id = $1 AND active = true
	`, tenantID).Scan(&resp.Version, &schemaJSON, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "schema not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get schema", err)
		return
	}

	if err := json.Unmarshal(schemaJSON, &resp.Definition); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to parse schema", err)
		return
	}
	resp.Status = "active"
	resp.CreatedAt = &createdAt

	respondJSON(w, http.StatusOK, resp)
}

// JSON Schema handler: the shape facts must have for the tenant's rules
func (s *Server) handleGetJSONSchema(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, coerce.JSONSchema(te.Descriptor))
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}

	rule := &rules.Rule{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Expression: req.Expression,
		Active:     req.Active == nil || *req.Active,
	}

	// Validates and compiles the rule against the tenant schema
	if err := te.Engine.AddRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	req, err := paging.FromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pagination", err)
		return
	}

	page, err := rules.NewPostgresRuleStore(s.db, tenantID).ListPage(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if page.Rules == nil {
		page.Rules = []*rules.Rule{}
	}

	respondJSON(w, http.StatusOK, RulesListResponse{Rules: page.Rules, NextPageToken: page.NextPageToken})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	ruleID := chi.URLParam(r, "ruleId")

	rule, err := rules.NewPostgresRuleStore(s.db, tenantID).Get(ruleID)
	if errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := rules.NewPostgresRuleStore(s.db, te.TenantID).Get(ruleID)
	if errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule", err)
		return
	}

	if req.Name != "" {
		rule.Name = req.Name
	}
	if req.Expression != "" {
		rule.Expression = req.Expression
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	rule.UpdatedAt = time.Now()

	err = te.Engine.UpdateRule(rule)
	if errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	te, ok := s.tenant(w, r)
	if !ok {
		return
	}

	err := te.Engine.DeleteRule(chi.URLParam(r, "ruleId"))
	if errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// tenant resolves the loaded tenant named by the URL, writing a 404 when there is none
func (s *Server) tenant(w http.ResponseWriter, r *http.Request) (*multitenantengine.TenantEngine, bool) {
	te, err := s.engineManager.GetTenant(chi.URLParam(r, "tenantId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return nil, false
	}
	return te, true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"addr", httpServer.Addr,
			"tenants", len(server.engineManager.ListTenants()),
			"strictDecoding", cfg.StrictDecoding,
			"redisCache", cfg.RedisURL != "",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
