package rules

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/warden/internal/paging"
)

const selectRules = `SELECT id, name, expression, active, created_at, updated_at FROM rules`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	r := new(Rule)
	if err := row.Scan(&r.ID, &r.Name, &r.Expression, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// PostgresRuleStore keeps one tenant's rules in the shared rules table.
// Every statement filters on tenant_id so tenants never see each other's rows.
type PostgresRuleStore struct {
	db       *sql.DB
	tenantID string
}

func NewPostgresRuleStore(db *sql.DB, tenantID string) *PostgresRuleStore {
	return &PostgresRuleStore{db: db, tenantID: tenantID}
}

// Add inserts rule, failing with ErrRuleExists when the ID is taken.
// Zero timestamps are stamped with the current time.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	stamp(rule)

	res, err := s.db.Exec(`
		INSERT INTO rules (id, tenant_id, name, expression, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, rule.ID, s.tenantID, rule.Name, rule.Expression, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rule %s: %w", rule.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert rule %s: %w", rule.ID, err)
	} else if n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleExists)
	}
	return nil
}

func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	rule, err := scanRule(s.db.QueryRow(selectRules+` WHERE id = $1 AND tenant_id = $2`, id, s.tenantID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	case err != nil:
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rule, nil
}

func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.collect(selectRules+` WHERE tenant_id = $1 ORDER BY created_at ASC, id ASC`, s.tenantID)
}

func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	return s.collect(selectRules+` WHERE tenant_id = $1 AND active = true ORDER BY created_at ASC, id ASC`, s.tenantID)
}

// ListPage reads one row past the limit to learn whether another page exists
func (s *PostgresRuleStore) ListPage(req paging.Request) (*RulePage, error) {
	after, paged, err := req.Cursor()
	if err != nil {
		return nil, err
	}
	limit := req.Limit()

	var rules []*Rule
	if paged {
		rules, err = s.collect(selectRules+`
			WHERE tenant_id = $1 AND (created_at, id) > ($2, $3)
			ORDER BY created_at ASC, id ASC LIMIT $4`,
			s.tenantID, after.CreatedAt, after.ID, limit+1)
	} else {
		rules, err = s.collect(selectRules+`
			WHERE tenant_id = $1
			ORDER BY created_at ASC, id ASC LIMIT $2`,
			s.tenantID, limit+1)
	}
	if err != nil {
		return nil, err
	}

	page := &RulePage{Rules: rules}
	if len(rules) > limit {
		page.Rules = rules[:limit]
		page.NextPageToken = paging.Encode(cursorOf(rules[limit-1]))
	}
	return page, nil
}

func (s *PostgresRuleStore) collect(query string, args ...any) ([]*Rule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

// Update overwrites the mutable columns of an existing rule. CreatedAt is
// refreshed from the stored row.
func (s *PostgresRuleStore) Update(rule *Rule) error {
	rule.UpdatedAt = time.Now()

	err := s.db.QueryRow(`
		UPDATE rules SET name = $1, expression = $2, active = $3, updated_at = $4
		WHERE id = $5 AND tenant_id = $6
		RETURNING created_at
	`, rule.Name, rule.Expression, rule.Active, rule.UpdatedAt, rule.ID, s.tenantID).Scan(&rule.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	case err != nil:
		return fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	return nil
}

func (s *PostgresRuleStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM rules WHERE id = $1 AND tenant_id = $2`, id, s.tenantID)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return nil
}
