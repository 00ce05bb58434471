package rules

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/liamcoop/warden/internal/paging"
)

var (
	// ErrRuleNotFound is wrapped by stores when a rule ID does not exist
	ErrRuleNotFound = errors.New("rule not found")
	// ErrRuleExists is wrapped by Add when the ID is already taken
	ErrRuleExists = errors.New("rule already exists")
)

// RuleStore persists the rules of a single tenant. Listings return rules
// oldest first, ties broken by ID.
type RuleStore interface {
	Add(rule *Rule) error
	Get(id string) (*Rule, error)
	List() ([]*Rule, error)
	// ListPage returns at most req.Limit() rules after req's token
	ListPage(req paging.Request) (*RulePage, error)
	ListActive() ([]*Rule, error)
	Update(rule *Rule) error
	Delete(id string) error
}

// RulePage is one page of a listing. NextPageToken is empty on the last page.
type RulePage struct {
	Rules         []*Rule
	NextPageToken string
}

func cursorOf(rule *Rule) paging.Cursor {
	return paging.Cursor{CreatedAt: rule.CreatedAt, ID: rule.ID}
}

// stamp fills zero timestamps on a rule about to be inserted
func stamp(rule *Rule) {
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}
}

// InMemoryRuleStore is a RuleStore for tests and single-process use.
// It is safe for concurrent use.
type InMemoryRuleStore struct {
	mu    sync.RWMutex
	byID  map[string]*Rule
	clock func() time.Time
}

func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{byID: map[string]*Rule{}, clock: time.Now}
}

func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byID[rule.ID]; taken {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleExists)
	}
	rule.CreatedAt = s.clock()
	rule.UpdatedAt = rule.CreatedAt
	s.byID[rule.ID] = rule
	return nil
}

func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rule, ok := s.byID[id]; ok {
		return rule, nil
	}
	return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
}

func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	return s.snapshot(false), nil
}

func (s *InMemoryRuleStore) ListPage(req paging.Request) (*RulePage, error) {
	after, paged, err := req.Cursor()
	if err != nil {
		return nil, err
	}

	all := s.snapshot(false)
	start := 0
	if paged {
		start = slices.IndexFunc(all, func(r *Rule) bool { return after.After(r.CreatedAt, r.ID) })
		if start < 0 {
			return &RulePage{}, nil
		}
	}

	limit := req.Limit()
	rest := all[start:]
	page := &RulePage{Rules: rest[:min(limit, len(rest))]}
	if len(rest) > limit {
		page.NextPageToken = paging.Encode(cursorOf(page.Rules[limit-1]))
	}
	return page, nil
}

func (s *InMemoryRuleStore) ListActive() ([]*Rule, error) {
	return s.snapshot(true), nil
}

// snapshot orders by CreatedAt, then ID for rules stamped in the same instant
func (s *InMemoryRuleStore) snapshot(activeOnly bool) []*Rule {
	s.mu.RLock()
	var out []*Rule
	for _, rule := range s.byID {
		if !activeOnly || rule.Active {
			out = append(out, rule)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Rule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.byID[rule.ID]
	if !ok {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	}
	rule.CreatedAt = prev.CreatedAt
	rule.UpdatedAt = s.clock()
	s.byID[rule.ID] = rule
	return nil
}

func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	delete(s.byID, id)
	return nil
}
