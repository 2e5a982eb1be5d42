package dummydb

import (
	"context"
	"strings"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
)

type ruleRepository struct {
	db *DB
}

var _ conversion.Repository = (*ruleRepository)(nil) // interface compliance check

func NewRuleRepository(db *DB) conversion.Repository {
	return &ruleRepository{db: db}
}

var ruleFields = map[string]comparer[conversion.Rule]{
	"name":       func(a, b conversion.Rule) int { return compareStrings(a.Name, b.Name) },
	"priority":   func(a, b conversion.Rule) int { return compareNumbers(a.Priority, b.Priority) },
	"created_at": func(a, b conversion.Rule) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b conversion.Rule) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

var defaultRuleOrdering = []core.DBOrdering{{Field: "priority"}, {Field: "name", Ascending: true}}

func (repo *ruleRepository) CreateRule(_ context.Context, r conversion.Rule) (conversion.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.rules {
		if other.TenantID == r.TenantID && strings.EqualFold(other.Name, r.Name) {
			return conversion.Rule{}, conversion.ErrNameExists
		}
	}
	repo.db.rules[r.ID] = r
	return r, nil
}

func (repo *ruleRepository) QueryRules(_ context.Context, tenantID string, filter conversion.QueryFilter, ordering []core.DBOrdering) ([]conversion.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rules := make([]conversion.Rule, 0)
	for _, r := range repo.db.rules {
		if r.TenantID != tenantID {
			continue
		}
		if filter.Search != "" && !containsFold(filter.Search, r.Name, r.Description) {
			continue
		}
		if filter.IsActive != nil && r.IsActive != *filter.IsActive {
			continue
		}
		rules = append(rules, r)
	}
	sortItems(rules, ordering, defaultRuleOrdering, ruleFields, func(r conversion.Rule) string { return r.ID })
	return rules, nil
}

func (repo *ruleRepository) GetRule(_ context.Context, tenantID, id string) (conversion.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.rules[id]; ok && r.TenantID == tenantID {
		return r, nil
	}
	return conversion.Rule{}, conversion.ErrNotFound
}

func (repo *ruleRepository) GetRuleByName(_ context.Context, tenantID, name string) (conversion.Rule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, r := range repo.db.rules {
		if r.TenantID == tenantID && strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return conversion.Rule{}, conversion.ErrNotFound
}

func (repo *ruleRepository) UpdateRule(_ context.Context, r conversion.Rule) (conversion.Rule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.rules[r.ID]; !ok || orig.TenantID != r.TenantID {
		return conversion.Rule{}, conversion.ErrNotFound
	}
	repo.db.rules[r.ID] = r
	return r, nil
}

func (repo *ruleRepository) DeleteRule(_ context.Context, tenantID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if r, ok := repo.db.rules[id]; !ok || r.TenantID != tenantID {
		return conversion.ErrNotFound
	}
	delete(repo.db.rules, id)
	return nil
}
