package dummydb

import (
	"context"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
)

type leadRepository struct {
	db *DB
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *DB) lead.Repository {
	return &leadRepository{db: db}
}

var leadFields = map[string]comparer[lead.Lead]{
	"store_name":        func(a, b lead.Lead) int { return compareStrings(a.StoreName, b.StoreName) },
	"city":              func(a, b lead.Lead) int { return compareStrings(a.City, b.City) },
	"status":            func(a, b lead.Lead) int { return compareStrings(a.Status, b.Status) },
	"estimated_value":   func(a, b lead.Lead) int { return compareNumbers(a.EstimatedValue, b.EstimatedValue) },
	"created_at":        func(a, b lead.Lead) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at":        func(a, b lead.Lead) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
	"status_changed_at": func(a, b lead.Lead) int { return compareTimes(a.StatusChangedAt, b.StatusChangedAt) },
	"last_visit_at":     func(a, b lead.Lead) int { return compareTimePtrs(a.LastVisitAt, b.LastVisitAt) },
}

var defaultLeadOrdering = []core.DBOrdering{{Field: "created_at"}}

func (repo *leadRepository) CheckUniqueness(_ context.Context, tenantID, email, phone, excludedID string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, l := range repo.db.leads {
		if l.TenantID != tenantID || l.ID == excludedID {
			continue
		}
		if email != "" && l.Email == email {
			return lead.ErrEmailExists
		}
		if phone != "" && l.Phone == phone {
			return lead.ErrPhoneExists
		}
	}
	return nil
}

func (repo *leadRepository) CreateLead(_ context.Context, l lead.Lead) (lead.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.leads[l.ID] = l
	return l, nil
}

func (repo *leadRepository) QueryLeads(_ context.Context, scope core.Scope, filter lead.QueryFilter, ordering []core.DBOrdering) ([]lead.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	leads := make([]lead.Lead, 0)
	for _, l := range repo.db.leads {
		if l.TenantID != scope.TenantID || !scope.Allows(l.AssignedTo, l.TerritoryID) {
			continue
		}
		if filter.Matches(l) {
			leads = append(leads, l)
		}
	}
	sortItems(leads, ordering, defaultLeadOrdering, leadFields, func(l lead.Lead) string { return l.ID })
	return core.Paginate(filter.Page, leads), nil
}

func (repo *leadRepository) GetLead(_ context.Context, tenantID, id string) (lead.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.leads[id]; ok && l.TenantID == tenantID {
		return l, nil
	}
	return lead.Lead{}, lead.ErrNotFound
}

func (repo *leadRepository) UpdateLead(_ context.Context, l lead.Lead) (lead.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.leads[l.ID]; !ok || orig.TenantID != l.TenantID {
		return lead.Lead{}, lead.ErrNotFound
	}
	repo.db.leads[l.ID] = l
	return l, nil
}

// DeleteLeads removes the leads and their visits.
func (repo *leadRepository) DeleteLeads(_ context.Context, tenantID string, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if l, ok := repo.db.leads[id]; ok && l.TenantID == tenantID {
			delete(repo.db.leads, id)
			deleted[id] = true
		}
	}
	for id, v := range repo.db.visits {
		if deleted[v.LeadID] {
			delete(repo.db.visits, id)
		}
	}
	return nil
}
