package dummydb

import (
	"context"
	"time"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type visitRepository struct {
	db *DB
}

var _ visit.Repository = (*visitRepository)(nil) // interface compliance check

func NewVisitRepository(db *DB) visit.Repository {
	return &visitRepository{db: db}
}

var visitFields = map[string]comparer[visit.Visit]{
	"scheduled_at": func(a, b visit.Visit) int { return compareTimes(a.ScheduledAt, b.ScheduledAt) },
	"status":       func(a, b visit.Visit) int { return compareStrings(a.Status, b.Status) },
	"created_at":   func(a, b visit.Visit) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"order_value":  func(a, b visit.Visit) int { return compareNumbers(a.OrderValue, b.OrderValue) },
}

var defaultVisitOrdering = []core.DBOrdering{{Field: "scheduled_at", Ascending: true}}

func (repo *visitRepository) CreateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if l, ok := repo.db.leads[v.LeadID]; !ok || l.TenantID != v.TenantID {
		return visit.Visit{}, visit.ErrLeadNotFound
	}
	repo.db.visits[v.ID] = v
	return v, nil
}

func (repo *visitRepository) QueryVisits(_ context.Context, scope core.Scope, filter visit.QueryFilter, ordering []core.DBOrdering) ([]visit.Visit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	visits := make([]visit.Visit, 0)
	for _, v := range repo.db.visits {
		if v.TenantID != scope.TenantID || !scope.Allows(v.UserID, v.TerritoryID) {
			continue
		}
		if filter.Matches(v) {
			visits = append(visits, v)
		}
	}
	sortItems(visits, ordering, defaultVisitOrdering, visitFields, func(v visit.Visit) string { return v.ID })
	return core.Paginate(filter.Page, visits), nil
}

func (repo *visitRepository) GetVisit(_ context.Context, tenantID, id string) (visit.Visit, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if v, ok := repo.db.visits[id]; ok && v.TenantID == tenantID {
		return v, nil
	}
	return visit.Visit{}, visit.ErrNotFound
}

func (repo *visitRepository) UpdateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.visits[v.ID]; !ok || orig.TenantID != v.TenantID {
		return visit.Visit{}, visit.ErrNotFound
	}
	repo.db.visits[v.ID] = v
	return v, nil
}

func (repo *visitRepository) DeleteVisits(_ context.Context, tenantID string, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if v, ok := repo.db.visits[id]; ok && v.TenantID == tenantID {
			delete(repo.db.visits, id)
		}
	}
	return nil
}

func (repo *visitRepository) HasConflict(_ context.Context, tenantID, userID string, start, end time.Time, excludedID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, v := range repo.db.visits {
		if v.TenantID != tenantID || v.UserID != userID || v.ID == excludedID || v.Status != visit.StatusScheduled {
			continue
		}
		if v.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *visitRepository) LeadStats(_ context.Context, tenantID, leadID string) (visit.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats visit.Stats
	for _, v := range repo.db.visits {
		if v.TenantID == tenantID && v.LeadID == leadID && v.Status == visit.StatusCompleted {
			stats.CompletedVisits++
			stats.OrderValue += v.OrderValue
		}
	}
	return stats, nil
}
