package dummydb

import (
	"context"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
)

type territoryRepository struct {
	db *DB
}

var _ territory.Repository = (*territoryRepository)(nil) // interface compliance check

func NewTerritoryRepository(db *DB) territory.Repository {
	return &territoryRepository{db: db}
}

var territoryFields = map[string]comparer[territory.Territory]{
	"name":       func(a, b territory.Territory) int { return compareStrings(a.Name, b.Name) },
	"code":       func(a, b territory.Territory) int { return compareStrings(a.Code, b.Code) },
	"region":     func(a, b territory.Territory) int { return compareStrings(a.Region, b.Region) },
	"created_at": func(a, b territory.Territory) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
}

func (repo *territoryRepository) CreateTerritory(_ context.Context, t territory.Territory) (territory.Territory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.territories[t.ID] = t
	return t, nil
}

func (repo *territoryRepository) QueryTerritories(_ context.Context, tenantID string, filter territory.QueryFilter, ordering []core.DBOrdering) ([]territory.Territory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ts := make([]territory.Territory, 0)
	for _, t := range repo.db.territories {
		if t.TenantID != tenantID {
			continue
		}
		if filter.Search != "" && !containsFold(filter.Search, t.Name, t.Code, t.Region) {
			continue
		}
		if filter.ManagerID != "" && t.ManagerID != filter.ManagerID {
			continue
		}
		if filter.IsActive != nil && t.IsActive != *filter.IsActive {
			continue
		}
		ts = append(ts, t)
	}
	sortItems(ts, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, territoryFields,
		func(t territory.Territory) string { return t.ID })
	return ts, nil
}

func (repo *territoryRepository) GetTerritory(_ context.Context, tenantID, id string) (territory.Territory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.territories[id]; ok && t.TenantID == tenantID {
		return t, nil
	}
	return territory.Territory{}, territory.ErrNotFound
}

func (repo *territoryRepository) GetTerritoryByCode(_ context.Context, tenantID, code string) (territory.Territory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.territories {
		if t.TenantID == tenantID && t.Code == code {
			return t, nil
		}
	}
	return territory.Territory{}, territory.ErrNotFound
}

func (repo *territoryRepository) UpdateTerritory(_ context.Context, t territory.Territory) (territory.Territory, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.territories[t.ID]; !ok || orig.TenantID != t.TenantID {
		return territory.Territory{}, territory.ErrNotFound
	}
	repo.db.territories[t.ID] = t
	return t, nil
}

func (repo *territoryRepository) DeleteTerritory(_ context.Context, tenantID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if t, ok := repo.db.territories[id]; !ok || t.TenantID != tenantID {
		return nil
	}
	delete(repo.db.territories, id)
	for uid, usr := range repo.db.users {
		if usr.TerritoryID == id {
			usr.TerritoryID = ""
			repo.db.users[uid] = usr
		}
	}
	for vid, v := range repo.db.visits {
		if v.TerritoryID == id {
			v.TerritoryID = ""
			repo.db.visits[vid] = v
		}
	}
	return nil
}

func (repo *territoryRepository) CountTerritoryLeads(_ context.Context, tenantID, id string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, l := range repo.db.leads {
		if l.TenantID == tenantID && l.TerritoryID == id {
			n++
		}
	}
	return n, nil
}
