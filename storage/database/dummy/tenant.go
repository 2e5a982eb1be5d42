package dummydb

import (
	"context"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
)

type tenantRepository struct {
	db *DB
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *DB) tenant.Repository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) CreateTenant(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.tenants[t.ID] = t
	return t, nil
}

func (repo *tenantRepository) GetTenant(_ context.Context, id string) (tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.tenants[id]; ok {
		return t, nil
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) GetTenantBySlug(_ context.Context, slug string) (tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) QueryTenants(_ context.Context, activeOnly bool) ([]tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tenants := make([]tenant.Tenant, 0, len(repo.db.tenants))
	for _, t := range repo.db.tenants {
		if activeOnly && !t.IsActive {
			continue
		}
		tenants = append(tenants, t)
	}
	sortItems(tenants, nil, []core.DBOrdering{{Field: "name", Ascending: true}},
		map[string]comparer[tenant.Tenant]{
			"name": func(a, b tenant.Tenant) int { return compareStrings(a.Name, b.Name) },
		},
		func(t tenant.Tenant) string { return t.ID })
	return tenants, nil
}

func (repo *tenantRepository) UpdateTenant(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tenants[t.ID]; !ok {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	repo.db.tenants[t.ID] = t
	return t, nil
}
