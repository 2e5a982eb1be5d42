package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/tenant"
)

const tenantsTable = "tenants"

var tenantColumns = []string{"id", "name", "slug", "is_active", "created_at", "updated_at"}

type tenantRepository struct {
	db *sqlx.DB
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *sqlx.DB) tenant.Repository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) CreateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	_, err := execContext(ctx, repo.db, psql.Insert(tenantsTable).SetMap(map[string]interface{}{
		"id":         t.ID,
		"name":       t.Name,
		"slug":       t.Slug,
		"is_active":  t.IsActive,
		"created_at": t.CreatedAt.UTC(),
		"updated_at": t.UpdatedAt.UTC(),
	}))
	if uniqueConstraint(err) != "" {
		return tenant.Tenant{}, tenant.ErrSlugExists
	}
	return t, errors.Wrap(err, "inserting tenant")
}

func (repo *tenantRepository) get(ctx context.Context, where sq.Eq) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := getContext(ctx, repo.db, &t, psql.Select(tenantColumns...).From(tenantsTable).Where(where))
	if err != nil {
		return tenant.Tenant{}, trapNoRowsErr(err, tenant.ErrNotFound, "getting tenant")
	}
	return t, nil
}

func (repo *tenantRepository) GetTenant(ctx context.Context, id string) (tenant.Tenant, error) {
	if !validUUID(id) {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	return repo.get(ctx, sq.Eq{"id": id})
}

func (repo *tenantRepository) GetTenantBySlug(ctx context.Context, slug string) (tenant.Tenant, error) {
	return repo.get(ctx, sq.Eq{"slug": slug})
}

func (repo *tenantRepository) QueryTenants(ctx context.Context, activeOnly bool) ([]tenant.Tenant, error) {
	qb := psql.Select(tenantColumns...).From(tenantsTable).OrderBy("name ASC", "id ASC")
	if activeOnly {
		qb = qb.Where(sq.Eq{"is_active": true})
	}
	tenants := make([]tenant.Tenant, 0)
	if err := selectContext(ctx, repo.db, &tenants, qb); err != nil {
		return nil, errors.Wrap(err, "querying tenants")
	}
	return tenants, nil
}

func (repo *tenantRepository) UpdateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	n, err := execContext(ctx, repo.db, psql.Update(tenantsTable).SetMap(map[string]interface{}{
		"name":       t.Name,
		"is_active":  t.IsActive,
		"updated_at": t.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": t.ID}))
	if err != nil {
		return tenant.Tenant{}, errors.Wrap(err, "updating tenant")
	}
	if n == 0 {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	return t, nil
}
