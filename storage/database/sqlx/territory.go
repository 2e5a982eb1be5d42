package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
)

const territoriesTable = "territories"

var territoryColumns = []string{
	"id", "tenant_id", "name", "code", "region", "description", "manager_id", "is_active", "created_at", "updated_at",
}

type territoryRow struct {
	ID          string      `db:"id"`
	TenantID    string      `db:"tenant_id"`
	Name        string      `db:"name"`
	Code        string      `db:"code"`
	Region      string      `db:"region"`
	Description string      `db:"description"`
	ManagerID   null.String `db:"manager_id"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r territoryRow) territory() territory.Territory {
	return territory.Territory{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Name:        r.Name,
		Code:        r.Code,
		Region:      r.Region,
		Description: r.Description,
		ManagerID:   r.ManagerID.String,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func territoryValues(t territory.Territory) map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name,
		"code":        t.Code,
		"region":      t.Region,
		"description": t.Description,
		"manager_id":  nullUUID(t.ManagerID),
		"is_active":   t.IsActive,
		"updated_at":  t.UpdatedAt.UTC(),
	}
}

func territoryRows(rows []territoryRow) []territory.Territory {
	ts := make([]territory.Territory, 0, len(rows))
	for _, r := range rows {
		ts = append(ts, r.territory())
	}
	return ts
}

type territoryRepository struct {
	db *sqlx.DB
}

var _ territory.Repository = (*territoryRepository)(nil) // interface compliance check

func NewTerritoryRepository(db *sqlx.DB) territory.Repository {
	return &territoryRepository{db: db}
}

func (repo *territoryRepository) CreateTerritory(ctx context.Context, t territory.Territory) (territory.Territory, error) {
	values := territoryValues(t)
	values["id"] = t.ID
	values["tenant_id"] = t.TenantID
	values["created_at"] = t.CreatedAt.UTC()

	if _, err := execContext(ctx, repo.db, psql.Insert(territoriesTable).SetMap(values)); err != nil {
		if uniqueConstraint(err) != "" {
			return territory.Territory{}, territory.ErrCodeExists
		}
		return territory.Territory{}, errors.Wrap(err, "inserting territory")
	}
	return t, nil
}

func (repo *territoryRepository) QueryTerritories(ctx context.Context, tenantID string, filter territory.QueryFilter, ordering []core.DBOrdering) ([]territory.Territory, error) {
	qb := psql.Select(territoryColumns...).From(territoriesTable).Where(sq.Eq{"tenant_id": tenantID})
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "name", "code", "region"))
	}
	if filter.ManagerID != "" {
		if !validUUID(filter.ManagerID) {
			return []territory.Territory{}, nil
		}
		qb = qb.Where(sq.Eq{"manager_id": filter.ManagerID})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	qb = orderBy(qb, ordering, []core.DBOrdering{{Field: "name", Ascending: true}})

	var rows []territoryRow
	if err := selectContext(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying territories")
	}
	return territoryRows(rows), nil
}

func (repo *territoryRepository) get(ctx context.Context, where sq.Eq) (territory.Territory, error) {
	var row territoryRow
	if err := getContext(ctx, repo.db, &row, psql.Select(territoryColumns...).From(territoriesTable).Where(where)); err != nil {
		return territory.Territory{}, trapNoRowsErr(err, territory.ErrNotFound, "getting territory")
	}
	return row.territory(), nil
}

func (repo *territoryRepository) GetTerritory(ctx context.Context, tenantID, id string) (territory.Territory, error) {
	if !validUUID(id) {
		return territory.Territory{}, territory.ErrNotFound
	}
	return repo.get(ctx, sq.Eq{"tenant_id": tenantID, "id": id})
}

func (repo *territoryRepository) GetTerritoryByCode(ctx context.Context, tenantID, code string) (territory.Territory, error) {
	return repo.get(ctx, sq.Eq{"tenant_id": tenantID, "code": code})
}

func (repo *territoryRepository) UpdateTerritory(ctx context.Context, t territory.Territory) (territory.Territory, error) {
	n, err := execContext(ctx, repo.db, psql.Update(territoriesTable).SetMap(territoryValues(t)).
		Where(sq.Eq{"id": t.ID, "tenant_id": t.TenantID}))
	if err != nil {
		if uniqueConstraint(err) != "" {
			return territory.Territory{}, territory.ErrCodeExists
		}
		return territory.Territory{}, errors.Wrap(err, "updating territory")
	}
	if n == 0 {
		return territory.Territory{}, territory.ErrNotFound
	}
	return t, nil
}

func (repo *territoryRepository) DeleteTerritory(ctx context.Context, tenantID, id string) error {
	if !validUUID(id) {
		return nil
	}
	_, err := execContext(ctx, repo.db, psql.Delete(territoriesTable).Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	return errors.Wrap(err, "deleting territory")
}

func (repo *territoryRepository) CountTerritoryLeads(ctx context.Context, tenantID, id string) (int, error) {
	if !validUUID(id) {
		return 0, nil
	}
	var n int
	err := getContext(ctx, repo.db, &n, psql.Select("COUNT(*)").From(leadsTable).Where(sq.Eq{"tenant_id": tenantID, "territory_id": id}))
	return n, errors.Wrap(err, "counting territory leads")
}
