package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
)

const rulesTable = "conversion_rules"

var ruleColumns = []string{
	"id", "tenant_id", "name", "description", "is_active", "priority", "from_statuses", "min_completed_visits",
	"min_order_value", "min_estimated_value", "sources", "territory_ids", "max_lead_age_days", "created_at", "updated_at",
}

type ruleRow struct {
	ID                 string         `db:"id"`
	TenantID           string         `db:"tenant_id"`
	Name               string         `db:"name"`
	Description        string         `db:"description"`
	IsActive           bool           `db:"is_active"`
	Priority           int            `db:"priority"`
	FromStatuses       pq.StringArray `db:"from_statuses"`
	MinCompletedVisits int            `db:"min_completed_visits"`
	MinOrderValue      float64        `db:"min_order_value"`
	MinEstimatedValue  float64        `db:"min_estimated_value"`
	Sources            pq.StringArray `db:"sources"`
	TerritoryIDs       pq.StringArray `db:"territory_ids"`
	MaxLeadAgeDays     int            `db:"max_lead_age_days"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func orEmpty(a pq.StringArray) []string {
	if len(a) == 0 {
		return nil
	}
	return []string(a)
}

func (r ruleRow) rule() conversion.Rule {
	return conversion.Rule{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		Conditions: conversion.Conditions{
			FromStatuses:       orEmpty(r.FromStatuses),
			MinCompletedVisits: r.MinCompletedVisits,
			MinOrderValue:      r.MinOrderValue,
			MinEstimatedValue:  r.MinEstimatedValue,
			Sources:            orEmpty(r.Sources),
			TerritoryIDs:       orEmpty(r.TerritoryIDs),
			MaxLeadAgeDays:     r.MaxLeadAgeDays,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func textArray(a []string) interface{} {
	if a == nil {
		a = []string{}
	}
	return pq.Array(a)
}

func ruleValues(r conversion.Rule) map[string]interface{} {
	c := r.Conditions
	return map[string]interface{}{
		"name":                 r.Name,
		"description":          r.Description,
		"is_active":            r.IsActive,
		"priority":             r.Priority,
		"from_statuses":        textArray(c.FromStatuses),
		"min_completed_visits": c.MinCompletedVisits,
		"min_order_value":      c.MinOrderValue,
		"min_estimated_value":  c.MinEstimatedValue,
		"sources":              textArray(c.Sources),
		"territory_ids":        textArray(c.TerritoryIDs),
		"max_lead_age_days":    c.MaxLeadAgeDays,
		"updated_at":           r.UpdatedAt.UTC(),
	}
}

func ruleInsertValues(r conversion.Rule) map[string]interface{} {
	values := ruleValues(r)
	values["id"] = r.ID
	values["tenant_id"] = r.TenantID
	values["created_at"] = r.CreatedAt.UTC()
	return values
}

type ruleRepository struct {
	db *sqlx.DB
}

var _ conversion.Repository = (*ruleRepository)(nil) // interface compliance check

func NewRuleRepository(db *sqlx.DB) conversion.Repository {
	return &ruleRepository{db: db}
}

func (repo *ruleRepository) CreateRule(ctx context.Context, r conversion.Rule) (conversion.Rule, error) {
	if _, err := execContext(ctx, repo.db, psql.Insert(rulesTable).SetMap(ruleInsertValues(r))); err != nil {
		if uniqueConstraint(err) != "" {
			return conversion.Rule{}, conversion.ErrNameExists
		}
		return conversion.Rule{}, errors.Wrap(err, "inserting conversion rule")
	}
	return r, nil
}

func (repo *ruleRepository) QueryRules(ctx context.Context, tenantID string, filter conversion.QueryFilter, ordering []core.DBOrdering) ([]conversion.Rule, error) {
	qb := psql.Select(ruleColumns...).From(rulesTable).Where(sq.Eq{"tenant_id": tenantID})
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "name", "description"))
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	qb = orderBy(qb, ordering, []core.DBOrdering{{Field: "priority"}, {Field: "name", Ascending: true}})

	var rows []ruleRow
	if err := selectContext(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying conversion rules")
	}
	rules := make([]conversion.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, r.rule())
	}
	return rules, nil
}

func (repo *ruleRepository) get(ctx context.Context, where sq.Sqlizer) (conversion.Rule, error) {
	var row ruleRow
	if err := getContext(ctx, repo.db, &row, psql.Select(ruleColumns...).From(rulesTable).Where(where)); err != nil {
		return conversion.Rule{}, trapNoRowsErr(err, conversion.ErrNotFound, "getting conversion rule")
	}
	return row.rule(), nil
}

func (repo *ruleRepository) GetRule(ctx context.Context, tenantID, id string) (conversion.Rule, error) {
	if !validUUID(id) {
		return conversion.Rule{}, conversion.ErrNotFound
	}
	return repo.get(ctx, sq.Eq{"tenant_id": tenantID, "id": id})
}

func (repo *ruleRepository) GetRuleByName(ctx context.Context, tenantID, name string) (conversion.Rule, error) {
	return repo.get(ctx, sq.And{sq.Eq{"tenant_id": tenantID}, sq.Expr("LOWER(name) = LOWER(?)", name)})
}

func (repo *ruleRepository) UpdateRule(ctx context.Context, r conversion.Rule) (conversion.Rule, error) {
	n, err := execContext(ctx, repo.db, psql.Update(rulesTable).SetMap(ruleValues(r)).
		Where(sq.Eq{"id": r.ID, "tenant_id": r.TenantID}))
	if err != nil {
		if uniqueConstraint(err) != "" {
			return conversion.Rule{}, conversion.ErrNameExists
		}
		return conversion.Rule{}, errors.Wrap(err, "updating conversion rule")
	}
	if n == 0 {
		return conversion.Rule{}, conversion.ErrNotFound
	}
	return r, nil
}

func (repo *ruleRepository) DeleteRule(ctx context.Context, tenantID, id string) error {
	if !validUUID(id) {
		return conversion.ErrNotFound
	}
	n, err := execContext(ctx, repo.db, psql.Delete(rulesTable).Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting conversion rule")
	}
	if n == 0 {
		return conversion.ErrNotFound
	}
	return nil
}
