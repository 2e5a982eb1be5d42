package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

const visitsTable = "visits"

var visitColumns = []string{
	"id", "tenant_id", "lead_id", "user_id", "territory_id", "scheduled_at", "duration_minutes", "purpose",
	"status", "outcome", "order_value", "check_in_at", "completed_at", "cancelled_at", "cancel_reason",
	"reminder_sent_at", "created_by", "created_at", "updated_at",
}

type visitRow struct {
	ID              string      `db:"id"`
	TenantID        string      `db:"tenant_id"`
	LeadID          string      `db:"lead_id"`
	UserID          null.String `db:"user_id"`
	TerritoryID     null.String `db:"territory_id"`
	ScheduledAt     time.Time   `db:"scheduled_at"`
	DurationMinutes int         `db:"duration_minutes"`
	Purpose         string      `db:"purpose"`
	Status          string      `db:"status"`
	Outcome         string      `db:"outcome"`
	OrderValue      float64     `db:"order_value"`
	CheckInAt       null.Time   `db:"check_in_at"`
	CompletedAt     null.Time   `db:"completed_at"`
	CancelledAt     null.Time   `db:"cancelled_at"`
	CancelReason    string      `db:"cancel_reason"`
	ReminderSentAt  null.Time   `db:"reminder_sent_at"`
	CreatedBy       null.String `db:"created_by"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r visitRow) visit() visit.Visit {
	return visit.Visit{
		ID:              r.ID,
		TenantID:        r.TenantID,
		LeadID:          r.LeadID,
		UserID:          r.UserID.String,
		TerritoryID:     r.TerritoryID.String,
		ScheduledAt:     r.ScheduledAt.UTC(),
		DurationMinutes: r.DurationMinutes,
		Purpose:         r.Purpose,
		Status:          r.Status,
		Outcome:         r.Outcome,
		OrderValue:      r.OrderValue,
		CheckInAt:       utcPtr(r.CheckInAt),
		CompletedAt:     utcPtr(r.CompletedAt),
		CancelledAt:     utcPtr(r.CancelledAt),
		CancelReason:    r.CancelReason,
		ReminderSentAt:  utcPtr(r.ReminderSentAt),
		CreatedBy:       r.CreatedBy.String,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func visitValues(v visit.Visit) map[string]interface{} {
	return map[string]interface{}{
		"user_id":          nullUUID(v.UserID),
		"territory_id":     nullUUID(v.TerritoryID),
		"scheduled_at":     v.ScheduledAt.UTC(),
		"duration_minutes": v.DurationMinutes,
		"purpose":          v.Purpose,
		"status":           v.Status,
		"outcome":          v.Outcome,
		"order_value":      v.OrderValue,
		"check_in_at":      nullTime(v.CheckInAt),
		"completed_at":     nullTime(v.CompletedAt),
		"cancelled_at":     nullTime(v.CancelledAt),
		"cancel_reason":    v.CancelReason,
		"reminder_sent_at": nullTime(v.ReminderSentAt),
		"updated_at":       v.UpdatedAt.UTC(),
	}
}

func visitInsertValues(v visit.Visit) map[string]interface{} {
	values := visitValues(v)
	values["id"] = v.ID
	values["tenant_id"] = v.TenantID
	values["lead_id"] = v.LeadID
	values["created_by"] = nullUUID(v.CreatedBy)
	values["created_at"] = v.CreatedAt.UTC()
	return values
}

type visitRepository struct {
	db *sqlx.DB
}

var _ visit.Repository = (*visitRepository)(nil) // interface compliance check

func NewVisitRepository(db *sqlx.DB) visit.Repository {
	return &visitRepository{db: db}
}

func (repo *visitRepository) CreateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	if _, err := execContext(ctx, repo.db, psql.Insert(visitsTable).SetMap(visitInsertValues(v))); err != nil {
		return visit.Visit{}, errors.Wrap(err, "inserting visit")
	}
	return v, nil
}

func (repo *visitRepository) QueryVisits(ctx context.Context, scope core.Scope, filter visit.QueryFilter, ordering []core.DBOrdering) ([]visit.Visit, error) {
	qb := scoped(psql.Select(visitColumns...).From(visitsTable), scope, "user_id")
	for col, id := range map[string]string{"lead_id": filter.LeadID, "user_id": filter.UserID, "territory_id": filter.TerritoryID} {
		if id == "" {
			continue
		}
		if !validUUID(id) {
			return []visit.Visit{}, nil
		}
		qb = qb.Where(sq.Eq{col: id})
	}
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	if !filter.ScheduledFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"scheduled_at": filter.ScheduledFrom.UTC()})
	}
	if !filter.ScheduledTo.IsZero() {
		qb = qb.Where(sq.Lt{"scheduled_at": filter.ScheduledTo.UTC()})
	}
	qb = orderBy(qb, ordering, []core.DBOrdering{{Field: "scheduled_at", Ascending: true}})
	qb = paginate(qb, filter.Page)

	var rows []visitRow
	if err := selectContext(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying visits")
	}
	visits := make([]visit.Visit, 0, len(rows))
	for _, r := range rows {
		visits = append(visits, r.visit())
	}
	return visits, nil
}

func (repo *visitRepository) GetVisit(ctx context.Context, tenantID, id string) (visit.Visit, error) {
	if !validUUID(id) {
		return visit.Visit{}, visit.ErrNotFound
	}
	var row visitRow
	err := getContext(ctx, repo.db, &row, psql.Select(visitColumns...).From(visitsTable).Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return visit.Visit{}, trapNoRowsErr(err, visit.ErrNotFound, "getting visit")
	}
	return row.visit(), nil
}

func (repo *visitRepository) UpdateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	n, err := execContext(ctx, repo.db, psql.Update(visitsTable).SetMap(visitValues(v)).
		Where(sq.Eq{"id": v.ID, "tenant_id": v.TenantID}))
	if err != nil {
		return visit.Visit{}, errors.Wrap(err, "updating visit")
	}
	if n == 0 {
		return visit.Visit{}, visit.ErrNotFound
	}
	return v, nil
}

func (repo *visitRepository) DeleteVisits(ctx context.Context, tenantID string, ids ...string) error {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := execContext(ctx, repo.db, psql.Delete(visitsTable).Where(sq.Eq{"tenant_id": tenantID, "id": ids}))
	return errors.Wrap(err, "deleting visits")
}

func (repo *visitRepository) HasConflict(ctx context.Context, tenantID, userID string, start, end time.Time, excludedID string) (bool, error) {
	if !validUUID(userID) {
		return false, nil
	}
	sub := sq.Select("1").From(visitsTable).
		Where(sq.Eq{"tenant_id": tenantID, "user_id": userID, "status": visit.StatusScheduled}).
		Where(sq.Lt{"scheduled_at": end.UTC()}).
		Where("scheduled_at + duration_minutes * INTERVAL '1 minute' > ?", start.UTC())
	if validUUID(excludedID) {
		sub = sub.Where(sq.NotEq{"id": excludedID})
	}

	var found bool
	err := getContext(ctx, repo.db, &found, psql.Select().Column(sq.Expr("EXISTS (?)", sub)))
	return found, errors.Wrap(err, "checking visit conflicts")
}

func (repo *visitRepository) LeadStats(ctx context.Context, tenantID, leadID string) (visit.Stats, error) {
	if !validUUID(leadID) {
		return visit.Stats{}, nil
	}
	var stats struct {
		CompletedVisits int     `db:"completed_visits"`
		OrderValue      float64 `db:"order_value"`
	}
	err := getContext(ctx, repo.db, &stats, psql.
		Select("COUNT(*) AS completed_visits", "COALESCE(SUM(order_value), 0) AS order_value").
		From(visitsTable).
		Where(sq.Eq{"tenant_id": tenantID, "lead_id": leadID, "status": visit.StatusCompleted}))
	if err != nil {
		return visit.Stats{}, errors.Wrap(err, "computing lead visit stats")
	}
	return visit.Stats{CompletedVisits: stats.CompletedVisits, OrderValue: stats.OrderValue}, nil
}
