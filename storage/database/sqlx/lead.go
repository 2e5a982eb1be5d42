package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
)

const leadsTable = "leads"

var leadColumns = []string{
	"id", "tenant_id", "store_name", "contact_name", "email", "phone", "address", "city", "postal_code",
	"latitude", "longitude", "category", "source", "territory_id", "assigned_to", "status", "estimated_value",
	"notes", "status_changed_at", "converted_at", "conversion_rule_id", "last_visit_at", "created_by",
	"created_at", "updated_at",
}

type leadRow struct {
	ID               string       `db:"id"`
	TenantID         string       `db:"tenant_id"`
	StoreName        string       `db:"store_name"`
	ContactName      string       `db:"contact_name"`
	Email            null.String  `db:"email"`
	Phone            null.String  `db:"phone"`
	Address          string       `db:"address"`
	City             string       `db:"city"`
	PostalCode       string       `db:"postal_code"`
	Latitude         null.Float64 `db:"latitude"`
	Longitude        null.Float64 `db:"longitude"`
	Category         string       `db:"category"`
	Source           string       `db:"source"`
	TerritoryID      null.String  `db:"territory_id"`
	AssignedTo       null.String  `db:"assigned_to"`
	Status           string       `db:"status"`
	EstimatedValue   float64      `db:"estimated_value"`
	Notes            string       `db:"notes"`
	StatusChangedAt  time.Time    `db:"status_changed_at"`
	ConvertedAt      null.Time    `db:"converted_at"`
	ConversionRuleID null.String  `db:"conversion_rule_id"`
	LastVisitAt      null.Time    `db:"last_visit_at"`
	CreatedBy        null.String  `db:"created_by"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func (r leadRow) lead() lead.Lead {
	return lead.Lead{
		ID:               r.ID,
		TenantID:         r.TenantID,
		StoreName:        r.StoreName,
		ContactName:      r.ContactName,
		Email:            r.Email.String,
		Phone:            r.Phone.String,
		Address:          r.Address,
		City:             r.City,
		PostalCode:       r.PostalCode,
		Latitude:         r.Latitude.Ptr(),
		Longitude:        r.Longitude.Ptr(),
		Category:         r.Category,
		Source:           r.Source,
		TerritoryID:      r.TerritoryID.String,
		AssignedTo:       r.AssignedTo.String,
		Status:           r.Status,
		EstimatedValue:   r.EstimatedValue,
		Notes:            r.Notes,
		StatusChangedAt:  r.StatusChangedAt.UTC(),
		ConvertedAt:      utcPtr(r.ConvertedAt),
		ConversionRuleID: r.ConversionRuleID.String,
		LastVisitAt:      utcPtr(r.LastVisitAt),
		CreatedBy:        r.CreatedBy.String,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func leadValues(l lead.Lead) map[string]interface{} {
	return map[string]interface{}{
		"store_name":         l.StoreName,
		"contact_name":       l.ContactName,
		"email":              nullText(l.Email),
		"phone":              nullText(l.Phone),
		"address":            l.Address,
		"city":               l.City,
		"postal_code":        l.PostalCode,
		"latitude":           null.Float64FromPtr(l.Latitude),
		"longitude":          null.Float64FromPtr(l.Longitude),
		"category":           l.Category,
		"source":             l.Source,
		"territory_id":       nullUUID(l.TerritoryID),
		"assigned_to":        nullUUID(l.AssignedTo),
		"status":             l.Status,
		"estimated_value":    l.EstimatedValue,
		"notes":              l.Notes,
		"status_changed_at":  l.StatusChangedAt.UTC(),
		"converted_at":       nullTime(l.ConvertedAt),
		"conversion_rule_id": nullUUID(l.ConversionRuleID),
		"last_visit_at":      nullTime(l.LastVisitAt),
		"updated_at":         l.UpdatedAt.UTC(),
	}
}

func leadInsertValues(l lead.Lead) map[string]interface{} {
	values := leadValues(l)
	values["id"] = l.ID
	values["tenant_id"] = l.TenantID
	values["created_by"] = nullUUID(l.CreatedBy)
	values["created_at"] = l.CreatedAt.UTC()
	return values
}

type leadRepository struct {
	db *sqlx.DB
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *sqlx.DB) lead.Repository {
	return &leadRepository{db: db}
}

func trapLeadUniqueErr(err error, msg string) error {
	switch uniqueConstraint(err) {
	case "leads_tenant_id_email_key":
		return lead.ErrEmailExists
	case "leads_tenant_id_phone_key":
		return lead.ErrPhoneExists
	}
	return errors.Wrap(err, msg)
}

func (repo *leadRepository) CheckUniqueness(ctx context.Context, tenantID, email, phone, excludedID string) error {
	taken := sq.Or{}
	if email != "" {
		taken = append(taken, sq.Eq{"email": email})
	}
	if phone != "" {
		taken = append(taken, sq.Eq{"phone": phone})
	}
	if len(taken) == 0 {
		return nil
	}
	qb := psql.Select("email", "phone").From(leadsTable).Where(sq.Eq{"tenant_id": tenantID}).Where(taken).Limit(1)
	if validUUID(excludedID) {
		qb = qb.Where(sq.NotEq{"id": excludedID})
	}

	var row struct {
		Email null.String `db:"email"`
		Phone null.String `db:"phone"`
	}
	err := getContext(ctx, repo.db, &row, qb)
	switch {
	case errors.Cause(err) == errNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking lead uniqueness")
	case email != "" && row.Email.String == email:
		return lead.ErrEmailExists
	default:
		return lead.ErrPhoneExists
	}
}

func (repo *leadRepository) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	if _, err := execContext(ctx, repo.db, psql.Insert(leadsTable).SetMap(leadInsertValues(l))); err != nil {
		return lead.Lead{}, trapLeadUniqueErr(err, "inserting lead")
	}
	return l, nil
}

func leadFilter(qb sq.SelectBuilder, filter lead.QueryFilter) sq.SelectBuilder {
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "store_name", "contact_name", "email", "phone", "city"))
	}
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.TerritoryIDs) > 0 {
		qb = qb.Where(sq.Eq{"territory_id": validUUIDs(filter.TerritoryIDs)})
	}
	if filter.AssignedTo != "" {
		if validUUID(filter.AssignedTo) {
			qb = qb.Where(sq.Eq{"assigned_to": filter.AssignedTo})
		} else {
			qb = qb.Where("FALSE")
		}
	}
	if filter.Source != "" {
		qb = qb.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Category != "" {
		qb = qb.Where("LOWER(category) = LOWER(?)", filter.Category)
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	if filter.MinValue != nil {
		qb = qb.Where(sq.GtOrEq{"estimated_value": *filter.MinValue})
	}
	if filter.MaxValue != nil {
		qb = qb.Where(sq.LtOrEq{"estimated_value": *filter.MaxValue})
	}
	return qb
}

func (repo *leadRepository) QueryLeads(ctx context.Context, scope core.Scope, filter lead.QueryFilter, ordering []core.DBOrdering) ([]lead.Lead, error) {
	qb := scoped(psql.Select(leadColumns...).From(leadsTable), scope, "assigned_to")
	qb = leadFilter(qb, filter)
	qb = orderBy(qb, ordering, []core.DBOrdering{{Field: "created_at"}})
	qb = paginate(qb, filter.Page)

	var rows []leadRow
	if err := selectContext(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying leads")
	}
	leads := make([]lead.Lead, 0, len(rows))
	for _, r := range rows {
		leads = append(leads, r.lead())
	}
	return leads, nil
}

func (repo *leadRepository) GetLead(ctx context.Context, tenantID, id string) (lead.Lead, error) {
	if !validUUID(id) {
		return lead.Lead{}, lead.ErrNotFound
	}
	var row leadRow
	err := getContext(ctx, repo.db, &row, psql.Select(leadColumns...).From(leadsTable).Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return lead.Lead{}, trapNoRowsErr(err, lead.ErrNotFound, "getting lead")
	}
	return row.lead(), nil
}

func (repo *leadRepository) UpdateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	n, err := execContext(ctx, repo.db, psql.Update(leadsTable).SetMap(leadValues(l)).
		Where(sq.Eq{"id": l.ID, "tenant_id": l.TenantID}))
	if err != nil {
		return lead.Lead{}, trapLeadUniqueErr(err, "updating lead")
	}
	if n == 0 {
		return lead.Lead{}, lead.ErrNotFound
	}
	return l, nil
}

// DeleteLeads relies on the foreign keys to remove the leads' visits.
func (repo *leadRepository) DeleteLeads(ctx context.Context, tenantID string, ids ...string) error {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := execContext(ctx, repo.db, psql.Delete(leadsTable).Where(sq.Eq{"tenant_id": tenantID, "id": ids}))
	return errors.Wrap(err, "deleting leads")
}
