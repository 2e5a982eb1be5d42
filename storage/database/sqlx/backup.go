package sqlxrepos

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

const (
	backupsTable = "backups"

	// insertBatchSize keeps multi-row inserts well below the bind parameter limit.
	insertBatchSize = 200
)

var backupColumns = []string{"id", "tenant_id", "kind", "partial", "size", "raw_size", "checksum", "counts", "created_by", "created_at"}

type backupRow struct {
	ID        string      `db:"id"`
	TenantID  string      `db:"tenant_id"`
	Kind      string      `db:"kind"`
	Partial   bool        `db:"partial"`
	Size      int64       `db:"size"`
	RawSize   int64       `db:"raw_size"`
	Checksum  string      `db:"checksum"`
	Counts    []byte      `db:"counts"`
	CreatedBy null.String `db:"created_by"`
	CreatedAt time.Time   `db:"created_at"`
}

func (r backupRow) backup() (backup.Backup, error) {
	b := backup.Backup{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Kind:      r.Kind,
		Partial:   r.Partial,
		Size:      r.Size,
		RawSize:   r.RawSize,
		Checksum:  r.Checksum,
		CreatedBy: r.CreatedBy.String,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Counts) > 0 {
		if err := json.Unmarshal(r.Counts, &b.Counts); err != nil {
			return backup.Backup{}, errors.Wrap(err, "decoding backup counts")
		}
	}
	return b, nil
}

type backupRepository struct {
	db *sqlx.DB
}

var _ backup.Repository = (*backupRepository)(nil) // interface compliance check

func NewBackupRepository(db *sqlx.DB) backup.Repository {
	return &backupRepository{db: db}
}

func (repo *backupRepository) CreateBackup(ctx context.Context, b backup.Backup, payload []byte) (backup.Backup, error) {
	counts, err := json.Marshal(b.Counts)
	if err != nil {
		return backup.Backup{}, errors.Wrap(err, "encoding backup counts")
	}
	_, err = execContext(ctx, repo.db, psql.Insert(backupsTable).SetMap(map[string]interface{}{
		"id":         b.ID,
		"tenant_id":  b.TenantID,
		"kind":       b.Kind,
		"partial":    b.Partial,
		"size":       b.Size,
		"raw_size":   b.RawSize,
		"checksum":   b.Checksum,
		"counts":     counts,
		"payload":    payload,
		"created_by": nullUUID(b.CreatedBy),
		"created_at": b.CreatedAt.UTC(),
	}))
	return b, errors.Wrap(err, "inserting backup")
}

func (repo *backupRepository) QueryBackups(ctx context.Context, tenantID string) ([]backup.Backup, error) {
	var rows []backupRow
	err := selectContext(ctx, repo.db, &rows, psql.Select(backupColumns...).From(backupsTable).
		Where(sq.Eq{"tenant_id": tenantID}).OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, errors.Wrap(err, "querying backups")
	}
	backups := make([]backup.Backup, 0, len(rows))
	for _, r := range rows {
		b, err := r.backup()
		if err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, nil
}

func (repo *backupRepository) GetBackup(ctx context.Context, tenantID, id string) (backup.Backup, error) {
	var row backupRow
	err := getContext(ctx, repo.db, &row, psql.Select(backupColumns...).From(backupsTable).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return backup.Backup{}, trapNoRowsErr(err, backup.ErrNotFound, "getting backup")
	}
	return row.backup()
}

func (repo *backupRepository) GetPayload(ctx context.Context, tenantID, id string) ([]byte, error) {
	var payload []byte
	err := getContext(ctx, repo.db, &payload, psql.Select("payload").From(backupsTable).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return nil, trapNoRowsErr(err, backup.ErrNotFound, "getting backup payload")
	}
	return payload, nil
}

func (repo *backupRepository) DeleteBackup(ctx context.Context, tenantID, id string) error {
	n, err := execContext(ctx, repo.db, psql.Delete(backupsTable).Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting backup")
	}
	if n == 0 {
		return backup.ErrNotFound
	}
	return nil
}

// ExportTenantData reads the tenant data in one repeatable-read transaction.
func (repo *backupRepository) ExportTenantData(ctx context.Context, tenantID string) (backup.Snapshot, error) {
	tx, err := repo.db.BeginTxx(ctx, &sqlTxReadOnly)
	if err != nil {
		return backup.Snapshot{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	s := backup.Snapshot{TenantID: tenantID}
	byTenant := sq.Eq{"tenant_id": tenantID}

	var territories []territoryRow
	if err = selectContext(ctx, tx, &territories, psql.Select(territoryColumns...).From(territoriesTable).Where(byTenant).OrderBy("id")); err != nil {
		return backup.Snapshot{}, errors.Wrap(err, "exporting territories")
	}
	s.Territories = territoryRows(territories)

	var leads []leadRow
	if err = selectContext(ctx, tx, &leads, psql.Select(leadColumns...).From(leadsTable).Where(byTenant).OrderBy("id")); err != nil {
		return backup.Snapshot{}, errors.Wrap(err, "exporting leads")
	}
	s.Leads = make([]lead.Lead, 0, len(leads))
	for _, r := range leads {
		s.Leads = append(s.Leads, r.lead())
	}

	var visits []visitRow
	if err = selectContext(ctx, tx, &visits, psql.Select(visitColumns...).From(visitsTable).Where(byTenant).OrderBy("id")); err != nil {
		return backup.Snapshot{}, errors.Wrap(err, "exporting visits")
	}
	s.Visits = make([]visit.Visit, 0, len(visits))
	for _, r := range visits {
		s.Visits = append(s.Visits, r.visit())
	}

	var rules []ruleRow
	if err = selectContext(ctx, tx, &rules, psql.Select(ruleColumns...).From(rulesTable).Where(byTenant).OrderBy("id")); err != nil {
		return backup.Snapshot{}, errors.Wrap(err, "exporting conversion rules")
	}
	s.Rules = make([]conversion.Rule, 0, len(rules))
	for _, r := range rules {
		s.Rules = append(s.Rules, r.rule())
	}

	if s.Settings, err = querySettings(ctx, tx, tenantID); err != nil {
		return backup.Snapshot{}, err
	}
	return s, nil
}

// insertAll inserts rows in batches; every row must have the same columns.
func insertAll(ctx context.Context, tx *sqlx.Tx, table string, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		qb := psql.Insert(table).Columns(cols...)
		for _, row := range rows[start:end] {
			vals := make([]interface{}, 0, len(cols))
			for _, col := range cols {
				vals = append(vals, row[col])
			}
			qb = qb.Values(vals...)
		}
		if _, err := execContext(ctx, tx, qb); err != nil {
			return errors.Wrapf(err, "inserting into %s", table)
		}
	}
	return nil
}

// ReplaceTenantData swaps the tenant data in one transaction. References to users that no longer
// exist are cleared; users keep their territory when the snapshot restores it.
func (repo *backupRepository) ReplaceTenantData(ctx context.Context, s backup.Snapshot) error {
	tid := s.TenantID
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var users []struct {
			ID          string      `db:"id"`
			TerritoryID null.String `db:"territory_id"`
		}
		if err := selectContext(ctx, tx, &users, psql.Select("id", "territory_id").From(usersTable).Where(sq.Eq{"tenant_id": tid})); err != nil {
			return errors.Wrap(err, "querying users")
		}
		userExists := make(map[string]bool, len(users))
		var userIDs, userTerritories []string
		for _, u := range users {
			userExists[u.ID] = true
			if u.TerritoryID.Valid {
				userIDs = append(userIDs, u.ID)
				userTerritories = append(userTerritories, u.TerritoryID.String)
			}
		}
		userRef := func(id string) string {
			if userExists[id] {
				return id
			}
			return ""
		}

		// visits go with their leads
		for _, table := range []string{leadsTable, territoriesTable, rulesTable, settingsTable} {
			if _, err := execContext(ctx, tx, psql.Delete(table).Where(sq.Eq{"tenant_id": tid})); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}

		rows := make([]map[string]interface{}, 0, len(s.Territories))
		for _, t := range s.Territories {
			t.TenantID = tid
			t.ManagerID = userRef(t.ManagerID)
			values := territoryValues(t)
			values["id"] = t.ID
			values["tenant_id"] = tid
			values["created_at"] = t.CreatedAt.UTC()
			rows = append(rows, values)
		}
		if err := insertAll(ctx, tx, territoriesTable, rows); err != nil {
			return err
		}

		leadIDs := make(map[string]bool, len(s.Leads))
		rows = make([]map[string]interface{}, 0, len(s.Leads))
		for _, l := range s.Leads {
			l.TenantID = tid
			l.AssignedTo = userRef(l.AssignedTo)
			l.CreatedBy = userRef(l.CreatedBy)
			leadIDs[l.ID] = true
			rows = append(rows, leadInsertValues(l))
		}
		if err := insertAll(ctx, tx, leadsTable, rows); err != nil {
			return err
		}

		rows = make([]map[string]interface{}, 0, len(s.Visits))
		for _, v := range s.Visits {
			if !leadIDs[v.LeadID] {
				continue
			}
			v.TenantID = tid
			v.UserID = userRef(v.UserID)
			v.CreatedBy = userRef(v.CreatedBy)
			rows = append(rows, visitInsertValues(v))
		}
		if err := insertAll(ctx, tx, visitsTable, rows); err != nil {
			return err
		}

		rows = make([]map[string]interface{}, 0, len(s.Rules))
		for _, r := range s.Rules {
			r.TenantID = tid
			rows = append(rows, ruleInsertValues(r))
		}
		if err := insertAll(ctx, tx, rulesTable, rows); err != nil {
			return err
		}

		for _, st := range s.Settings {
			st.TenantID = tid
			st.UpdatedBy = userRef(st.UpdatedBy)
			if _, err := execContext(ctx, tx, settingInsert(st)); err != nil {
				return errors.Wrap(err, "inserting setting")
			}
		}

		if len(userIDs) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE users u SET territory_id = s.territory_id
			FROM (SELECT UNNEST($1::uuid[]) AS user_id, UNNEST($2::uuid[]) AS territory_id) s
			WHERE u.id = s.user_id AND EXISTS (SELECT 1 FROM territories t WHERE t.id = s.territory_id)`,
			pq.Array(userIDs), pq.Array(userTerritories))
		return errors.Wrap(err, "restoring user territories")
	})
}
