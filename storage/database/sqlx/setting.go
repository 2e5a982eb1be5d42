package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core/setting"
)

const settingsTable = "system_settings"

var settingColumns = []string{"tenant_id", "key", "value", "updated_by", "updated_at"}

type settingRow struct {
	TenantID  string      `db:"tenant_id"`
	Key       string      `db:"key"`
	Value     string      `db:"value"`
	UpdatedBy null.String `db:"updated_by"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func (r settingRow) setting() setting.Setting {
	return setting.Setting{
		TenantID:  r.TenantID,
		Key:       r.Key,
		Value:     r.Value,
		UpdatedBy: r.UpdatedBy.String,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func settingInsert(s setting.Setting) sq.InsertBuilder {
	return psql.Insert(settingsTable).SetMap(map[string]interface{}{
		"tenant_id":  s.TenantID,
		"key":        s.Key,
		"value":      s.Value,
		"updated_by": nullUUID(s.UpdatedBy),
		"updated_at": s.UpdatedAt.UTC(),
	})
}

func querySettings(ctx context.Context, db sqlx.QueryerContext, tenantID string) ([]setting.Setting, error) {
	var rows []settingRow
	err := selectContext(ctx, db, &rows, psql.Select(settingColumns...).From(settingsTable).
		Where(sq.Eq{"tenant_id": tenantID}).OrderBy("key ASC"))
	if err != nil {
		return nil, errors.Wrap(err, "querying settings")
	}
	settings := make([]setting.Setting, 0, len(rows))
	for _, r := range rows {
		settings = append(settings, r.setting())
	}
	return settings, nil
}

type settingRepository struct {
	db *sqlx.DB
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *sqlx.DB) setting.Repository {
	return &settingRepository{db: db}
}

func (repo *settingRepository) QuerySettings(ctx context.Context, tenantID string) ([]setting.Setting, error) {
	return querySettings(ctx, repo.db, tenantID)
}

func (repo *settingRepository) UpsertSetting(ctx context.Context, s setting.Setting) (setting.Setting, error) {
	qb := settingInsert(s).Suffix("ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, " +
		"updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at")
	_, err := execContext(ctx, repo.db, qb)
	return s, errors.Wrap(err, "upserting setting")
}

func (repo *settingRepository) DeleteSetting(ctx context.Context, tenantID, key string) error {
	_, err := execContext(ctx, repo.db, psql.Delete(settingsTable).Where(sq.Eq{"tenant_id": tenantID, "key": key}))
	return errors.Wrap(err, "deleting setting")
}
