package dummydb

import (
	"context"
	"sort"

	"github.com/ud-systems/UD-Leads-sub001/core/setting"
)

type settingRepository struct {
	db *DB
}

var _ setting.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(db *DB) setting.Repository {
	return &settingRepository{db: db}
}

func (repo *settingRepository) QuerySettings(_ context.Context, tenantID string) ([]setting.Setting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.tenantSettings(tenantID), nil
}

func (repo *settingRepository) UpsertSetting(_ context.Context, s setting.Setting) (setting.Setting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.settings[settingKey{tenantID: s.TenantID, key: s.Key}] = s
	return s, nil
}

func (repo *settingRepository) DeleteSetting(_ context.Context, tenantID, key string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.settings, settingKey{tenantID: tenantID, key: key})
	return nil
}

// tenantSettings must be called with the lock held.
func (db *DB) tenantSettings(tenantID string) []setting.Setting {
	settings := make([]setting.Setting, 0)
	for k, s := range db.settings {
		if k.tenantID == tenantID {
			settings = append(settings, s)
		}
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings
}
