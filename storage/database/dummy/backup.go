package dummydb

import (
	"context"
	"sort"

	"github.com/ud-systems/UD-Leads-sub001/core/backup"
	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

type backupRepository struct {
	db *DB
}

var _ backup.Repository = (*backupRepository)(nil) // interface compliance check

func NewBackupRepository(db *DB) backup.Repository {
	return &backupRepository{db: db}
}

func (repo *backupRepository) CreateBackup(_ context.Context, b backup.Backup, payload []byte) (backup.Backup, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.backups[b.ID] = storedBackup{Backup: b, payload: append([]byte(nil), payload...)}
	return b, nil
}

func (repo *backupRepository) QueryBackups(_ context.Context, tenantID string) ([]backup.Backup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	backups := make([]backup.Backup, 0)
	for _, b := range repo.db.backups {
		if b.TenantID == tenantID {
			backups = append(backups, b.Backup)
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

func (repo *backupRepository) get(tenantID, id string) (storedBackup, error) {
	if b, ok := repo.db.backups[id]; ok && b.TenantID == tenantID {
		return b, nil
	}
	return storedBackup{}, backup.ErrNotFound
}

func (repo *backupRepository) GetBackup(_ context.Context, tenantID, id string) (backup.Backup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	b, err := repo.get(tenantID, id)
	return b.Backup, err
}

func (repo *backupRepository) GetPayload(_ context.Context, tenantID, id string) ([]byte, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	b, err := repo.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b.payload...), nil
}

func (repo *backupRepository) DeleteBackup(_ context.Context, tenantID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, err := repo.get(tenantID, id); err != nil {
		return err
	}
	delete(repo.db.backups, id)
	return nil
}

func (repo *backupRepository) ExportTenantData(_ context.Context, tenantID string) (backup.Snapshot, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	s := backup.Snapshot{
		TenantID:    tenantID,
		Territories: make([]territory.Territory, 0),
		Leads:       make([]lead.Lead, 0),
		Visits:      make([]visit.Visit, 0),
		Rules:       make([]conversion.Rule, 0),
		Settings:    repo.db.tenantSettings(tenantID),
	}
	for _, t := range repo.db.territories {
		if t.TenantID == tenantID {
			s.Territories = append(s.Territories, t)
		}
	}
	for _, l := range repo.db.leads {
		if l.TenantID == tenantID {
			s.Leads = append(s.Leads, l)
		}
	}
	for _, v := range repo.db.visits {
		if v.TenantID == tenantID {
			s.Visits = append(s.Visits, v)
		}
	}
	for _, r := range repo.db.rules {
		if r.TenantID == tenantID {
			s.Rules = append(s.Rules, r)
		}
	}
	sort.Slice(s.Territories, func(i, j int) bool { return s.Territories[i].ID < s.Territories[j].ID })
	sort.Slice(s.Leads, func(i, j int) bool { return s.Leads[i].ID < s.Leads[j].ID })
	sort.Slice(s.Visits, func(i, j int) bool { return s.Visits[i].ID < s.Visits[j].ID })
	sort.Slice(s.Rules, func(i, j int) bool { return s.Rules[i].ID < s.Rules[j].ID })
	return s, nil
}

// ReplaceTenantData holds the write lock for the whole swap. References to users that
// no longer exist are cleared, as are user territories missing from the snapshot.
func (repo *backupRepository) ReplaceTenantData(_ context.Context, s backup.Snapshot) error {
	db := repo.db
	db.Lock()
	defer db.Unlock()

	tid := s.TenantID
	for id, t := range db.territories {
		if t.TenantID == tid {
			delete(db.territories, id)
		}
	}
	for id, l := range db.leads {
		if l.TenantID == tid {
			delete(db.leads, id)
		}
	}
	for id, v := range db.visits {
		if v.TenantID == tid {
			delete(db.visits, id)
		}
	}
	for id, r := range db.rules {
		if r.TenantID == tid {
			delete(db.rules, id)
		}
	}
	for k := range db.settings {
		if k.tenantID == tid {
			delete(db.settings, k)
		}
	}

	userExists := func(id string) bool {
		usr, ok := db.users[id]
		return ok && usr.TenantID == tid
	}
	for _, t := range s.Territories {
		t.TenantID = tid
		if !userExists(t.ManagerID) {
			t.ManagerID = ""
		}
		db.territories[t.ID] = t
	}
	for _, l := range s.Leads {
		l.TenantID = tid
		if !userExists(l.AssignedTo) {
			l.AssignedTo = ""
		}
		db.leads[l.ID] = l
	}
	for _, v := range s.Visits {
		if _, ok := db.leads[v.LeadID]; !ok {
			continue
		}
		v.TenantID = tid
		if !userExists(v.UserID) {
			v.UserID = ""
		}
		db.visits[v.ID] = v
	}
	for _, r := range s.Rules {
		r.TenantID = tid
		db.rules[r.ID] = r
	}
	for _, st := range s.Settings {
		st.TenantID = tid
		db.settings[settingKey{tenantID: tid, key: st.Key}] = st
	}
	for id, usr := range db.users {
		if usr.TenantID != tid || usr.TerritoryID == "" {
			continue
		}
		if _, ok := db.territories[usr.TerritoryID]; !ok {
			usr.TerritoryID = ""
			db.users[id] = usr
		}
	}
	return nil
}
