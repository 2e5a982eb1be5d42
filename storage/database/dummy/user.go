package dummydb

import (
	"context"
	"strings"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

var userFields = map[string]comparer[user.User]{
	"name":       func(a, b user.User) int { return compareStrings(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return compareStrings(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return compareStrings(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"last_login": func(a, b user.User) int { return compareTimes(a.LastLogin, b.LastLogin) },
}

func (repo *userRepository) CheckUniqueness(_ context.Context, tenantID, username, email, excludedID string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if usr.TenantID != tenantID || usr.ID == excludedID {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.users[usr.ID] = usr
	return usr, nil
}

func hasRolePrefix(usr user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		if usr.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}

func (repo *userRepository) QueryUsers(_ context.Context, tenantID string, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if usr.TenantID != tenantID {
			continue
		}
		// users with search keyword matching any Name, Username or Email ?
		if filter.Search != "" && !containsFold(filter.Search, usr.Name, usr.Username, usr.Email) {
			continue
		}
		// users with any role starting with one of the filter roles ?
		if len(filter.Roles) > 0 && !hasRolePrefix(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if filter.TerritoryID != "" && usr.TerritoryID != filter.TerritoryID {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, usr)
	}
	sortItems(users, ordering, []core.DBOrdering{{Field: "name", Ascending: true}}, userFields,
		func(u user.User) string { return u.ID })
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, tenantID string, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok && usr.TenantID == tenantID {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.users {
		if usr.TenantID != tenantID {
			continue
		}
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || strings.EqualFold(usr.Email, filter.UsernameOrEmail) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.users[usr.ID]; !ok || orig.TenantID != usr.TenantID {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

// DeleteUsers unassigns the deleted users' leads, visits and territories.
func (repo *userRepository) DeleteUsers(_ context.Context, tenantID string, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok && usr.TenantID == tenantID {
			delete(repo.db.users, id)
			deleted[id] = true
		}
	}
	for id, l := range repo.db.leads {
		if deleted[l.AssignedTo] {
			l.AssignedTo = ""
			repo.db.leads[id] = l
		}
	}
	for id, v := range repo.db.visits {
		if deleted[v.UserID] {
			v.UserID = ""
			repo.db.visits[id] = v
		}
	}
	for id, t := range repo.db.territories {
		if deleted[t.ManagerID] {
			t.ManagerID = ""
			repo.db.territories[id] = t
		}
	}
	return nil
}
