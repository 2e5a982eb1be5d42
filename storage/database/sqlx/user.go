package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

const usersTable = "users"

var userColumns = []string{
	"id", "tenant_id", "name", "username", "email", "phone", "is_active", "roles", "territory_id",
	"password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	TenantID     string         `db:"tenant_id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	Phone        string         `db:"phone"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	TerritoryID  null.String    `db:"territory_id"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) user() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Phone:        r.Phone,
		IsActive:     r.IsActive,
		Roles:        roles,
		TerritoryID:  r.TerritoryID.String,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func userValues(usr user.User) map[string]interface{} {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]interface{}{
		"name":          usr.Name,
		"username":      nullText(usr.Username),
		"email":         nullText(usr.Email),
		"phone":         usr.Phone,
		"is_active":     usr.IsActive,
		"roles":         pq.Array(roles),
		"territory_id":  nullUUID(usr.TerritoryID),
		"password_hash": usr.PasswordHash,
		"updated_at":    usr.UpdatedAt.UTC(),
		"last_login":    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, tenantID, username, email, excludedID string) error {
	taken := sq.Or{}
	if username != "" {
		taken = append(taken, sq.Eq{"username": username})
	}
	if email != "" {
		taken = append(taken, sq.Eq{"email": email})
	}
	if len(taken) == 0 {
		return nil
	}
	qb := psql.Select("username", "email").From(usersTable).Where(sq.Eq{"tenant_id": tenantID}).Where(taken).Limit(1)
	if validUUID(excludedID) {
		qb = qb.Where(sq.NotEq{"id": excludedID})
	}

	var row struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	err := getContext(ctx, repo.db, &row, qb)
	switch {
	case errors.Cause(err) == errNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case username != "" && row.Username.String == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	values := userValues(usr)
	values["id"] = usr.ID
	values["tenant_id"] = usr.TenantID
	values["created_at"] = usr.CreatedAt.UTC()

	_, err := execContext(ctx, repo.db, psql.Insert(usersTable).SetMap(values))
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	switch uniqueConstraint(err) {
	case "users_tenant_id_username_key":
		return user.ErrUsernameExists
	case "users_tenant_id_email_key":
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) QueryUsers(ctx context.Context, tenantID string, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	qb := psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"tenant_id": tenantID})

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "name", "username", "email"))
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roles := sq.Or{}
		for _, role := range filter.Roles {
			roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM UNNEST(roles) AS user_role WHERE user_role LIKE ?)", searchPrefix(role)))
		}
		qb = qb.Where(roles)
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.TerritoryID != "" {
		if !validUUID(filter.TerritoryID) {
			return []user.User{}, nil
		}
		qb = qb.Where(sq.Eq{"territory_id": filter.TerritoryID})
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	qb = orderBy(qb, ordering, []core.DBOrdering{{Field: "name", Ascending: true}})

	var rows []userRow
	if err := selectContext(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, tenantID string, filter user.GetFilter) (user.User, error) {
	qb := psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"tenant_id": tenantID}).Limit(1)
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		qb = qb.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		qb = qb.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		qb = qb.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		qb = qb.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getContext(ctx, repo.db, &row, qb); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	n, err := execContext(ctx, repo.db, psql.Update(usersTable).SetMap(userValues(usr)).
		Where(sq.Eq{"id": usr.ID, "tenant_id": usr.TenantID}))
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

// DeleteUsers relies on the foreign keys to unassign the users' leads, visits and territories.
func (repo *userRepository) DeleteUsers(ctx context.Context, tenantID string, ids ...string) error {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := execContext(ctx, repo.db, psql.Delete(usersTable).Where(sq.Eq{"tenant_id": tenantID, "id": ids}))
	return errors.Wrap(err, "deleting users")
}
