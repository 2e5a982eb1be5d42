// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const uniqueViolation = "23505"

var (
	errNoRows = sql.ErrNoRows

	sqlTxReadOnly = sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
)

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == errNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueConstraint returns the name of the unique constraint err violates, if any.
func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// orderBy renders orderings, falling back to defaults; id breaks ties.
// NULLs sort as the smallest values.
func orderBy(qb sq.SelectBuilder, ordering, defaults []core.DBOrdering) sq.SelectBuilder {
	if len(ordering) == 0 {
		ordering = defaults
	}
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		nulls := " NULLS LAST"
		if ord.Ascending {
			nulls = " NULLS FIRST"
		}
		clauses = append(clauses, ord.String()+nulls)
	}
	return qb.OrderBy(append(clauses, "id ASC")...)
}

func paginate(qb sq.SelectBuilder, p core.Page) sq.SelectBuilder {
	if p.Limit > 0 {
		qb = qb.Limit(uint64(p.Limit))
	}
	if p.Offset > 0 {
		qb = qb.Offset(uint64(p.Offset))
	}
	return qb
}

// scoped restricts qb to the rows visible in scope; ownerCol holds the owning user.
func scoped(qb sq.SelectBuilder, scope core.Scope, ownerCol string) sq.SelectBuilder {
	qb = qb.Where(sq.Eq{"tenant_id": scope.TenantID})
	if !scope.Restricted() {
		return qb
	}
	visible := sq.Or{}
	if scope.UserID != "" {
		visible = append(visible, sq.Eq{ownerCol: scope.UserID})
	}
	if ids := validUUIDs(scope.TerritoryIDs); len(ids) > 0 {
		visible = append(visible, sq.Eq{"territory_id": ids})
	}
	if len(visible) == 0 {
		return qb.Where("FALSE")
	}
	return qb.Where(visible)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func searchPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func searchPrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

func search(s string, cols ...string) sq.Or {
	pattern := searchPattern(s)
	or := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		or = append(or, sq.ILike{col: pattern})
	}
	return or
}

func selectContext(ctx context.Context, db sqlx.QueryerContext, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, db, dest, query, args...)
}

func getContext(ctx context.Context, db sqlx.QueryerContext, dest interface{}, qb sq.Sqlizer) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, db, dest, query, args...)
}

func execContext(ctx context.Context, db sqlx.ExecerContext, qb sq.Sqlizer) (int64, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullUUID stores empty references as NULL.
func nullUUID(id string) null.String {
	return null.NewString(id, id != "")
}

// nullText stores empty unique values as NULL so they never collide.
func nullText(s string) null.String {
	return null.NewString(s, s != "")
}

// withTx runs fn in a transaction, rolled back if fn fails.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
