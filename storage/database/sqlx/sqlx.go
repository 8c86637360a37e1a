// Package sqlxrepos implements the repositories on top of jmoiron/sqlx.
// queries are written with "?" bind vars & rebound for the driver in use (postgres or sqlite).
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/masomo-quiz/core"
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err was caused by a UNIQUE (or PRIMARY KEY) constraint.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

// orderBy builds an ORDER BY clause from the allowed fields, falling back to def.
func orderBy(ordering []core.DBOrdering, allowed core.OrderingFields, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range allowed.Allowed(ordering) {
		clauses = append(clauses, ord.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// where joins conditions with AND.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// trapNoRows maps sql.ErrNoRows to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
