// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/mahudhurio/core"
)

const pqUniqueViolation = "23505"

// executor joins the core executor contract with sqlx's struct-scan helpers.
// Both *sqlx.DB and *sqlx.Tx satisfy it.
type executor interface {
	core.DBExecutor
	sqlx.ExtContext
}

// getExec prefers the service-injected executor (an open transaction) over
// the repository's own connection.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) executor {
	if len(svcExec) > 0 {
		if ex, ok := svcExec[0].(executor); ok {
			return ex
		}
	}
	return db
}

// isUniqueViolation reports whether err is a unique-constraint conflict.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
