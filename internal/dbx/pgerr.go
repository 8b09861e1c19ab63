package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ConstraintViolation reports whether err is a PostgreSQL unique or foreign
// key violation, and the name of the violated constraint.
func ConstraintViolation(err error) (constraint string, unique bool, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false, false
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return pgErr.ConstraintName, true, true
	case codeForeignKeyViolation:
		return pgErr.ConstraintName, false, true
	}
	return "", false, false
}
