package pg

import (
	"database/sql"

	"github.com/jackc/pgerrcode"
)

// CheckNoRows translates sql.ErrNoRows into outErr.
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return err == sql.ErrNoRows
}

// CheckUniqueViolation translates a unique constraint violation into outErr.
func CheckUniqueViolation(inErr, outErr error) error {
	if IsUniqueViolation(inErr) {
		return outErr
	}
	return inErr
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}
