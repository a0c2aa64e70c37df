package pg

import (
	"context"
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/code-payments/endpoint-mock/pkg/retry"
)

// maxSerializationAttempts bounds how many times a transaction aborted by a
// serialization failure is run.
const maxSerializationAttempts = 5

// ExecuteInTx runs fn inside a single transaction, committing when fn
// succeeds and rolling back otherwise. Transactions aborted with a
// serialization failure are replayed from the start.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted // Postgres default
	}

	_, err := retry.Retry(
		func() error {
			return executeOnce(ctx, db, isolation, fn)
		},
		retry.Limit(maxSerializationAttempts),
		retry.RetriableIf(IsSerializationFailure),
	)
	return err
}

func executeOnce(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: isolation,
	})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		// Rollback is required for sql.DB to release the connection
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

// IsSerializationFailure reports whether err was caused by a transaction
// that Postgres aborted to preserve serializability.
func IsSerializationFailure(err error) bool {
	return hasCode(err, pgerrcode.SerializationFailure)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
