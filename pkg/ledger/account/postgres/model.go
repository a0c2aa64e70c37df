package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
	pgutil "github.com/code-payments/endpoint-mock/pkg/database/postgres"
)

const (
	tableName = "endpointmock__core_account"

	allColumns = "id, address, owner, lamports, data, executable, version, slot, created_at, last_updated_at"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address string `db:"address"`
	Owner   string `db:"owner"`

	Lamports   int64  `db:"lamports"`
	Data       []byte `db:"data"`
	Executable bool   `db:"executable"`

	Version int64 `db:"version"`
	Slot    int64 `db:"slot"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Id: sql.NullInt64{Int64: int64(obj.Id), Valid: obj.Id > 0},

		Address: obj.Address,
		Owner:   obj.Owner,

		Lamports:   int64(obj.Lamports),
		Data:       data,
		Executable: obj.Executable,

		Version: int64(obj.Version),
		Slot:    int64(obj.Slot),

		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *account.Record {
	var data []byte
	if len(obj.Data) > 0 {
		data = obj.Data
	}

	return &account.Record{
		Id: uint64(obj.Id.Int64),

		Address: obj.Address,
		Owner:   obj.Owner,

		Lamports:   uint64(obj.Lamports),
		Data:       data,
		Executable: obj.Executable,

		Version: uint64(obj.Version),
		Slot:    uint64(obj.Slot),

		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func (m *model) txInsert(ctx context.Context, tx *sqlx.Tx, now time.Time) error {
	query := `INSERT INTO ` + tableName + `
		(address, owner, lamports, data, executable, version, slot, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $7)
		RETURNING ` + allColumns

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.Slot,
		now,
	).StructScan(m)
	return pgutil.CheckUniqueViolation(err, account.ErrAlreadyExists)
}

func (m *model) txUpdate(ctx context.Context, tx *sqlx.Tx, now time.Time) error {
	query := `UPDATE ` + tableName + `
		SET owner = $3, lamports = $4, data = $5, executable = $6, version = version + 1, slot = $7, last_updated_at = $8
		WHERE address = $1 AND version = $2
		RETURNING ` + allColumns

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Version,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.Slot,
		now,
	).StructScan(m)
	return pgutil.CheckNoRows(err, account.ErrStaleVersion)
}

func (m *model) txDelete(ctx context.Context, tx *sqlx.Tx) error {
	query := `DELETE FROM ` + tableName + `
		WHERE address = $1 AND version = $2
	`

	res, err := tx.ExecContext(ctx, query, m.Address, m.Version)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	} else if affected == 0 {
		return account.ErrStaleVersion
	}
	return nil
}

func dbSave(ctx context.Context, db *sqlx.DB, models []*model) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		now := time.Now()

		for _, m := range models {
			var err error
			switch {
			case m.Lamports == 0:
				err = m.txDelete(ctx, tx)
			case m.Version == 0:
				err = m.txInsert(ctx, tx, now)
			default:
				err = m.txUpdate(ctx, tx, now)
			}

			if err != nil {
				return err
			}
		}

		return nil
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE address = $1
	`

	err := db.GetContext(ctx, &res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrNotFound)
	}
	return &res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE owner = $1
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query, owner)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrNotFound)
	} else if len(res) == 0 {
		return nil, account.ErrNotFound
	}
	return res, nil
}
