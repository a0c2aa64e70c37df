package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed account.Store
func New(db *sql.DB) account.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address string) (*account.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string) ([]*account.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}

	res := make([]*account.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// Save implements account.Store.Save
func (s *store) Save(ctx context.Context, records ...*account.Record) error {
	models := make([]*model, len(records))
	for i, record := range records {
		obj, err := toModel(record)
		if err != nil {
			return err
		}
		models[i] = obj
	}

	if err := dbSave(ctx, s.db, models); err != nil {
		return err
	}

	for i, record := range records {
		if record.IsDeletion() {
			continue
		}

		res := fromModel(models[i])
		res.CopyTo(record)
	}

	return nil
}
