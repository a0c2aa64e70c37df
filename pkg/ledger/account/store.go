package account

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("account record not found")
	ErrAlreadyExists = errors.New("account record already exists")
	ErrStaleVersion  = errors.New("account record version is stale")
)

type Store interface {
	// Get finds the account record for a given address
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, address string) (*Record, error)

	// GetAllByOwner gets all account records owned by a program
	//
	// Returns ErrNotFound if no record is found.
	GetAllByOwner(ctx context.Context, owner string) ([]*Record, error)

	// Save atomically writes a batch of account records. Either every record
	// is written or none are.
	//
	// A record with a zero version must not already exist, otherwise
	// ErrAlreadyExists is returned. Any other record must match the stored
	// version, otherwise ErrStaleVersion is returned. Records with zero
	// lamports are deleted. On success, the version of each written record is
	// incremented.
	Save(ctx context.Context, records ...*Record) error
}
