package account

import (
	"bytes"
	"math"
	"time"

	"github.com/pkg/errors"
)

type Record struct {
	Id uint64

	Address string
	Owner   string

	Lamports   uint64
	Data       []byte
	Executable bool

	Version uint64
	Slot    uint64

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if r.Lamports > math.MaxInt64 {
		return errors.New("lamports exceeds max supported value")
	}

	if r.Version == 0 && r.Lamports == 0 {
		return errors.New("cannot create an account without lamports")
	}

	return nil
}

// IsDeletion returns whether saving the record removes the account
func (r *Record) IsDeletion() bool {
	return r.Lamports == 0
}

func (r *Record) Clone() Record {
	var data []byte
	if r.Data != nil {
		data = make([]byte, len(r.Data))
		copy(data, r.Data)
	}

	return Record{
		Id: r.Id,

		Address: r.Address,
		Owner:   r.Owner,

		Lamports:   r.Lamports,
		Data:       data,
		Executable: r.Executable,

		Version: r.Version,
		Slot:    r.Slot,

		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	cloned := r.Clone()
	*dst = cloned
}

// Equivalent compares the account state of two records, ignoring bookkeeping
// fields like ids and timestamps.
func (r *Record) Equivalent(other *Record) bool {
	return r.Address == other.Address &&
		r.Owner == other.Owner &&
		r.Lamports == other.Lamports &&
		bytes.Equal(r.Data, other.Data) &&
		r.Executable == other.Executable
}
