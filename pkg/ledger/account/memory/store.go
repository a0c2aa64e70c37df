package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records map[string]*account.Record
}

// New returns a new in memory account.Store
func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[address]
	if !ok {
		return nil, account.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string) ([]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.findByOwner(owner)
	if len(items) == 0 {
		return nil, account.ErrNotFound
	}
	return cloneSlice(items), nil
}

// Save implements account.Store.Save
func (s *store) Save(_ context.Context, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything up front, so a failure leaves the store untouched
	seen := make(map[string]struct{})
	for _, record := range records {
		if _, ok := seen[record.Address]; ok {
			return account.ErrStaleVersion
		}
		seen[record.Address] = struct{}{}

		existing, ok := s.records[record.Address]
		if record.Version == 0 {
			if ok {
				return account.ErrAlreadyExists
			}
			continue
		}

		if !ok || existing.Version != record.Version {
			return account.ErrStaleVersion
		}
	}

	now := time.Now()
	for _, record := range records {
		if record.IsDeletion() {
			delete(s.records, record.Address)
			continue
		}

		existing, ok := s.records[record.Address]
		if ok {
			record.Id = existing.Id
			record.CreatedAt = existing.CreatedAt
		} else {
			s.last++
			record.Id = s.last
			record.CreatedAt = now
		}
		record.Version++
		record.LastUpdatedAt = now

		cloned := record.Clone()
		s.records[record.Address] = &cloned
	}

	return nil
}

func (s *store) findByOwner(owner string) []*account.Record {
	var res []*account.Record

	for _, item := range s.records {
		if item.Owner == owner {
			res = append(res, item)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Id < res[j].Id
	})

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = make(map[string]*account.Record)
}

func cloneSlice(items []*account.Record) []*account.Record {
	var res []*account.Record
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res
}
