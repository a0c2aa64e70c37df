package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testHappyPath,
		testVersioning,
		testAtomicSave,
		testDeletion,
		testGetAllByOwner,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s account.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1_000,
			Data:     []byte{1, 2, 3},
			Slot:     10,
		}
		cloned := record.Clone()

		_, err := s.Get(ctx, record.Address)
		assert.Equal(t, account.ErrNotFound, err)

		require.NoError(t, s.Save(ctx, record))
		assert.True(t, record.Id > 0)
		assert.EqualValues(t, 1, record.Version)
		assert.True(t, record.CreatedAt.After(start))

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.Equal(t, record.Id, actual.Id)
		assert.EqualValues(t, 1, actual.Version)
		assert.EqualValues(t, 10, actual.Slot)
		assertEquivalentRecords(t, &cloned, actual)

		actual.Lamports = 2_000
		actual.Owner = "new_owner"
		actual.Data = []byte{4, 5, 6, 7}
		actual.Slot = 11
		cloned = actual.Clone()
		require.NoError(t, s.Save(ctx, actual))
		assert.EqualValues(t, 2, actual.Version)

		actual, err = s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 2, actual.Version)
		assert.EqualValues(t, 11, actual.Slot)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testVersioning(t *testing.T, s account.Store) {
	t.Run("testVersioning", func(t *testing.T) {
		ctx := context.Background()

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1_000,
		}
		stale := record.Clone()

		require.NoError(t, s.Save(ctx, record))
		assert.Equal(t, account.ErrAlreadyExists, s.Save(ctx, &stale))

		concurrent := record.Clone()

		record.Lamports = 500
		require.NoError(t, s.Save(ctx, record))

		concurrent.Lamports = 750
		assert.Equal(t, account.ErrStaleVersion, s.Save(ctx, &concurrent))

		actual, err := s.Get(ctx, record.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 500, actual.Lamports)
		assert.EqualValues(t, 2, actual.Version)

		missing := &account.Record{
			Address:  "missing",
			Owner:    "owner",
			Lamports: 1,
			Version:  3,
		}
		assert.Equal(t, account.ErrStaleVersion, s.Save(ctx, missing))

		invalid := &account.Record{
			Address: "invalid",
			Owner:   "owner",
		}
		assert.Error(t, s.Save(ctx, invalid))
	})
}

func testAtomicSave(t *testing.T, s account.Store) {
	t.Run("testAtomicSave", func(t *testing.T) {
		ctx := context.Background()

		existing := &account.Record{
			Address:  "existing",
			Owner:    "owner",
			Lamports: 100,
		}
		require.NoError(t, s.Save(ctx, existing))

		created := &account.Record{
			Address:  "created",
			Owner:    "owner",
			Lamports: 200,
		}
		conflicting := existing.Clone()
		conflicting.Version = 0
		assert.Equal(t, account.ErrAlreadyExists, s.Save(ctx, created, &conflicting))

		_, err := s.Get(ctx, created.Address)
		assert.Equal(t, account.ErrNotFound, err)

		updated := existing.Clone()
		updated.Lamports = 50
		created = &account.Record{
			Address:  "created",
			Owner:    "owner",
			Lamports: 250,
		}
		require.NoError(t, s.Save(ctx, &updated, created))

		actual, err := s.Get(ctx, existing.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 50, actual.Lamports)

		actual, err = s.Get(ctx, created.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 250, actual.Lamports)
	})
}

func testDeletion(t *testing.T, s account.Store) {
	t.Run("testDeletion", func(t *testing.T) {
		ctx := context.Background()

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1_000,
		}

		// A record that was never saved has nothing to delete, whether or not
		// the address is in use
		unsaved := &account.Record{Address: "unsaved", Owner: "owner"}
		assert.EqualError(t, s.Save(ctx, unsaved), "cannot create an account without lamports")
		_, err := s.Get(ctx, unsaved.Address)
		assert.Equal(t, account.ErrNotFound, err)

		require.NoError(t, s.Save(ctx, record))

		shadow := &account.Record{Address: record.Address, Owner: "owner"}
		assert.EqualError(t, s.Save(ctx, shadow), "cannot create an account without lamports")
		assert.Error(t, s.Save(ctx, &account.Record{Address: "other", Owner: "owner", Lamports: 5}, unsaved))
		_, err = s.Get(ctx, "other")
		assert.Equal(t, account.ErrNotFound, err)

		stale := record.Clone()
		stale.Version = 10
		stale.Lamports = 0
		assert.Equal(t, account.ErrStaleVersion, s.Save(ctx, &stale))

		_, err = s.Get(ctx, record.Address)
		require.NoError(t, err)

		record.Lamports = 0
		require.NoError(t, s.Save(ctx, record))

		_, err = s.Get(ctx, record.Address)
		assert.Equal(t, account.ErrNotFound, err)

		recreated := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1,
		}
		require.NoError(t, s.Save(ctx, recreated))
		assert.EqualValues(t, 1, recreated.Version)
	})
}

func testGetAllByOwner(t *testing.T, s account.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "owner1")
		assert.Equal(t, account.ErrNotFound, err)

		records := []*account.Record{
			{Address: "address1", Owner: "owner1", Lamports: 1},
			{Address: "address2", Owner: "owner2", Lamports: 2},
			{Address: "address3", Owner: "owner1", Lamports: 3, Data: []byte{3}},
			{Address: "address4", Owner: "owner1", Lamports: 4, Executable: true},
		}
		for _, record := range records {
			require.NoError(t, s.Save(ctx, record))
		}

		actual, err := s.GetAllByOwner(ctx, "owner1")
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assertEquivalentRecords(t, records[0], actual[0])
		assertEquivalentRecords(t, records[2], actual[1])
		assertEquivalentRecords(t, records[3], actual[2])

		actual, err = s.GetAllByOwner(ctx, "owner2")
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assertEquivalentRecords(t, records[1], actual[0])

		_, err = s.GetAllByOwner(ctx, "owner3")
		assert.Equal(t, account.ErrNotFound, err)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *account.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, obj1.Data, obj2.Data)
	assert.Equal(t, obj1.Executable, obj2.Executable)
}
