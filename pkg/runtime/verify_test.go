package runtime

import (
	"crypto/ed25519"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/endpoint-mock/pkg/testutil"
)

func TestVerify_OwnerChange(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	program, newOwner, stranger := keys[0], keys[1], keys[2]

	for _, tc := range []struct {
		name       string
		account    *Account
		isWritable bool
		expected   error
	}{
		{
			name:       "owner with zeroed data",
			account:    &Account{Lamports: 1, Owner: program, Data: make([]byte, 4)},
			isWritable: true,
		},
		{
			name:       "owner with data",
			account:    &Account{Lamports: 1, Owner: program, Data: []byte{1}},
			isWritable: true,
			expected:   ErrModifiedProgramID,
		},
		{
			name:     "readonly",
			account:  &Account{Lamports: 1, Owner: program},
			expected: ErrModifiedProgramID,
		},
		{
			name:       "not owner",
			account:    &Account{Lamports: 1, Owner: stranger},
			isWritable: true,
			expected:   ErrModifiedProgramID,
		},
		{
			name:       "executable",
			account:    &Account{Lamports: 1, Owner: program, Executable: true},
			isWritable: true,
			expected:   ErrModifiedProgramID,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info := &AccountInfo{Key: keys[0], IsWritable: tc.isWritable, Account: tc.account}
			pres := snapshot([]*AccountInfo{info})

			info.Owner = ed25519.PublicKey(append([]byte{}, newOwner...))

			assert.Equal(t, tc.expected, verifyAccounts(program, pres))
		})
	}
}

func TestVerify_DataChanges(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	program, other := keys[0], keys[1]

	for _, tc := range []struct {
		name       string
		account    *Account
		isWritable bool
		mutate     func(a *Account)
		expected   error
	}{
		{
			name:       "owner writes",
			account:    &Account{Owner: program, Data: []byte{0}},
			isWritable: true,
			mutate:     func(a *Account) { a.Data[0] = 1 },
		},
		{
			name:       "owner resizes",
			account:    &Account{Owner: program, Data: []byte{0}},
			isWritable: true,
			mutate:     func(a *Account) { a.Data = append(a.Data, 1) },
		},
		{
			name:       "external write",
			account:    &Account{Owner: other, Data: []byte{0}},
			isWritable: true,
			mutate:     func(a *Account) { a.Data[0] = 1 },
			expected:   ErrExternalAccountDataModified,
		},
		{
			name:     "readonly write",
			account:  &Account{Owner: program, Data: []byte{0}},
			mutate:   func(a *Account) { a.Data[0] = 1 },
			expected: ErrReadonlyDataModified,
		},
		{
			name:       "external resize",
			account:    &Account{Owner: other, Data: []byte{0}},
			isWritable: true,
			mutate:     func(a *Account) { a.Data = nil },
			expected:   ErrAccountDataSizeChanged,
		},
		{
			name:       "executable write",
			account:    &Account{Owner: program, Data: []byte{0}, Executable: true},
			isWritable: true,
			mutate:     func(a *Account) { a.Data[0] = 1 },
			expected:   ErrExecutableDataModified,
		},
		{
			name:       "executable flag",
			account:    &Account{Owner: program},
			isWritable: true,
			mutate:     func(a *Account) { a.Executable = true },
			expected:   ErrExecutableModified,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			info := &AccountInfo{Key: keys[0], IsWritable: tc.isWritable, Account: tc.account}
			pres := snapshot([]*AccountInfo{info})

			tc.mutate(info.Account)

			assert.Equal(t, tc.expected, verifyAccounts(program, pres))
		})
	}
}

func TestVerify_LamportChanges(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 4)
	program, other := keys[0], keys[1]

	owned := &AccountInfo{Key: keys[2], IsWritable: true, Account: &Account{Lamports: 10, Owner: program}}
	external := &AccountInfo{Key: keys[3], IsWritable: true, Account: &Account{Lamports: 10, Owner: other}}

	// Owner may debit, anyone may credit
	pres := snapshot([]*AccountInfo{owned, external})
	owned.Lamports -= 5
	external.Lamports += 5
	assert.NoError(t, verifyAccounts(program, pres))

	pres = snapshot([]*AccountInfo{owned, external})
	owned.Lamports += 5
	external.Lamports -= 5
	assert.Equal(t, ErrExternalAccountLamportSpend, verifyAccounts(program, pres))

	pres = snapshot([]*AccountInfo{owned})
	owned.Lamports += 1
	assert.Equal(t, ErrUnbalancedInstruction, verifyAccounts(program, pres))

	readonly := &AccountInfo{Key: keys[3], Account: &Account{Lamports: 10, Owner: program}}
	pres = snapshot([]*AccountInfo{readonly})
	readonly.Lamports = 11
	assert.Equal(t, ErrReadonlyLamportChange, verifyAccounts(program, pres))

	executable := &AccountInfo{Key: keys[3], IsWritable: true, Account: &Account{Lamports: 10, Owner: program, Executable: true}}
	pres = snapshot([]*AccountInfo{executable})
	executable.Lamports = 11
	assert.Equal(t, ErrExecutableLamportChange, verifyAccounts(program, pres))

	huge := &AccountInfo{Key: keys[2], IsWritable: true, Account: &Account{Lamports: math.MaxUint64, Owner: program}}
	small := &AccountInfo{Key: keys[3], IsWritable: true, Account: &Account{Lamports: 1, Owner: program}}
	pres = snapshot([]*AccountInfo{huge, small})
	assert.Equal(t, ErrUnbalancedInstruction, verifyAccounts(program, pres))
}

func TestSnapshot_MergesDuplicates(t *testing.T) {
	key := testutil.GenerateSolanaKeys(t, 1)[0]
	acct := &Account{Lamports: 1, Owner: key}

	pres := snapshot([]*AccountInfo{
		{Key: key, Account: acct},
		{Key: key, IsWritable: true, Account: acct},
	})

	assert.Len(t, pres, 1)
	assert.True(t, pres[0].isWritable)
}
