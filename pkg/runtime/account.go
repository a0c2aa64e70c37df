package runtime

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
)

// NativeLoader owns every builtin program account.
var NativeLoader = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// Account is the state of a ledger account while a transaction executes.
// Programs mutate accounts in place through the pointer they are handed.
type Account struct {
	Lamports   uint64
	Owner      ed25519.PublicKey
	Data       []byte
	Executable bool
}

// newEmptyAccount returns the state of an address that has never been funded.
func newEmptyAccount() *Account {
	return &Account{
		Owner: make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
}

func newProgramAccount() *Account {
	return &Account{
		Lamports:   1,
		Owner:      NativeLoader,
		Executable: true,
	}
}

func (a *Account) Clone() *Account {
	owner := make(ed25519.PublicKey, len(a.Owner))
	copy(owner, a.Owner)

	var data []byte
	if a.Data != nil {
		data = make([]byte, len(a.Data))
		copy(data, a.Data)
	}

	return &Account{
		Lamports:   a.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: a.Executable,
	}
}

// IsSystemOwned returns whether the system program owns the account.
func (a *Account) IsSystemOwned() bool {
	return system.IsSystemOwned(a.Owner)
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"Account{lamports=%d,owner=%s,data_len=%d,executable=%v}",
		a.Lamports,
		base58.Encode(a.Owner),
		len(a.Data),
		a.Executable,
	)
}

// AccountInfo is an account as seen by a program for a single invocation.
// Accounts referenced more than once in an instruction share one *Account.
type AccountInfo struct {
	Key        ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	*Account
}
