package system

import (
	"crypto/ed25519"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// https://explorer.solana.com/address/11111111111111111111111111111111
var SystemAccount = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")

// IsSystemOwned reports whether owner is the system program.
func IsSystemOwned(owner ed25519.PublicKey) bool {
	return len(owner) == 0 || owner.Equal(ed25519.PublicKey(ProgramKey[:]))
}
