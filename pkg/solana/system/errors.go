package system

import "fmt"

// SystemError is the custom error code space of the system program.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L17
type SystemError uint32

const (
	ErrorAccountAlreadyInUse SystemError = iota
	ErrorResultWithNegativeLamports
	ErrorInvalidProgramId
	ErrorInvalidAccountDataLength
	ErrorMaxSeedLengthExceeded
	ErrorAddressWithSeedMismatch
	ErrorNonceNoRecentBlockhashes
	ErrorNonceBlockhashNotExpired
	ErrorNonceUnexpectedBlockhashValue
)

var systemErrorNames = map[SystemError]string{
	ErrorAccountAlreadyInUse:           "an account with the same address already exists",
	ErrorResultWithNegativeLamports:    "account does not have enough SOL to perform the operation",
	ErrorInvalidProgramId:              "cannot assign account to this program id",
	ErrorInvalidAccountDataLength:      "cannot allocate account data of this length",
	ErrorMaxSeedLengthExceeded:         "length of requested seed is too long",
	ErrorAddressWithSeedMismatch:       "provided address does not match addressed derived from seed",
	ErrorNonceNoRecentBlockhashes:      "advancing stored nonce requires a populated RecentBlockhashes sysvar",
	ErrorNonceBlockhashNotExpired:      "stored nonce is still in recent_blockhashes",
	ErrorNonceUnexpectedBlockhashValue: "specified nonce does not match stored nonce",
}

func (e SystemError) Error() string {
	if name, ok := systemErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown system error: %d", uint32(e))
}
