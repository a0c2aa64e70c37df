package endpoint

import "fmt"

// AnchorError is the framework error code space the program reports
// through solana.CustomError.
//
// Reference: https://github.com/coral-xyz/anchor/blob/v0.29.0/lang/src/error.rs
type AnchorError uint32

const (
	// 8 byte instruction identifier not provided
	InstructionMissing AnchorError = 100

	// Fallback functions are not supported
	InstructionFallbackNotFound AnchorError = 101

	// The program could not deserialize the given instruction
	InstructionDidNotDeserialize AnchorError = 102

	// A mut constraint was violated
	ConstraintMut AnchorError = 2000

	// A seeds constraint was violated
	ConstraintSeeds AnchorError = 2006

	// Not enough account keys given to the instruction
	AccountNotEnoughKeys AnchorError = 3005

	// Program ID was not as expected
	InvalidProgramId AnchorError = 3008

	// The given account did not sign
	AccountNotSigner AnchorError = 3010
)

func (e AnchorError) Error() string {
	switch e {
	case InstructionMissing:
		return "InstructionMissing"
	case InstructionFallbackNotFound:
		return "InstructionFallbackNotFound"
	case InstructionDidNotDeserialize:
		return "InstructionDidNotDeserialize"
	case ConstraintMut:
		return "ConstraintMut"
	case ConstraintSeeds:
		return "ConstraintSeeds"
	case AccountNotEnoughKeys:
		return "AccountNotEnoughKeys"
	case InvalidProgramId:
		return "InvalidProgramId"
	case AccountNotSigner:
		return "AccountNotSigner"
	}
	return fmt.Sprintf("AnchorError(%d)", uint32(e))
}
