package runtime

import (
	"github.com/pkg/errors"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// instructionError is a runtime defined instruction failure. Programs return
// solana.CustomError for their own failures, and one of these for everything
// the runtime itself understands.
type instructionError struct {
	key solana.InstructionErrorKey
}

func (e instructionError) Error() string {
	return string(e.key)
}

var (
	ErrGenericError                = instructionError{solana.InstructionErrorGenericError}
	ErrInvalidArgument             = instructionError{solana.InstructionErrorInvalidArgument}
	ErrInvalidInstructionData      = instructionError{solana.InstructionErrorInvalidInstructionData}
	ErrInvalidAccountData          = instructionError{solana.InstructionErrorInvalidAccountData}
	ErrMissingRequiredSignature    = instructionError{solana.InstructionErrorMissingRequiredSignature}
	ErrUnbalancedInstruction       = instructionError{solana.InstructionErrorUnbalancedInstruction}
	ErrModifiedProgramID           = instructionError{solana.InstructionErrorModifiedProgramID}
	ErrExternalAccountLamportSpend = instructionError{solana.InstructionErrorExternalAccountLamportSpend}
	ErrExternalAccountDataModified = instructionError{solana.InstructionErrorExternalAccountDataModified}
	ErrReadonlyLamportChange       = instructionError{solana.InstructionErrorReadonlyLamportChange}
	ErrReadonlyDataModified        = instructionError{solana.InstructionErrorReadonlyDataModified}
	ErrExecutableModified          = instructionError{solana.InstructionErrorExecutableModified}
	ErrExecutableDataModified      = instructionError{solana.InstructionErrorExecutableDataModified}
	ErrExecutableLamportChange     = instructionError{solana.InstructionErrorExecutableLamportChange}
	ErrNotEnoughAccountKeys        = instructionError{solana.InstructionErrorNotEnoughAccountKeys}
	ErrAccountDataSizeChanged      = instructionError{solana.InstructionErrorAccountDataSizeChanged}
	ErrUnsupportedProgramID        = instructionError{solana.InstructionErrorUnsupportedProgramID}
	ErrCallDepth                   = instructionError{solana.InstructionErrorCallDepth}
	ErrMissingAccount              = instructionError{solana.InstructionErrorMissingAccount}
	ErrInvalidSeeds                = instructionError{solana.InstructionErrorInvalidSeeds}
	ErrPrivilegeEscalation         = instructionError{solana.InstructionErrorPrivilegeEscalation}
	ErrReentrancyNotAllowed        = instructionError{solana.InstructionErrorReentrancyNotAllowed}
)

// toInstructionError maps an error returned while processing the instruction
// at index onto its wire representation. The second return value reports
// whether the error was understood.
func toInstructionError(index int, err error) (*solana.InstructionError, bool) {
	var keyed instructionError
	if errors.As(err, &keyed) {
		return solana.NewInstructionError(index, keyed.key), true
	}

	var custom solana.CustomError
	if errors.As(err, &custom) {
		return solana.NewCustomInstructionError(index, uint32(custom)), true
	}

	return solana.NewInstructionError(index, solana.InstructionErrorGenericError), false
}

// toTransactionError wraps an instruction failure into a transaction error.
func toTransactionError(index int, err error) (*solana.TransactionError, bool) {
	instructionErr, ok := toInstructionError(index, err)

	txErr, convErr := solana.TransactionErrorFromInstructionError(instructionErr)
	if convErr != nil {
		return solana.NewTransactionError(solana.TransactionErrorInternal), false
	}
	return txErr, ok
}
