package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// AssertTransactionError verifies that the provided error is a transaction
// error with the provided key.
func AssertTransactionError(t *testing.T, err error, key solana.TransactionErrorKey) {
	require.Error(t, err)
	txErr, ok := err.(*solana.TransactionError)
	require.True(t, ok, "expected *solana.TransactionError, got %T: %v", err, err)
	assert.Equal(t, key, txErr.ErrorKey())
}

// AssertInstructionError verifies that the provided error is a transaction
// error caused by the instruction at index failing with key.
func AssertInstructionError(t *testing.T, err error, index int, key solana.InstructionErrorKey) {
	AssertTransactionError(t, err, solana.TransactionErrorInstructionError)

	instructionErr := err.(*solana.TransactionError).InstructionError()
	require.NotNil(t, instructionErr)
	assert.Equal(t, index, instructionErr.Index)
	assert.Equal(t, key, instructionErr.ErrorKey())
}

// AssertCustomError verifies that the provided error is a transaction error
// caused by the instruction at index failing with a program defined code.
func AssertCustomError(t *testing.T, err error, index int, code uint32) {
	AssertInstructionError(t, err, index, solana.InstructionErrorCustom)

	custom := err.(*solana.TransactionError).InstructionError().CustomError()
	require.NotNil(t, custom)
	assert.EqualValues(t, code, *custom)
}
