package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

func TestStatusCache(t *testing.T) {
	c := newStatusCache(10)

	sig := solana.Signature{1}

	_, ok := c.get(sig)
	assert.False(t, ok)

	require.True(t, c.reserve(sig))
	assert.False(t, c.reserve(sig))

	// Pending signatures aren't visible
	_, ok = c.get(sig)
	assert.False(t, ok)

	txErr := solana.NewTransactionError(solana.TransactionErrorAccountInUse)
	c.record(sig, SignatureStatus{Slot: 5, Err: txErr})

	status, ok := c.get(sig)
	require.True(t, ok)
	assert.EqualValues(t, 5, status.Slot)
	assert.Equal(t, txErr, status.Err)
	assert.False(t, c.reserve(sig))
}

func TestStatusCache_Release(t *testing.T) {
	c := newStatusCache(10)

	sig := solana.Signature{2}

	require.True(t, c.reserve(sig))
	c.release(sig)
	assert.True(t, c.reserve(sig))
}

func TestStatusCache_RecordWithoutReservation(t *testing.T) {
	c := newStatusCache(10)

	sig := solana.Signature{3}
	c.record(sig, SignatureStatus{Slot: 1})

	status, ok := c.get(sig)
	require.True(t, ok)
	assert.EqualValues(t, 1, status.Slot)
	assert.Nil(t, status.Err)
}
