package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor(t *testing.T) {
	require.NoError(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool {
		return true
	}))

	var calls int
	require.NoError(t, WaitFor(time.Second, time.Millisecond, func() bool {
		calls++
		return calls >= 3
	}))
	assert.Equal(t, 3, calls)

	require.Error(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool {
		return false
	}))

	require.Error(t, WaitFor(50*time.Millisecond, 100*time.Millisecond, func() bool {
		return true
	}))
}
