package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRent_MinimumBalance(t *testing.T) {
	assert.EqualValues(t, 890_880, DefaultRent.MinimumBalance(0))
	assert.EqualValues(t, 1_176_240, DefaultRent.MinimumBalance(41))

	assert.True(t, DefaultRent.IsExempt(1_176_240, 41))
	assert.False(t, DefaultRent.IsExempt(1_176_239, 41))

	free := Rent{LamportsPerByteYear: 0, ExemptionThreshold: 2}
	assert.True(t, free.IsExempt(0, 1024))
}
