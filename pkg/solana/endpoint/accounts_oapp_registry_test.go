package endpoint

import (
	"crypto/sha256"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAppRegistry(t *testing.T) {
	hash := sha256.Sum256([]byte("account:OAppRegistry"))
	assert.Equal(t, hash[:8], OAppRegistryDiscriminator)

	expected := &OAppRegistry{
		Delegate: generateKey(t),
		Bump:     254,
	}

	data := expected.Marshal()
	require.Len(t, data, OAppRegistrySize)
	assert.EqualValues(t, 41, OAppRegistrySize)
	assert.Equal(t, OAppRegistryDiscriminator, data[:8])
	assert.EqualValues(t, 254, data[40])

	var actual OAppRegistry
	require.NoError(t, actual.Unmarshal(data))
	assert.EqualValues(t, expected.Delegate, actual.Delegate)
	assert.Equal(t, expected.Bump, actual.Bump)

	cloned := actual.Clone()
	cloned.Delegate[0] ^= 0xff
	assert.NotEqual(t, cloned.Delegate, actual.Delegate)

	assert.Equal(t, "OAppRegistry{delegate="+base58.Encode(expected.Delegate)+",bump=254}", expected.String())
}

func TestOAppRegistry_Invalid(t *testing.T) {
	var registry OAppRegistry

	assert.Equal(t, ErrInvalidAccountData, registry.Unmarshal(nil))
	assert.Equal(t, ErrInvalidAccountData, registry.Unmarshal(make([]byte, OAppRegistrySize-1)))
	assert.Equal(t, ErrInvalidAccountData, registry.Unmarshal(make([]byte, OAppRegistrySize)))
}

func TestAnchorError(t *testing.T) {
	assert.EqualValues(t, 2006, ConstraintSeeds)
	assert.Equal(t, "ConstraintSeeds", ConstraintSeeds.Error())
	assert.Equal(t, "AnchorError(42)", AnchorError(42).Error())
}
