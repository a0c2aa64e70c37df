package endpoint

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

func TestRegisterOAppInstruction(t *testing.T) {
	hash := sha256.Sum256([]byte("global:register_oapp"))
	assert.Equal(t, hash[:8], RegisterOAppInstructionDiscriminator)

	payer, oapp, delegate := generateKey(t), generateKey(t), generateKey(t)
	registry, _, err := GetOAppRegistryAddress(&GetOAppRegistryAddressArgs{OApp: oapp})
	require.NoError(t, err)

	ixn := NewRegisterOAppInstruction(
		&RegisterOAppInstructionAccounts{
			Payer:        payer,
			OApp:         oapp,
			OAppRegistry: registry,
		},
		&RegisterOAppInstructionArgs{
			Delegate: delegate,
		},
	)

	assert.EqualValues(t, PROGRAM_ID, ixn.Program)
	require.Len(t, ixn.Data, 8+32)
	assert.True(t, IsRegisterOAppInstruction(ixn.Data))

	require.Len(t, ixn.Accounts, 4)
	assert.EqualValues(t, payer, ixn.Accounts[0].PublicKey)
	assert.True(t, ixn.Accounts[0].IsSigner)
	assert.True(t, ixn.Accounts[0].IsWritable)
	assert.EqualValues(t, oapp, ixn.Accounts[1].PublicKey)
	assert.True(t, ixn.Accounts[1].IsSigner)
	assert.False(t, ixn.Accounts[1].IsWritable)
	assert.EqualValues(t, registry, ixn.Accounts[2].PublicKey)
	assert.False(t, ixn.Accounts[2].IsSigner)
	assert.True(t, ixn.Accounts[2].IsWritable)
	assert.EqualValues(t, SYSTEM_PROGRAM_ID, ixn.Accounts[3].PublicKey)
	assert.False(t, ixn.Accounts[3].IsWritable)

	// Survives a trip through the wire format
	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(payer, ixn).Marshal()))
	decompiled, err := tx.Message.DecompileInstruction(0)
	require.NoError(t, err)

	var args RegisterOAppInstructionArgs
	require.NoError(t, args.Unmarshal(decompiled.Data))
	assert.EqualValues(t, delegate, args.Delegate)
}

func TestRegisterOAppInstructionArgs_Invalid(t *testing.T) {
	var args RegisterOAppInstructionArgs

	assert.Equal(t, ErrInvalidInstructionData, args.Unmarshal(nil))
	assert.Equal(t, ErrInvalidInstructionData, args.Unmarshal(RegisterOAppInstructionDiscriminator))
	assert.Equal(t, ErrInvalidInstructionData, args.Unmarshal(make([]byte, 40)))

	assert.False(t, IsRegisterOAppInstruction([]byte{0x81, 0x59}))
}

func generateKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
