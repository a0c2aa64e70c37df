package endpoint

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

var RegisterOAppInstructionDiscriminator = []byte{
	0x81, 0x59, 0x47, 0x44, 0x0b, 0x52, 0xd2, 0x7d,
}

const (
	RegisterOAppInstructionArgsSize = 32 // delegate
)

type RegisterOAppInstructionArgs struct {
	Delegate ed25519.PublicKey
}

type RegisterOAppInstructionAccounts struct {
	Payer        ed25519.PublicKey
	OApp         ed25519.PublicKey
	OAppRegistry ed25519.PublicKey
}

func NewRegisterOAppInstruction(
	accounts *RegisterOAppInstructionAccounts,
	args *RegisterOAppInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte,
		len(RegisterOAppInstructionDiscriminator)+
			RegisterOAppInstructionArgsSize)

	putDiscriminator(data, RegisterOAppInstructionDiscriminator, &offset)
	putKey(data, args.Delegate, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.OApp,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.OAppRegistry,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

// IsRegisterOAppInstruction reports whether the instruction data carries
// the register_oapp discriminator.
func IsRegisterOAppInstruction(data []byte) bool {
	return len(data) >= len(RegisterOAppInstructionDiscriminator) &&
		bytes.Equal(data[:len(RegisterOAppInstructionDiscriminator)], RegisterOAppInstructionDiscriminator)
}

// Unmarshal decodes the arguments following the discriminator. Trailing
// bytes are ignored, matching Borsh deserialization of instruction data.
func (obj *RegisterOAppInstructionArgs) Unmarshal(data []byte) error {
	if !IsRegisterOAppInstruction(data) {
		return ErrInvalidInstructionData
	}
	if len(data) < len(RegisterOAppInstructionDiscriminator)+RegisterOAppInstructionArgsSize {
		return ErrInvalidInstructionData
	}

	offset := len(RegisterOAppInstructionDiscriminator)
	getKey(data, &obj.Delegate, &offset)

	return nil
}
