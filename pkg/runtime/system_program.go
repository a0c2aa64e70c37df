package runtime

import (
	"bytes"
	"crypto/ed25519"
	"math/bits"

	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
)

// SystemProgram is the builtin program that creates accounts, moves lamports
// and hands accounts over to other programs.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/programs/system/src/system_processor.rs
var SystemProgram Program = ProgramFunc(processSystemInstruction)

func processSystemInstruction(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	decoded, err := system.DecodeInstructionData(data)
	if err != nil {
		return ErrInvalidInstructionData
	}

	switch decoded.Command {
	case system.CommandCreateAccount:
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return createAccount(accounts[0], accounts[1], decoded.Lamports, decoded.Space, decoded.Owner)

	case system.CommandAssign:
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return assign(accounts[0], decoded.Owner)

	case system.CommandTransfer:
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return transfer(accounts[0], accounts[1], decoded.Lamports)

	case system.CommandAllocate:
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		return allocate(accounts[0], decoded.Space)
	}

	return ErrInvalidInstructionData
}

func createAccount(from, to *AccountInfo, lamports, space uint64, owner ed25519.PublicKey) error {
	if to.Lamports > 0 {
		return solana.CustomError(system.ErrorAccountAlreadyInUse)
	}

	if err := allocate(to, space); err != nil {
		return err
	}
	if err := assign(to, owner); err != nil {
		return err
	}
	return transfer(from, to, lamports)
}

func allocate(account *AccountInfo, space uint64) error {
	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}

	if len(account.Data) > 0 || !account.IsSystemOwned() {
		return solana.CustomError(system.ErrorAccountAlreadyInUse)
	}

	if space > system.MaxPermittedDataLength {
		return solana.CustomError(system.ErrorInvalidAccountDataLength)
	}

	account.Data = make([]byte, space)
	return nil
}

func assign(account *AccountInfo, owner ed25519.PublicKey) error {
	if bytes.Equal(account.Owner, owner) {
		return nil
	}

	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}

	account.Owner = make(ed25519.PublicKey, len(owner))
	copy(account.Owner, owner)
	return nil
}

func transfer(from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return ErrMissingRequiredSignature
	}

	if len(from.Data) > 0 {
		return ErrInvalidArgument
	}

	if lamports > from.Lamports {
		return solana.CustomError(system.ErrorResultWithNegativeLamports)
	}

	if _, carry := bits.Add64(to.Lamports, lamports, 0); carry != 0 {
		return ErrInvalidArgument
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
