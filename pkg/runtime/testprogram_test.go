package runtime

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"

	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
)

var testProgramID = func() ed25519.PublicKey {
	h := sha256.Sum256([]byte("runtime-test-program"))
	return h[:]
}()

const (
	testCommandSetByte byte = iota
	testCommandMoveLamports
	testCommandMint
	testCommandCreateVault
	testCommandRecurse
	testCommandFail
	testCommandTakeOwnership
	testCommandTransferUnsigned
)

const testCustomErrorCode = 42

var testVaultSeed = []byte("vault")

// testProgram deliberately misbehaves on request so the runtime's checks can
// be exercised.
var testProgram = ProgramFunc(func(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstructionData
	}

	switch data[0] {
	case testCommandSetByte:
		if len(accounts) < 1 || len(data) != 2 {
			return ErrNotEnoughAccountKeys
		}
		if len(accounts[0].Data) == 0 {
			return ErrInvalidAccountData
		}
		accounts[0].Data[0] = data[1]

	case testCommandMoveLamports:
		if len(accounts) < 2 || len(data) != 9 {
			return ErrNotEnoughAccountKeys
		}
		amount := binary.LittleEndian.Uint64(data[1:])
		accounts[0].Lamports -= amount
		accounts[1].Lamports += amount

	case testCommandMint:
		accounts[0].Lamports++

	case testCommandCreateVault:
		if len(accounts) < 3 {
			return ErrNotEnoughAccountKeys
		}
		payer, vault := accounts[0], accounts[1]

		address, bump, err := solana.FindProgramAddressAndBump(ic.ProgramID(), testVaultSeed, payer.Key)
		if err != nil {
			return err
		}
		if !bytes.Equal(address, vault.Key) {
			return ErrInvalidSeeds
		}

		err = ic.Invoke(
			system.CreateAccount(payer.Key, vault.Key, ic.ProgramID(), ic.Rent().MinimumBalance(8), 8),
			[][]byte{testVaultSeed, payer.Key, {bump}},
		)
		if err != nil {
			return err
		}

		vault.Data[0] = 1

	case testCommandRecurse:
		return ic.Invoke(solana.NewInstruction(
			ic.ProgramID(),
			[]byte{testCommandRecurse},
			solana.NewReadonlyAccountMeta(ic.ProgramID(), false),
		))

	case testCommandFail:
		return solana.CustomError(testCustomErrorCode)

	case testCommandTakeOwnership:
		accounts[0].Owner = ic.ProgramID()

	case testCommandTransferUnsigned:
		if len(accounts) < 3 {
			return ErrNotEnoughAccountKeys
		}
		return ic.Invoke(system.Transfer(accounts[0].Key, accounts[1].Key, 1))

	default:
		return ErrInvalidInstructionData
	}

	return nil
})

func testInstruction(data []byte, accounts ...solana.AccountMeta) solana.Instruction {
	return solana.NewInstruction(testProgramID, data, accounts...)
}

func moveLamportsData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = testCommandMoveLamports
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}
