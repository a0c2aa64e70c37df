package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

var ProgramKey [32]byte

// MaxPermittedDataLength is the largest account allocation the system
// program accepts.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L85
const MaxPermittedDataLength = 10 * 1024 * 1024

type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
	CommandCreateAccountWithSeed
	CommandAdvanceNonceAccount
	CommandWithdrawNonceAccount
	CommandInitializeNonceAccount
	CommandAuthorizeNonceAccount
	CommandAllocate
	CommandAllocateWithSeed
	CommandAssignWithSeed
	CommandTransferWithSeed
)

var (
	ErrInvalidInstructionData = errors.New("invalid system instruction data")
	ErrUnsupportedCommand     = errors.New("unsupported system command")
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   // Number of lamports to transfer to the new account
	//   lamports: u64,
	//   // Number of bytes of memory to allocate
	//   space: u64,
	//
	//   //Address of program that will own the new account
	//   owner: Pubkey,
	// }
	//
	data := make([]byte, 4+2*8+32)
	binary.LittleEndian.PutUint32(data, uint32(CommandCreateAccount))
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer moves lamports between two accounts.
//
//	0. [WRITE, SIGNER] Funding account
//	1. [WRITE] Recipient account
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, uint32(CommandTransfer))
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

// Allocate sets the data length of an unowned, empty account.
//
//	0. [WRITE, SIGNER] New account
func Allocate(address ed25519.PublicKey, size uint64) solana.Instruction {
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, uint32(CommandAllocate))
	binary.LittleEndian.PutUint64(data[4:], size)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// Assign changes the owner of a system owned account.
//
//	0. [WRITE, SIGNER] Assigned account
func Assign(address, owner ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 4+32)
	binary.LittleEndian.PutUint32(data, uint32(CommandAssign))
	copy(data[4:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(address, true),
	)
}

// DecodedInstruction is the parsed instruction data of a supported system
// command. Fields not carried by the command are left zero.
type DecodedInstruction struct {
	Command  Command
	Lamports uint64
	Space    uint64
	Owner    ed25519.PublicKey
}

// DecodeInstructionData parses raw system program instruction data.
func DecodeInstructionData(data []byte) (*DecodedInstruction, error) {
	if len(data) < 4 {
		return nil, ErrInvalidInstructionData
	}

	decoded := &DecodedInstruction{
		Command: Command(binary.LittleEndian.Uint32(data)),
	}
	body := data[4:]

	switch decoded.Command {
	case CommandCreateAccount:
		if len(body) != 2*8+32 {
			return nil, ErrInvalidInstructionData
		}
		decoded.Lamports = binary.LittleEndian.Uint64(body)
		decoded.Space = binary.LittleEndian.Uint64(body[8:])
		decoded.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(decoded.Owner, body[16:])
	case CommandAssign:
		if len(body) != 32 {
			return nil, ErrInvalidInstructionData
		}
		decoded.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(decoded.Owner, body)
	case CommandTransfer:
		if len(body) != 8 {
			return nil, ErrInvalidInstructionData
		}
		decoded.Lamports = binary.LittleEndian.Uint64(body)
	case CommandAllocate:
		if len(body) != 8 {
			return nil, ErrInvalidInstructionData
		}
		decoded.Space = binary.LittleEndian.Uint64(body)
	default:
		return nil, ErrUnsupportedCommand
	}

	return decoded, nil
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(CommandCreateAccount))
	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return nil, solana.ErrIncorrectInstruction
	}

	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 52 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	decoded, err := DecodeInstructionData(i.Data)
	if err != nil {
		return nil, err
	}

	return &DecompiledCreateAccount{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Lamports: decoded.Lamports,
		Size:     decoded.Space,
		Owner:    decoded.Owner,
	}, nil
}
