package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
	ErrInstructionNotFound  = errors.New("instruction not found")
)

// AccountMeta represents the account information required
// for building transactions.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// SortableAccountMeta is a sortable []AccountMeta based on the solana transaction
// account sorting rules.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
type SortableAccountMeta []AccountMeta

// Len is the number of elements in the collection.
func (s SortableAccountMeta) Len() int {
	return len(s)
}

// Less reports whether the element with
// index i should sort before the element with index j.
func (s SortableAccountMeta) Less(i int, j int) bool {
	if s[i].isPayer != s[j].isPayer {
		return s[i].isPayer
	}
	if s[i].isProgram != s[j].isProgram {
		return !s[i].isProgram
	}

	if s[i].IsSigner != s[j].IsSigner {
		return s[i].IsSigner
	}
	if s[i].IsWritable != s[j].IsWritable {
		return s[i].IsWritable
	}

	return bytes.Compare(s[i].PublicKey, s[j].PublicKey) < 0
}

// Swap swaps the elements with indexes i and j.
func (s SortableAccountMeta) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction represents an instruction that has been compiled into a transaction.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// DecompileInstruction expands the compiled instruction at index back into
// an Instruction, restoring signer and writable flags from the message header.
func (m Message) DecompileInstruction(index int) (Instruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return Instruction{}, ErrInstructionNotFound
	}

	compiled := m.Instructions[index]
	if int(compiled.ProgramIndex) >= len(m.Accounts) {
		return Instruction{}, ErrIncorrectProgram
	}

	accounts := make([]AccountMeta, len(compiled.Accounts))
	for i, accountIndex := range compiled.Accounts {
		if int(accountIndex) >= len(m.Accounts) {
			return Instruction{}, ErrIncorrectInstruction
		}

		accounts[i] = AccountMeta{
			PublicKey:  m.Accounts[accountIndex],
			IsSigner:   m.IsSigner(int(accountIndex)),
			IsWritable: m.IsWritable(int(accountIndex)),
		}
	}

	return Instruction{
		Program:  m.Accounts[compiled.ProgramIndex],
		Accounts: accounts,
		Data:     compiled.Data,
	}, nil
}

// IsSigner reports whether the static account at index signed the message.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the static account at index is writable.
//
// Reference: https://github.com/solana-labs/solana/blob/7e6ac3e6ae8bafcae6c5bd7ad7d7cb1cf0a8c2a1/sdk/program/src/message/legacy.rs#L556
func (m Message) IsWritable(index int) bool {
	numSigned := int(m.Header.NumSignatures)
	if index < numSigned {
		return index < numSigned-int(m.Header.NumReadonlySigned)
	}

	numUnsigned := len(m.Accounts) - numSigned
	return index-numSigned < numUnsigned-int(m.Header.NumReadOnly)
}
