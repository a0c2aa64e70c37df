package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// MaxInvokeDepth bounds the program call stack, including the top level
// instruction.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/instruction.rs#L197
const MaxInvokeDepth = 4

// executionContext is shared by every frame of a single transaction.
type executionContext struct {
	ctx      context.Context
	log      *logrus.Entry
	programs map[string]Program
	rent     Rent
	slot     uint64
}

// InvokeContext is a program's view of the runtime for a single invocation.
type InvokeContext struct {
	exec   *executionContext
	parent *InvokeContext

	program  ed25519.PublicKey
	depth    int
	accounts []*AccountInfo
	pre      []*preAccount
}

// Context returns the context of the transaction being processed.
func (ic *InvokeContext) Context() context.Context {
	return ic.exec.ctx
}

// ProgramID returns the address of the executing program.
func (ic *InvokeContext) ProgramID() ed25519.PublicKey {
	return ic.program
}

// Depth returns the call stack depth, starting at 1 for top level instructions.
func (ic *InvokeContext) Depth() int {
	return ic.depth
}

func (ic *InvokeContext) Slot() uint64 {
	return ic.exec.slot
}

func (ic *InvokeContext) Rent() Rent {
	return ic.exec.rent
}

// Logger returns a log entry scoped to the executing program.
func (ic *InvokeContext) Logger() *logrus.Entry {
	return ic.exec.log.WithField("program", base58.Encode(ic.program))
}

// Invoke calls another program with a subset of this invocation's accounts.
//
// Accounts keep the privileges they were granted to the caller. An account
// may additionally sign if it is the program address derived from the
// caller's program id and one of signerSeeds.
func (ic *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}

	if _, ok := ic.lookup(ix.Program); !ok {
		return ErrMissingAccount
	}
	if ic.isReentrant(ix.Program) {
		return ErrReentrancyNotAllowed
	}

	pdaSigners := make(map[string]struct{})
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(ic.program, seeds...)
		if err != nil {
			return ErrInvalidSeeds
		}
		pdaSigners[string(pda)] = struct{}{}
	}

	callee := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		caller, ok := ic.lookup(meta.PublicKey)
		if !ok {
			return ErrMissingAccount
		}

		if meta.IsWritable && !caller.IsWritable {
			return ErrPrivilegeEscalation
		}

		if meta.IsSigner && !caller.IsSigner {
			if _, ok := pdaSigners[string(meta.PublicKey)]; !ok {
				return ErrMissingRequiredSignature
			}
		}

		callee[i] = &AccountInfo{
			Key:        caller.Key,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    caller.Account,
		}
	}

	// The caller's changes so far must hold up before the callee sees them
	if err := verifyAccounts(ic.program, ic.pre); err != nil {
		return err
	}

	if err := ic.exec.process(ic, ix.Program, callee, ix.Data); err != nil {
		return err
	}

	ic.pre = snapshot(ic.accounts)
	return nil
}

// lookup returns the caller's account for key, with the privileges of every
// reference to it merged.
func (ic *InvokeContext) lookup(key ed25519.PublicKey) (*AccountInfo, bool) {
	var merged *AccountInfo
	for _, info := range ic.accounts {
		if !bytes.Equal(info.Key, key) {
			continue
		}

		if merged == nil {
			merged = &AccountInfo{
				Key:     info.Key,
				Account: info.Account,
			}
		}
		merged.IsSigner = merged.IsSigner || info.IsSigner
		merged.IsWritable = merged.IsWritable || info.IsWritable
	}

	return merged, merged != nil
}

// isReentrant returns whether program is already on the call stack, other
// than as the immediate caller.
func (ic *InvokeContext) isReentrant(program ed25519.PublicKey) bool {
	if bytes.Equal(ic.program, program) {
		return false
	}

	for frame := ic.parent; frame != nil; frame = frame.parent {
		if bytes.Equal(frame.program, program) {
			return true
		}
	}
	return false
}

// process runs program as a new frame on top of parent, which is nil for top
// level instructions, and verifies the changes it made.
func (e *executionContext) process(parent *InvokeContext, program ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	handler, ok := e.programs[string(program)]
	if !ok {
		return ErrUnsupportedProgramID
	}

	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}

	ic := &InvokeContext{
		exec:     e,
		parent:   parent,
		program:  program,
		depth:    depth,
		accounts: accounts,
		pre:      snapshot(accounts),
	}

	if err := handler.Process(ic, accounts, data); err != nil {
		return err
	}

	return verifyAccounts(program, ic.pre)
}
