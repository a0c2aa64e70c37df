package runtime

import (
	"bytes"
	"crypto/ed25519"
	"math/bits"
)

// preAccount is the state of an account when a program was handed control,
// used to check the program only made changes it was allowed to.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/program-runtime/src/pre_account.rs
type preAccount struct {
	key        ed25519.PublicKey
	isWritable bool

	pre  *Account
	post *Account
}

// snapshot captures the state of every distinct account in accounts. Flags of
// duplicated accounts are merged.
func snapshot(accounts []*AccountInfo) []*preAccount {
	var res []*preAccount
	byKey := make(map[string]*preAccount)

	for _, info := range accounts {
		if existing, ok := byKey[string(info.Key)]; ok {
			existing.isWritable = existing.isWritable || info.IsWritable
			continue
		}

		p := &preAccount{
			key:        info.Key,
			isWritable: info.IsWritable,
			pre:        info.Account.Clone(),
			post:       info.Account,
		}
		byKey[string(info.Key)] = p
		res = append(res, p)
	}

	return res
}

func (p *preAccount) verify(program ed25519.PublicKey) error {
	pre, post := p.pre, p.post
	isOwner := bytes.Equal(program, pre.Owner)

	// Only the owner may assign a new owner, and only once the data is zeroed
	if !bytes.Equal(pre.Owner, post.Owner) {
		if !p.isWritable || pre.Executable || !isOwner || !isZeroed(post.Data) {
			return ErrModifiedProgramID
		}
	}

	if pre.Lamports != post.Lamports {
		if !p.isWritable {
			return ErrReadonlyLamportChange
		}
		if pre.Executable {
			return ErrExecutableLamportChange
		}
	}
	if post.Lamports < pre.Lamports && !isOwner {
		return ErrExternalAccountLamportSpend
	}

	if len(pre.Data) != len(post.Data) && !(p.isWritable && isOwner) {
		return ErrAccountDataSizeChanged
	}

	if !bytes.Equal(pre.Data, post.Data) {
		switch {
		case pre.Executable:
			return ErrExecutableDataModified
		case !p.isWritable:
			return ErrReadonlyDataModified
		case !isOwner:
			return ErrExternalAccountDataModified
		}
	}

	if pre.Executable != post.Executable {
		return ErrExecutableModified
	}

	return nil
}

// verifyAccounts checks every account change made by program, along with the
// lamport total across all accounts.
func verifyAccounts(program ed25519.PublicKey, accounts []*preAccount) error {
	var preTotal, postTotal uint64
	for _, p := range accounts {
		if err := p.verify(program); err != nil {
			return err
		}

		var preCarry, postCarry uint64
		preTotal, preCarry = bits.Add64(preTotal, p.pre.Lamports, 0)
		postTotal, postCarry = bits.Add64(postTotal, p.post.Lamports, 0)
		if preCarry != 0 || postCarry != 0 {
			return ErrUnbalancedInstruction
		}
	}

	if preTotal != postTotal {
		return ErrUnbalancedInstruction
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
