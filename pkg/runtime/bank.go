package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
	"github.com/code-payments/endpoint-mock/pkg/metrics"
	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
	sync_util "github.com/code-payments/endpoint-mock/pkg/sync"
)

const (
	metricsStructName = "runtime.bank"

	transactionDurationMetricName = "Runtime/transaction_duration"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAirdrop  = errors.New("invalid airdrop amount")
	ErrAirdropInUse    = errors.New("airdrop recipient is being modified concurrently")
)

// Bank executes transactions against the account store. Each transaction is
// applied atomically: either every account change commits, or none do.
type Bank struct {
	log   *logrus.Entry
	conf  *conf
	store account.Store
	locks *sync_util.StripedLock

	programsMu sync.RWMutex
	programs   map[string]Program

	stateMu     sync.RWMutex
	slot        uint64
	blockhashes *blockhashQueue

	statuses *statusCache

	faucet         ed25519.PrivateKey
	airdropCounter uint64
}

// NewBank returns a Bank with the system program registered.
func NewBank(store account.Store, configProvider ConfigProvider) (*Bank, error) {
	ctx := context.Background()
	conf := configProvider()

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, errors.Wrap(err, "error generating genesis seed")
	}
	genesis := solana.Blockhash(sha256.Sum256(seed[:]))

	_, faucet, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "error generating faucet key")
	}

	b := &Bank{
		log:         logrus.StandardLogger().WithField("type", "runtime/bank"),
		conf:        conf,
		store:       store,
		locks:       sync_util.NewStripedLock(uint(conf.lockStripes.Get(ctx))),
		programs:    make(map[string]Program),
		blockhashes: newBlockhashQueue(int(conf.maxRecentBlockhashes.Get(ctx)), genesis),
		statuses:    newStatusCache(int(conf.statusCacheSize.Get(ctx))),
		faucet:      faucet,
	}
	b.RegisterProgram(system.ProgramKey[:], SystemProgram)

	return b, nil
}

// RegisterProgram makes program executable at id.
func (b *Bank) RegisterProgram(id ed25519.PublicKey, program Program) {
	b.programsMu.Lock()
	defer b.programsMu.Unlock()

	b.programs[string(id)] = program
}

func (b *Bank) isProgram(id ed25519.PublicKey) bool {
	b.programsMu.RLock()
	defer b.programsMu.RUnlock()

	_, ok := b.programs[string(id)]
	return ok
}

func (b *Bank) getPrograms() map[string]Program {
	b.programsMu.RLock()
	defer b.programsMu.RUnlock()

	programs := make(map[string]Program, len(b.programs))
	for id, program := range b.programs {
		programs[id] = program
	}
	return programs
}

// Rent returns the current rent parameters.
func (b *Bank) Rent(ctx context.Context) Rent {
	return Rent{
		LamportsPerByteYear: b.conf.lamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  b.conf.rentExemptionThreshold.Get(ctx),
	}
}

// AdvanceSlot moves the bank to the next slot, producing a new blockhash.
func (b *Bank) AdvanceSlot() uint64 {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	next := b.slot + 1
	b.blockhashes.register(nextBlockhash(b.blockhashes.latest(), next), next)
	b.slot = next

	return next
}

// Run advances the slot on a fixed interval until ctx is done.
func (b *Bank) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.AdvanceSlot()
		}
	}
}

// ProcessTransaction verifies and executes a signed transaction.
//
// Transaction failures are returned as a *solana.TransactionError. Any other
// error indicates the bank could not process the transaction at all.
func (b *Bank) ProcessTransaction(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()

	sig, err := b.processTransaction(ctx, &txn)
	tracer.OnError(err)

	metrics.RecordDuration(ctx, transactionDurationMetricName, time.Since(start))

	return sig, err
}

func (b *Bank) processTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	if len(txn.Signatures) > 0 {
		sig = txn.Signatures[0]
	}

	log := b.log.WithFields(logrus.Fields{
		"method":    "ProcessTransaction",
		"signature": sig.String(),
	})

	if txErr := sanitize(txn); txErr != nil {
		return sig, txErr
	}

	if err := txn.VerifySignatures(); err != nil {
		log.WithError(err).Debug("transaction failed signature verification")
		return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	b.stateMu.RLock()
	slot := b.slot
	isBlockhashValid := b.blockhashes.isValid(txn.Message.RecentBlockhash)
	b.stateMu.RUnlock()

	if !isBlockhashValid {
		return sig, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	if !b.statuses.reserve(sig) {
		return sig, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	programs := b.getPrograms()
	for _, instruction := range txn.Message.Instructions {
		if _, ok := programs[string(txn.Message.Accounts[instruction.ProgramIndex])]; !ok {
			b.statuses.release(sig)
			return sig, solana.NewTransactionError(solana.TransactionErrorInvalidProgramForExecution)
		}
	}

	unlock := b.lockAccounts(txn, programs)
	defer unlock()

	loaded, err := b.loadAccounts(ctx, txn, programs)
	if err != nil {
		b.statuses.release(sig)
		return sig, err
	}

	rent := b.Rent(ctx)
	exec := &executionContext{
		ctx:      ctx,
		log:      log,
		programs: programs,
		rent:     rent,
		slot:     slot,
	}

	if txErr := execute(exec, txn, loaded); txErr != nil {
		log.WithError(txErr).Debug("transaction failed")
		b.statuses.record(sig, SignatureStatus{Slot: slot, Err: txErr})
		return sig, txErr
	}

	for i, l := range loaded {
		if l.isProgram || !txn.Message.IsWritable(i) || !l.isModified() {
			continue
		}

		if l.account.Lamports > 0 && !rent.IsExempt(l.account.Lamports, uint64(len(l.account.Data))) {
			txErr := solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForRent)
			log.WithField("account", base58.Encode(l.key)).Debug("account left below rent exemption")
			b.statuses.record(sig, SignatureStatus{Slot: slot, Err: txErr})
			return sig, txErr
		}
	}

	if err := b.commit(ctx, loaded, slot); err != nil {
		b.statuses.release(sig)

		if err == account.ErrStaleVersion || err == account.ErrAlreadyExists {
			log.WithError(err).Info("account modified outside of the bank")
			return sig, solana.NewTransactionError(solana.TransactionErrorAccountInUse)
		}

		log.WithError(err).Warn("failure committing transaction")
		return sig, errors.Wrap(err, "error committing transaction")
	}

	b.statuses.record(sig, SignatureStatus{Slot: slot})
	log.Debug("transaction committed")

	return sig, nil
}

// sanitize performs the structural checks on a transaction that don't require
// any state.
func sanitize(txn *solana.Transaction) *solana.TransactionError {
	m := txn.Message

	if m.Header.NumSignatures == 0 || len(txn.Signatures) == 0 {
		return solana.NewTransactionError(solana.TransactionErrorMissingSignatureForFee)
	}

	if len(txn.Signatures) != int(m.Header.NumSignatures) ||
		int(m.Header.NumSignatures) > len(m.Accounts) ||
		m.Header.NumReadonlySigned >= m.Header.NumSignatures ||
		int(m.Header.NumSignatures)+int(m.Header.NumReadOnly) > len(m.Accounts) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	if len(txn.Marshal()) > solana.MaxTransactionSize {
		return solana.NewTransactionError(solana.TransactionErrorTooLarge)
	}

	seen := make(map[string]struct{}, len(m.Accounts))
	for _, key := range m.Accounts {
		if len(key) != ed25519.PublicKeySize {
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}

		if _, ok := seen[string(key)]; ok {
			return solana.NewTransactionError(solana.TransactionErrorAccountLoadedTwice)
		}
		seen[string(key)] = struct{}{}
	}

	for _, instruction := range m.Instructions {
		// The fee payer can never be invoked as a program
		if instruction.ProgramIndex == 0 || int(instruction.ProgramIndex) >= len(m.Accounts) {
			return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
		}

		for _, index := range instruction.Accounts {
			if int(index) >= len(m.Accounts) {
				return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
			}
		}
	}

	return nil
}

func (b *Bank) lockAccounts(txn *solana.Transaction, programs map[string]Program) (unlock func()) {
	var writable, readonly [][]byte
	for i, key := range txn.Message.Accounts {
		_, isProgram := programs[string(key)]
		if txn.Message.IsWritable(i) && !isProgram {
			writable = append(writable, key)
		} else {
			readonly = append(readonly, key)
		}
	}

	return b.locks.LockAll(writable, readonly)
}

type loadedAccount struct {
	key       ed25519.PublicKey
	isProgram bool

	// record is nil for accounts that don't exist yet
	record   *account.Record
	original *Account
	account  *Account
}

func (l *loadedAccount) isModified() bool {
	return l.original.Lamports != l.account.Lamports ||
		!bytes.Equal(l.original.Owner, l.account.Owner) ||
		!bytes.Equal(l.original.Data, l.account.Data) ||
		l.original.Executable != l.account.Executable
}

func (b *Bank) loadAccounts(ctx context.Context, txn *solana.Transaction, programs map[string]Program) ([]*loadedAccount, error) {
	loaded := make([]*loadedAccount, len(txn.Message.Accounts))

	for i, key := range txn.Message.Accounts {
		l := &loadedAccount{
			key: key,
		}

		if _, ok := programs[string(key)]; ok {
			l.isProgram = true
			l.account = newProgramAccount()
		} else {
			record, err := b.store.Get(ctx, base58.Encode(key))
			switch err {
			case nil:
				l.record = record
				l.account, err = fromRecord(record)
				if err != nil {
					return nil, err
				}
			case account.ErrNotFound:
				l.account = newEmptyAccount()
			default:
				return nil, errors.Wrapf(err, "error loading account %s", base58.Encode(key))
			}
		}

		l.original = l.account.Clone()
		loaded[i] = l
	}

	// The fee payer must exist, even though this bank doesn't charge fees
	if loaded[0].record == nil {
		return nil, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}

	return loaded, nil
}

func execute(exec *executionContext, txn *solana.Transaction, loaded []*loadedAccount) *solana.TransactionError {
	m := txn.Message

	for i, instruction := range m.Instructions {
		accounts := make([]*AccountInfo, len(instruction.Accounts))
		for j, index := range instruction.Accounts {
			l := loaded[index]
			accounts[j] = &AccountInfo{
				Key:        l.key,
				IsSigner:   m.IsSigner(int(index)),
				IsWritable: m.IsWritable(int(index)) && !l.isProgram,
				Account:    l.account,
			}
		}

		program := m.Accounts[instruction.ProgramIndex]
		if err := exec.process(nil, program, accounts, instruction.Data); err != nil {
			txErr, ok := toTransactionError(i, err)
			if !ok {
				exec.log.WithError(err).Warn("program returned an unrecognized error")
			}
			return txErr
		}
	}

	return nil
}

func (b *Bank) commit(ctx context.Context, loaded []*loadedAccount, slot uint64) error {
	var records []*account.Record
	for _, l := range loaded {
		if l.isProgram || !l.isModified() {
			continue
		}

		// Never existed, and still doesn't
		if l.record == nil && l.account.Lamports == 0 {
			continue
		}

		record := toRecord(l.key, l.account, slot)
		if l.record != nil {
			record.Id = l.record.Id
			record.Version = l.record.Version
			record.CreatedAt = l.record.CreatedAt
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil
	}
	return b.store.Save(ctx, records...)
}

// Airdrop credits lamports directly to address, creating the account if
// needed. The returned signature can be polled like any transaction.
func (b *Bank) Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Airdrop")
	defer tracer.End()

	sig, err := func() (solana.Signature, error) {
		if lamports == 0 {
			return solana.Signature{}, ErrInvalidAirdrop
		}
		if len(address) != ed25519.PublicKeySize {
			return solana.Signature{}, solana.ErrInvalidPublicKey
		}

		unlock := b.locks.LockAll([][]byte{address}, nil)
		defer unlock()

		slot := b.GetSlot()

		record, err := b.store.Get(ctx, base58.Encode(address))
		switch err {
		case nil:
		case account.ErrNotFound:
			record = &account.Record{
				Address: base58.Encode(address),
				Owner:   base58.Encode(system.ProgramKey[:]),
			}
		default:
			return solana.Signature{}, errors.Wrap(err, "error loading airdrop recipient")
		}

		// Balances are stored as signed 64-bit integers
		if record.Lamports > math.MaxInt64 || lamports > math.MaxInt64-record.Lamports {
			return solana.Signature{}, ErrInvalidAirdrop
		}
		record.Lamports += lamports
		record.Slot = slot

		if err := b.store.Save(ctx, record); err == account.ErrStaleVersion || err == account.ErrAlreadyExists {
			return solana.Signature{}, ErrAirdropInUse
		} else if err != nil {
			return solana.Signature{}, errors.Wrap(err, "error saving airdrop recipient")
		}

		sig := b.signAirdrop(address, lamports, slot)
		b.statuses.record(sig, SignatureStatus{Slot: slot})

		b.log.WithFields(logrus.Fields{
			"method":    "Airdrop",
			"address":   base58.Encode(address),
			"lamports":  lamports,
			"signature": sig.String(),
		}).Debug("airdrop committed")

		return sig, nil
	}()

	tracer.OnError(err)
	return sig, err
}

func (b *Bank) signAirdrop(address ed25519.PublicKey, lamports, slot uint64) solana.Signature {
	counter := atomic.AddUint64(&b.airdropCounter, 1)

	buf := make([]byte, len(address)+3*8)
	copy(buf, address)
	binary.LittleEndian.PutUint64(buf[len(address):], lamports)
	binary.LittleEndian.PutUint64(buf[len(address)+8:], slot)
	binary.LittleEndian.PutUint64(buf[len(address)+16:], counter)
	digest := sha256.Sum256(buf)

	var sig solana.Signature
	copy(sig[:], ed25519.Sign(b.faucet, digest[:]))
	return sig
}

// GetAccount returns the current state of address.
//
// Returns ErrAccountNotFound if the account doesn't exist.
func (b *Bank) GetAccount(ctx context.Context, address ed25519.PublicKey) (*Account, error) {
	if b.isProgram(address) {
		return newProgramAccount(), nil
	}

	record, err := b.store.Get(ctx, base58.Encode(address))
	if err == account.ErrNotFound {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}

	return fromRecord(record)
}

// GetBalance returns the lamports held by address, which is zero for accounts
// that don't exist.
func (b *Bank) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	acct, err := b.GetAccount(ctx, address)
	if err == ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// GetLatestBlockhash returns the newest blockhash along with the last slot at
// which it can still be used.
func (b *Bank) GetLatestBlockhash() (solana.Blockhash, uint64) {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	return b.blockhashes.latest(), b.slot + uint64(b.blockhashes.max) - 1
}

func (b *Bank) GetSlot() uint64 {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	return b.slot
}

// GetMinimumBalanceForRentExemption returns the lamports needed to keep an
// account of dataLen bytes alive.
func (b *Bank) GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) uint64 {
	return b.Rent(ctx).MinimumBalance(dataLen)
}

// GetSignatureStatuses returns the status of each signature, or nil if the
// signature is unknown.
func (b *Bank) GetSignatureStatuses(sigs []solana.Signature) []*SignatureStatus {
	res := make([]*SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if status, ok := b.statuses.get(sig); ok {
			res[i] = status
		}
	}
	return res
}

// MemcmpFilter matches accounts whose data contains Bytes at Offset.
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

func (f MemcmpFilter) matches(data []byte) bool {
	if f.Offset > uint64(len(data)) || uint64(len(data))-f.Offset < uint64(len(f.Bytes)) {
		return false
	}
	return bytes.Equal(data[f.Offset:f.Offset+uint64(len(f.Bytes))], f.Bytes)
}

// KeyedAccount is an account alongside its address.
type KeyedAccount struct {
	Address ed25519.PublicKey
	*Account
}

// GetProgramAccounts returns every account owned by program that matches all
// of filters.
func (b *Bank) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, filters ...MemcmpFilter) ([]*KeyedAccount, error) {
	records, err := b.store.GetAllByOwner(ctx, base58.Encode(program))
	if err == account.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var res []*KeyedAccount
	for _, record := range records {
		acct, err := fromRecord(record)
		if err != nil {
			return nil, err
		}

		matches := true
		for _, filter := range filters {
			if !filter.matches(acct.Data) {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}

		address, err := base58.Decode(record.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address for account record %d", record.Id)
		}

		res = append(res, &KeyedAccount{
			Address: address,
			Account: acct,
		})
	}

	return res, nil
}

func fromRecord(record *account.Record) (*Account, error) {
	owner, err := base58.Decode(record.Owner)
	if err != nil || len(owner) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid owner for account %s", record.Address)
	}

	var data []byte
	if len(record.Data) > 0 {
		data = make([]byte, len(record.Data))
		copy(data, record.Data)
	}

	return &Account{
		Lamports:   record.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: record.Executable,
	}, nil
}

func toRecord(key ed25519.PublicKey, acct *Account, slot uint64) *account.Record {
	var data []byte
	if len(acct.Data) > 0 {
		data = make([]byte, len(acct.Data))
		copy(data, acct.Data)
	}

	return &account.Record{
		Address:    base58.Encode(key),
		Owner:      base58.Encode(acct.Owner),
		Lamports:   acct.Lamports,
		Data:       data,
		Executable: acct.Executable,
		Slot:       slot,
	}
}
