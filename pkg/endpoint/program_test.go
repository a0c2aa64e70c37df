package endpoint

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/endpoint-mock/pkg/ledger/account/memory"
	"github.com/code-payments/endpoint-mock/pkg/runtime"
	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/endpoint"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
	"github.com/code-payments/endpoint-mock/pkg/testutil"
)

const (
	testPayerLamports = 1_000_000_000
	registryLamports  = 1_176_240
)

type testEnv struct {
	ctx   context.Context
	bank  *runtime.Bank
	payer ed25519.PrivateKey
}

func setup(t *testing.T, program runtime.Program) *testEnv {
	ctx := context.Background()

	bank, err := runtime.NewBank(memory.New(), runtime.WithEnvConfigs())
	require.NoError(t, err)
	bank.RegisterProgram(endpoint.PROGRAM_ID, program)

	env := &testEnv{
		ctx:   ctx,
		bank:  bank,
		payer: testutil.GenerateSolanaKeypair(t),
	}

	_, err = bank.Airdrop(ctx, env.payerKey(), testPayerLamports)
	require.NoError(t, err)

	return env
}

func (e *testEnv) payerKey() ed25519.PublicKey {
	return e.payer.Public().(ed25519.PublicKey)
}

func (e *testEnv) submit(t *testing.T, signers []ed25519.PrivateKey, instructions ...solana.Instruction) error {
	txn := solana.NewTransaction(e.payerKey(), instructions...)

	blockhash, _ := e.bank.GetLatestBlockhash()
	txn.SetBlockhash(blockhash)
	require.NoError(t, txn.Sign(append([]ed25519.PrivateKey{e.payer}, signers...)...))

	_, err := e.bank.ProcessTransaction(e.ctx, txn)
	return err
}

func (e *testEnv) register(t *testing.T, oapp ed25519.PrivateKey, delegate ed25519.PublicKey) error {
	return e.submit(t, []ed25519.PrivateKey{oapp}, e.registerInstruction(t, oapp, delegate))
}

func (e *testEnv) registerInstruction(t *testing.T, oapp ed25519.PrivateKey, delegate ed25519.PublicKey) solana.Instruction {
	oappKey := oapp.Public().(ed25519.PublicKey)

	registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oappKey})
	require.NoError(t, err)

	return endpoint.NewRegisterOAppInstruction(
		&endpoint.RegisterOAppInstructionAccounts{
			Payer:        e.payerKey(),
			OApp:         oappKey,
			OAppRegistry: registry,
		},
		&endpoint.RegisterOAppInstructionArgs{
			Delegate: delegate,
		},
	)
}

func (e *testEnv) getRegistry(t *testing.T, oapp ed25519.PrivateKey) (*runtime.Account, *endpoint.OAppRegistry) {
	registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oapp.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	acct, err := e.bank.GetAccount(e.ctx, registry)
	require.NoError(t, err)

	var state endpoint.OAppRegistry
	require.NoError(t, state.Unmarshal(acct.Data))
	return acct, &state
}

func (e *testEnv) assertNotRegistered(t *testing.T, oapp ed25519.PrivateKey) {
	registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oapp.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	_, err = e.bank.GetAccount(e.ctx, registry)
	assert.Equal(t, runtime.ErrAccountNotFound, err)
}

func TestRegisterOApp_HappyPath(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.register(t, oapp, delegate))

	_, expectedBump, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oapp.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	acct, state := env.getRegistry(t, oapp)
	assert.EqualValues(t, endpoint.PROGRAM_ID, acct.Owner)
	assert.EqualValues(t, registryLamports, acct.Lamports)
	assert.Len(t, acct.Data, endpoint.OAppRegistrySize)
	assert.False(t, acct.Executable)
	assert.EqualValues(t, delegate, state.Delegate)
	assert.Equal(t, expectedBump, state.Bump)

	balance, err := env.bank.GetBalance(env.ctx, env.payerKey())
	require.NoError(t, err)
	assert.EqualValues(t, testPayerLamports-registryLamports, balance)
}

func TestRegisterOApp_PayerIsOApp(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.register(t, env.payer, delegate))

	_, state := env.getRegistry(t, env.payer)
	assert.EqualValues(t, delegate, state.Delegate)
}

func TestRegisterOApp_DuplicateRegistration(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegates := testutil.GenerateSolanaKeys(t, 2)

	require.NoError(t, env.register(t, oapp, delegates[0]))
	before, _ := env.getRegistry(t, oapp)

	err := env.register(t, oapp, delegates[1])
	testutil.AssertCustomError(t, err, 0, uint32(system.ErrorAccountAlreadyInUse))

	after, state := env.getRegistry(t, oapp)
	assert.Equal(t, before, after)
	assert.EqualValues(t, delegates[0], state.Delegate)
}

func TestRegisterOApp_DistinctCallers(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	seen := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		oapp := testutil.GenerateSolanaKeypair(t)
		require.NoError(t, env.register(t, oapp, delegate))

		registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oapp.Public().(ed25519.PublicKey)})
		require.NoError(t, err)

		_, ok := seen[string(registry)]
		assert.False(t, ok)
		seen[string(registry)] = struct{}{}
	}

	accounts, err := env.bank.GetProgramAccounts(env.ctx, endpoint.PROGRAM_ID, runtime.MemcmpFilter{
		Offset: 0,
		Bytes:  endpoint.OAppRegistryDiscriminator,
	})
	require.NoError(t, err)
	assert.Len(t, accounts, 5)
}

func TestRegisterOApp_AddressMismatch(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]
	wrong := testutil.GenerateSolanaKeys(t, 1)[0]

	ixn := env.registerInstruction(t, oapp, delegate)
	ixn.Accounts[2].PublicKey = wrong

	err := env.submit(t, []ed25519.PrivateKey{oapp}, ixn)
	testutil.AssertCustomError(t, err, 0, uint32(endpoint.ConstraintSeeds))

	env.assertNotRegistered(t, oapp)
	_, err = env.bank.GetAccount(env.ctx, wrong)
	assert.Equal(t, runtime.ErrAccountNotFound, err)

	balance, err := env.bank.GetBalance(env.ctx, env.payerKey())
	require.NoError(t, err)
	assert.EqualValues(t, testPayerLamports, balance)

	// The corrected address succeeds
	require.NoError(t, env.register(t, oapp, delegate))
	_, state := env.getRegistry(t, oapp)
	assert.EqualValues(t, delegate, state.Delegate)
}

func TestRegisterOApp_AddressDerivedUnderOtherSeed(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	other, _, err := endpoint.DeriveOAppRegistryAddress(endpoint.PROGRAM_ID, []byte("Other"), oapp.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	ixn := env.registerInstruction(t, oapp, delegate)
	ixn.Accounts[2].PublicKey = other

	err = env.submit(t, []ed25519.PrivateKey{oapp}, ixn)
	testutil.AssertCustomError(t, err, 0, uint32(endpoint.ConstraintSeeds))
}

func TestRegisterOApp_CustomSeed(t *testing.T) {
	seed := []byte("Other")
	env := setup(t, NewProgramWithSeed(seed, NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	oappKey := oapp.Public().(ed25519.PublicKey)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	registry, _, err := endpoint.DeriveOAppRegistryAddress(endpoint.PROGRAM_ID, seed, oappKey)
	require.NoError(t, err)

	ixn := endpoint.NewRegisterOAppInstruction(
		&endpoint.RegisterOAppInstructionAccounts{
			Payer:        env.payerKey(),
			OApp:         oappKey,
			OAppRegistry: registry,
		},
		&endpoint.RegisterOAppInstructionArgs{
			Delegate: delegate,
		},
	)
	// The program keeps its own copy of the seed
	seed[0] = 'X'

	require.NoError(t, env.submit(t, []ed25519.PrivateKey{oapp}, ixn))

	// The standard address was never touched
	env.assertNotRegistered(t, oapp)
}

func TestRegisterOApp_PrefundedRegistry(t *testing.T) {
	for _, prefunded := range []uint64{1_000, registryLamports, 2 * registryLamports} {
		env := setup(t, NewProgram(NewRegistrar()))

		oapp := testutil.GenerateSolanaKeypair(t)
		delegate := testutil.GenerateSolanaKeys(t, 1)[0]

		registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oapp.Public().(ed25519.PublicKey)})
		require.NoError(t, err)

		_, err = env.bank.Airdrop(env.ctx, registry, prefunded)
		require.NoError(t, err)

		require.NoError(t, env.register(t, oapp, delegate))

		acct, state := env.getRegistry(t, oapp)
		assert.EqualValues(t, endpoint.PROGRAM_ID, acct.Owner)
		assert.EqualValues(t, delegate, state.Delegate)

		expected := uint64(registryLamports)
		if prefunded > expected {
			expected = prefunded
		}
		assert.Equal(t, expected, acct.Lamports)

		err = env.register(t, oapp, testutil.GenerateSolanaKeys(t, 1)[0])
		testutil.AssertCustomError(t, err, 0, uint32(system.ErrorAccountAlreadyInUse))
	}
}

func TestRegisterOApp_InsufficientFunds(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	poor := testutil.GenerateSolanaKeypair(t)
	poorKey := poor.Public().(ed25519.PublicKey)
	_, err := env.bank.Airdrop(env.ctx, poorKey, 1_000)
	require.NoError(t, err)

	oapp := testutil.GenerateSolanaKeypair(t)
	oappKey := oapp.Public().(ed25519.PublicKey)
	registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{OApp: oappKey})
	require.NoError(t, err)

	txn := solana.NewTransaction(poorKey, endpoint.NewRegisterOAppInstruction(
		&endpoint.RegisterOAppInstructionAccounts{
			Payer:        poorKey,
			OApp:         oappKey,
			OAppRegistry: registry,
		},
		&endpoint.RegisterOAppInstructionArgs{
			Delegate: testutil.GenerateSolanaKeys(t, 1)[0],
		},
	))
	blockhash, _ := env.bank.GetLatestBlockhash()
	txn.SetBlockhash(blockhash)
	require.NoError(t, txn.Sign(poor, oapp))

	_, err = env.bank.ProcessTransaction(env.ctx, txn)
	testutil.AssertCustomError(t, err, 0, uint32(system.ErrorResultWithNegativeLamports))

	env.assertNotRegistered(t, oapp)
}

func TestRegisterOApp_AccountConstraints(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	for _, tc := range []struct {
		name     string
		mutate   func(ixn *solana.Instruction)
		signers  []ed25519.PrivateKey
		expected endpoint.AnchorError
	}{
		{
			name: "not enough accounts",
			mutate: func(ixn *solana.Instruction) {
				ixn.Accounts = ixn.Accounts[:3]
			},
			signers:  []ed25519.PrivateKey{oapp},
			expected: endpoint.AccountNotEnoughKeys,
		},
		{
			name: "oapp not signer",
			mutate: func(ixn *solana.Instruction) {
				ixn.Accounts[1].IsSigner = false
			},
			expected: endpoint.AccountNotSigner,
		},
		{
			name: "registry not writable",
			mutate: func(ixn *solana.Instruction) {
				ixn.Accounts[2].IsWritable = false
			},
			signers:  []ed25519.PrivateKey{oapp},
			expected: endpoint.ConstraintMut,
		},
		{
			name: "wrong system program",
			mutate: func(ixn *solana.Instruction) {
				ixn.Accounts[3].PublicKey = testutil.GenerateSolanaKeys(t, 1)[0]
			},
			signers:  []ed25519.PrivateKey{oapp},
			expected: endpoint.InvalidProgramId,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ixn := env.registerInstruction(t, oapp, delegate)
			tc.mutate(&ixn)

			err := env.submit(t, tc.signers, ixn)
			testutil.AssertCustomError(t, err, 0, uint32(tc.expected))

			env.assertNotRegistered(t, oapp)
		})
	}
}

func TestRegisterOApp_InvalidInstructionData(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	for _, tc := range []struct {
		name     string
		data     []byte
		expected endpoint.AnchorError
	}{
		{
			name:     "missing discriminator",
			data:     []byte{0x81, 0x59},
			expected: endpoint.InstructionMissing,
		},
		{
			name:     "unknown discriminator",
			data:     make([]byte, 40),
			expected: endpoint.InstructionFallbackNotFound,
		},
		{
			name:     "missing params",
			data:     endpoint.RegisterOAppInstructionDiscriminator,
			expected: endpoint.InstructionDidNotDeserialize,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ixn := env.registerInstruction(t, oapp, delegate)
			ixn.Data = tc.data

			err := env.submit(t, []ed25519.PrivateKey{oapp}, ixn)
			testutil.AssertCustomError(t, err, 0, uint32(tc.expected))
		})
	}

	env.assertNotRegistered(t, oapp)
}

func TestRegisterOApp_ConcurrentRegistrations(t *testing.T) {
	env := setup(t, NewProgram(NewRegistrar()))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegates := testutil.GenerateSolanaKeys(t, 8)

	var wg sync.WaitGroup
	results := make([]error, len(delegates))
	for i, delegate := range delegates {
		wg.Add(1)
		go func(i int, delegate ed25519.PublicKey) {
			defer wg.Done()

			txn := solana.NewTransaction(env.payerKey(), env.registerInstruction(t, oapp, delegate))
			blockhash, _ := env.bank.GetLatestBlockhash()
			txn.SetBlockhash(blockhash)
			if err := txn.Sign(env.payer, oapp); err != nil {
				results[i] = err
				return
			}

			_, results[i] = env.bank.ProcessTransaction(env.ctx, txn)
		}(i, delegate)
	}
	wg.Wait()

	var winner ed25519.PublicKey
	for i, err := range results {
		if err == nil {
			require.Nil(t, winner, "more than one registration succeeded")
			winner = delegates[i]
			continue
		}
		testutil.AssertCustomError(t, err, 0, uint32(system.ErrorAccountAlreadyInUse))
	}
	require.NotNil(t, winner)

	_, state := env.getRegistry(t, oapp)
	assert.EqualValues(t, winner, state.Delegate)
}

type recordingApplier struct {
	seed   []byte
	params *RegisterOAppParams
	err    error
}

func (a *recordingApplier) RegisterOApp(_ *runtime.InvokeContext, _ []*runtime.AccountInfo, seed []byte, params *RegisterOAppParams) error {
	a.seed = seed
	a.params = params
	return a.err
}

func TestProgram_ForwardsToApplier(t *testing.T) {
	applier := &recordingApplier{}
	env := setup(t, NewProgram(applier))

	oapp := testutil.GenerateSolanaKeypair(t)
	delegate := testutil.GenerateSolanaKeys(t, 1)[0]

	require.NoError(t, env.register(t, oapp, delegate))
	assert.Equal(t, []byte(endpoint.OAppSeed), applier.seed)
	require.NotNil(t, applier.params)
	assert.EqualValues(t, delegate, applier.params.Delegate)

	// Errors are passed through unchanged
	applier.err = solana.CustomError(1234)
	err := env.register(t, oapp, testutil.GenerateSolanaKeys(t, 1)[0])
	testutil.AssertCustomError(t, err, 0, 1234)
}
