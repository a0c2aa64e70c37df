package endpoint

import (
	"bytes"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/metrics"
	"github.com/code-payments/endpoint-mock/pkg/runtime"
	"github.com/code-payments/endpoint-mock/pkg/solana/endpoint"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
)

const (
	oappRegisteredEventName = "OAppRegisteredEvent"
)

const (
	payerAccountIndex = iota
	oappAccountIndex
	registryAccountIndex
	systemProgramAccountIndex

	registerOAppAccountCount
)

// Registrar is the default RegisterOAppApplier. It creates the registry
// account at the address derived from the seed and the calling OApp, and
// stores the params in it.
type Registrar struct {
	log *logrus.Entry
}

func NewRegistrar() *Registrar {
	return &Registrar{
		log: logrus.StandardLogger().WithField("type", "endpoint/registrar"),
	}
}

// RegisterOApp implements RegisterOAppApplier.RegisterOApp
func (r *Registrar) RegisterOApp(ic *runtime.InvokeContext, accounts []*runtime.AccountInfo, seed []byte, params *RegisterOAppParams) error {
	if len(accounts) < registerOAppAccountCount {
		return newAnchorError(endpoint.AccountNotEnoughKeys)
	}

	payer := accounts[payerAccountIndex]
	oapp := accounts[oappAccountIndex]
	registry := accounts[registryAccountIndex]
	systemProgram := accounts[systemProgramAccountIndex]

	log := r.log.WithFields(logrus.Fields{
		"method":   "RegisterOApp",
		"oapp":     base58.Encode(oapp.Key),
		"registry": base58.Encode(registry.Key),
	})

	if !payer.IsSigner || !oapp.IsSigner {
		return newAnchorError(endpoint.AccountNotSigner)
	}

	if !payer.IsWritable || !registry.IsWritable {
		return newAnchorError(endpoint.ConstraintMut)
	}

	if !bytes.Equal(systemProgram.Key, system.ProgramKey[:]) {
		return newAnchorError(endpoint.InvalidProgramId)
	}

	address, bump, err := endpoint.DeriveOAppRegistryAddress(ic.ProgramID(), seed, oapp.Key)
	if err != nil {
		log.WithError(err).Warn("failure deriving registry address")
		return newAnchorError(endpoint.ConstraintSeeds)
	}
	if !bytes.Equal(address, registry.Key) {
		log.WithField("expected", base58.Encode(address)).Debug("registry address mismatch")
		return newAnchorError(endpoint.ConstraintSeeds)
	}

	signerSeeds := endpoint.OAppRegistrySignerSeeds(seed, oapp.Key, bump)
	if err := r.createRegistry(ic, payer, registry, signerSeeds); err != nil {
		return err
	}

	state := &endpoint.OAppRegistry{
		Delegate: params.Delegate,
		Bump:     bump,
	}
	copy(registry.Data, state.Marshal())

	log.WithField("delegate", base58.Encode(params.Delegate)).Debug("oapp registered")

	metrics.RecordEvent(ic.Context(), oappRegisteredEventName, map[string]interface{}{
		"oapp":      base58.Encode(oapp.Key),
		"registry":  base58.Encode(registry.Key),
		"delegate":  base58.Encode(params.Delegate),
		"slot":      ic.Slot(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	return nil
}

// createRegistry allocates the registry account through the system program,
// signing for it with the derived address seeds.
//
// An account that already holds lamports can't be created, so it's topped up
// to rent exemption and allocated in place instead. The system program
// rejects the allocation for accounts that were already registered.
func (r *Registrar) createRegistry(ic *runtime.InvokeContext, payer, registry *runtime.AccountInfo, signerSeeds [][]byte) error {
	required := ic.Rent().MinimumBalance(endpoint.OAppRegistrySize)

	if registry.Lamports == 0 {
		return ic.Invoke(
			system.CreateAccount(payer.Key, registry.Key, ic.ProgramID(), required, endpoint.OAppRegistrySize),
			signerSeeds,
		)
	}

	if registry.Lamports < required {
		err := ic.Invoke(system.Transfer(payer.Key, registry.Key, required-registry.Lamports))
		if err != nil {
			return err
		}
	}

	if err := ic.Invoke(system.Allocate(registry.Key, endpoint.OAppRegistrySize), signerSeeds); err != nil {
		return err
	}
	return ic.Invoke(system.Assign(registry.Key, ic.ProgramID()), signerSeeds)
}
