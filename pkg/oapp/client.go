package oapp

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/metrics"
	"github.com/code-payments/endpoint-mock/pkg/solana"
	"github.com/code-payments/endpoint-mock/pkg/solana/endpoint"
	"github.com/code-payments/endpoint-mock/pkg/solana/system"
)

const (
	metricsStructName = "oapp.client"
)

var (
	ErrAlreadyRegistered = errors.New("oapp is already registered")
	ErrAddressMismatch   = errors.New("registry address does not match the oapp")
	ErrInsufficientFunds = errors.New("payer cannot fund the registry account")
	ErrNotRegistered     = errors.New("oapp is not registered")
)

// Registration is the registry account of an OApp.
type Registration struct {
	Address  ed25519.PublicKey
	Delegate ed25519.PublicKey
	Bump     uint8
}

// Client registers OApps with the endpoint program and reads their registry
// accounts over the Solana JSON-RPC API.
type Client struct {
	log  *logrus.Entry
	conf *conf
	sc   solana.Client
}

func NewClient(sc solana.Client, configProvider ConfigProvider) *Client {
	return &Client{
		log:  logrus.StandardLogger().WithField("type", "oapp/client"),
		conf: configProvider(),
		sc:   sc,
	}
}

// Register creates the registry account for oapp, funded by payer, and waits
// for the transaction to reach the configured commitment.
//
// Program failures are mapped onto ErrAlreadyRegistered, ErrAddressMismatch
// and ErrInsufficientFunds. Other transaction errors are returned as a
// *solana.TransactionError.
func (c *Client) Register(ctx context.Context, payer, oapp ed25519.PrivateKey, params *endpoint.RegisterOAppInstructionArgs) (solana.Signature, error) {
	oappKey := oapp.Public().(ed25519.PublicKey)

	registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{
		OApp: oappKey,
	})
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error deriving registry address")
	}

	return c.register(ctx, payer, oapp, registry, params)
}

func (c *Client) register(ctx context.Context, payer, oapp ed25519.PrivateKey, registry ed25519.PublicKey, params *endpoint.RegisterOAppInstructionArgs) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Register")
	defer tracer.End()

	payerKey := payer.Public().(ed25519.PublicKey)
	oappKey := oapp.Public().(ed25519.PublicKey)

	log := c.log.WithFields(logrus.Fields{
		"method":   "Register",
		"payer":    base58.Encode(payerKey),
		"oapp":     base58.Encode(oappKey),
		"registry": base58.Encode(registry),
	})

	sig, err := func() (solana.Signature, error) {
		if params == nil || len(params.Delegate) != ed25519.PublicKeySize {
			return solana.Signature{}, errors.New("delegate is required")
		}

		txn := solana.NewTransaction(
			payerKey,
			endpoint.NewRegisterOAppInstruction(
				&endpoint.RegisterOAppInstructionAccounts{
					Payer:        payerKey,
					OApp:         oappKey,
					OAppRegistry: registry,
				},
				params,
			),
		)

		blockhash, err := c.sc.GetLatestBlockhash()
		if err != nil {
			return solana.Signature{}, errors.Wrap(err, "error getting latest blockhash")
		}
		txn.SetBlockhash(blockhash)

		if err := txn.Sign(payer, oapp); err != nil {
			return solana.Signature{}, errors.Wrap(err, "error signing transaction")
		}

		commitment := solana.CommitmentFromString(c.conf.commitment.Get(ctx))

		sig, err := c.sc.SubmitTransaction(txn, commitment)
		if err != nil {
			return sig, toRegistrationError(err)
		}
		log = log.WithField("signature", sig.String())

		status, err := c.sc.GetSignatureStatus(sig, commitment)
		if err != nil {
			return sig, errors.Wrap(err, "error waiting for transaction")
		}
		if status.ErrorResult != nil {
			return sig, toRegistrationError(status.ErrorResult)
		}

		return sig, nil
	}()

	if err != nil {
		log.WithError(err).Debug("registration failed")
	} else {
		log.Debug("oapp registered")
	}

	tracer.OnError(err)
	return sig, err
}

// GetRegistration returns the registry account of oapp.
//
// Returns ErrNotRegistered if the account doesn't exist.
func (c *Client) GetRegistration(ctx context.Context, oapp ed25519.PublicKey) (*Registration, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetRegistration")
	defer tracer.End()

	registration, err := func() (*Registration, error) {
		registry, _, err := endpoint.GetOAppRegistryAddress(&endpoint.GetOAppRegistryAddressArgs{
			OApp: oapp,
		})
		if err != nil {
			return nil, errors.Wrap(err, "error deriving registry address")
		}

		info, err := c.sc.GetAccountInfo(registry, solana.CommitmentFromString(c.conf.commitment.Get(ctx)))
		if err == solana.ErrNoAccountInfo {
			return nil, ErrNotRegistered
		} else if err != nil {
			return nil, errors.Wrap(err, "error getting registry account")
		}

		return toRegistration(registry, info)
	}()

	tracer.OnError(err)
	return registration, err
}

// GetAllRegistrations returns every registry account owned by the endpoint
// program.
func (c *Client) GetAllRegistrations(ctx context.Context) ([]*Registration, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAllRegistrations")
	defer tracer.End()

	registrations, err := func() ([]*Registration, error) {
		accounts, _, err := c.sc.GetFilteredProgramAccounts(endpoint.PROGRAM_ID, 0, endpoint.OAppRegistryDiscriminator)
		if err != nil {
			return nil, errors.Wrap(err, "error getting program accounts")
		}

		res := make([]*Registration, 0, len(accounts))
		for _, acct := range accounts {
			registration, err := toRegistration(acct.PublicKey, acct.Account)
			if err != nil {
				return nil, err
			}
			res = append(res, registration)
		}
		return res, nil
	}()

	tracer.OnError(err)
	return registrations, err
}

func toRegistration(address ed25519.PublicKey, info solana.AccountInfo) (*Registration, error) {
	if !info.Owner.Equal(endpoint.PROGRAM_ID) {
		return nil, errors.Errorf("registry %s is owned by %s", base58.Encode(address), base58.Encode(info.Owner))
	}

	var registry endpoint.OAppRegistry
	if err := registry.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrapf(err, "invalid registry account %s", base58.Encode(address))
	}

	return &Registration{
		Address:  address,
		Delegate: registry.Delegate,
		Bump:     registry.Bump,
	}, nil
}

func toRegistrationError(err error) error {
	txErr, ok := err.(*solana.TransactionError)
	if !ok {
		return errors.Wrap(err, "error submitting transaction")
	}

	if txErr.ErrorKey() == solana.TransactionErrorAccountNotFound {
		return ErrInsufficientFunds
	}

	instructionErr := txErr.InstructionError()
	if instructionErr == nil {
		return txErr
	}

	custom := instructionErr.CustomError()
	if custom == nil {
		return txErr
	}

	switch uint32(*custom) {
	case uint32(system.ErrorAccountAlreadyInUse):
		return ErrAlreadyRegistered
	case uint32(system.ErrorResultWithNegativeLamports):
		return ErrInsufficientFunds
	case uint32(endpoint.ConstraintSeeds):
		return ErrAddressMismatch
	}

	return txErr
}
