package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/endpoint-mock/pkg/runtime"
	"github.com/code-payments/endpoint-mock/pkg/solana"
)

const (
	encodingBase58 = "base58"
	encodingBase64 = "base64"

	maxSignatureStatuses = 256

	confirmationStatusFinalized = "finalized"

	version = "1.14.17"
)

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type withContext struct {
	Context rpcContext  `json:"context"`
	Value   interface{} `json:"value"`
}

type accountValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      uint64   `json:"space"`
}

type keyedAccountValue struct {
	Pubkey  string        `json:"pubkey"`
	Account *accountValue `json:"account"`
}

type signatureStatusValue struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	Status             interface{} `json:"status"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

func newAccountValue(acct *runtime.Account, encoding string) *accountValue {
	data := base64.StdEncoding.EncodeToString(acct.Data)
	if encoding == encodingBase58 {
		data = base58.Encode(acct.Data)
	}

	return &accountValue{
		Lamports:   acct.Lamports,
		Owner:      base58.Encode(acct.Owner),
		Data:       []string{data, encoding},
		Executable: acct.Executable,
		Space:      uint64(len(acct.Data)),
	}
}

func parseAccountEncoding(encoding string) (string, *rpcError) {
	switch encoding {
	case "", encodingBase64:
		return encodingBase64, nil
	case encodingBase58:
		return encodingBase58, nil
	default:
		return "", newInvalidParamsError("Invalid params: unsupported encoding " + encoding)
	}
}

func (s *Server) getAccountInfo(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	address, rpcErr := decodePublicKey(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config accountInfoConfig
	if rpcErr := decodeOptional(params, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	encoding, rpcErr := parseAccountEncoding(config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}

	slot := s.bank.GetSlot()

	acct, err := s.bank.GetAccount(ctx, address)
	if err == runtime.ErrAccountNotFound {
		return &withContext{Context: rpcContext{Slot: slot}}, nil
	} else if err != nil {
		return nil, newInternalError(err)
	}

	return &withContext{
		Context: rpcContext{Slot: slot},
		Value:   newAccountValue(acct, encoding),
	}, nil
}

func (s *Server) getBalance(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	address, rpcErr := decodePublicKey(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config commitmentConfig
	if rpcErr := decodeOptional(params, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	slot := s.bank.GetSlot()
	balance, err := s.bank.GetBalance(ctx, address)
	if err != nil {
		return nil, newInternalError(err)
	}

	return &withContext{
		Context: rpcContext{Slot: slot},
		Value:   balance,
	}, nil
}

func (s *Server) getHealth(_ context.Context, _ []json.RawMessage) (interface{}, *rpcError) {
	return "ok", nil
}

func (s *Server) getVersion(_ context.Context, _ []json.RawMessage) (interface{}, *rpcError) {
	return map[string]interface{}{
		"solana-core": version,
		"feature-set": 0,
	}, nil
}

func (s *Server) getLatestBlockhash(_ context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 0, 1); rpcErr != nil {
		return nil, rpcErr
	}

	var config commitmentConfig
	if rpcErr := decodeOptional(params, 0, &config); rpcErr != nil {
		return nil, rpcErr
	}

	blockhash, lastValidSlot := s.bank.GetLatestBlockhash()
	return &withContext{
		Context: rpcContext{Slot: s.bank.GetSlot()},
		Value: map[string]interface{}{
			"blockhash":            blockhash.String(),
			"lastValidBlockHeight": lastValidSlot,
		},
	}, nil
}

func (s *Server) getSlot(_ context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 0, 1); rpcErr != nil {
		return nil, rpcErr
	}

	var config commitmentConfig
	if rpcErr := decodeOptional(params, 0, &config); rpcErr != nil {
		return nil, rpcErr
	}

	return s.bank.GetSlot(), nil
}

func (s *Server) getMinimumBalanceForRentExemption(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	dataLen, rpcErr := decodeUint64(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	return s.bank.GetMinimumBalanceForRentExemption(ctx, dataLen), nil
}

func (s *Server) sendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	encoded, err := decodeString(params[0])
	if err != nil {
		return nil, newInvalidParamsError("Invalid param: " + err.Error())
	}

	var config sendTransactionConfig
	if rpcErr := decodeOptional(params, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	encoding := config.Encoding
	if encoding == "" {
		encoding = encodingBase58
	}

	var raw []byte
	switch encoding {
	case encodingBase58:
		raw, err = base58.Decode(encoded)
	case encodingBase64:
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, newInvalidParamsError("Invalid params: unsupported encoding " + encoding)
	}
	if err != nil {
		return nil, newInvalidParamsError("Invalid param: invalid " + encoding + " string")
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		return nil, newInvalidParamsError("Invalid param: failed to deserialize transaction: " + err.Error())
	}

	sig, err := s.bank.ProcessTransaction(ctx, txn)
	if err != nil {
		txErr, ok := err.(*solana.TransactionError)
		if !ok {
			return nil, newInternalError(err)
		}

		s.log.WithFields(logrus.Fields{
			"method":    "sendTransaction",
			"signature": sig.String(),
		}).WithError(txErr).Debug("transaction failed")

		return nil, &rpcError{
			Code:    codeSendTransactionPreflightFailure,
			Message: "Transaction simulation failed: " + txErr.Error(),
			Data: map[string]interface{}{
				"err":  txErr.Raw(),
				"logs": []string{},
			},
		}
	}

	return sig.String(), nil
}

func (s *Server) getSignatureStatuses(_ context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	var encoded []string
	if err := json.Unmarshal(params[0], &encoded); err != nil {
		return nil, newInvalidParamsError("Invalid param: expected an array of signatures")
	}
	if len(encoded) > maxSignatureStatuses {
		return nil, newInvalidParamsError("Too many inputs provided; max 256")
	}

	var config signatureStatusesConfig
	if rpcErr := decodeOptional(params, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}

	sigs := make([]solana.Signature, len(encoded))
	for i, str := range encoded {
		decoded, err := base58.Decode(str)
		if err != nil || len(decoded) != len(sigs[i]) {
			return nil, newInvalidParamsError("Invalid param: Invalid")
		}
		copy(sigs[i][:], decoded)
	}

	statuses := s.bank.GetSignatureStatuses(sigs)

	values := make([]*signatureStatusValue, len(statuses))
	for i, status := range statuses {
		if status == nil {
			continue
		}

		value := &signatureStatusValue{
			Slot:               status.Slot,
			Status:             map[string]interface{}{"Ok": nil},
			ConfirmationStatus: confirmationStatusFinalized,
		}
		if status.Err != nil {
			value.Err = status.Err.Raw()
			value.Status = map[string]interface{}{"Err": status.Err.Raw()}
		}
		values[i] = value
	}

	return &withContext{
		Context: rpcContext{Slot: s.bank.GetSlot()},
		Value:   values,
	}, nil
}

func (s *Server) requestAirdrop(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 2, 3); rpcErr != nil {
		return nil, rpcErr
	}

	address, rpcErr := decodePublicKey(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	lamports, rpcErr := decodeUint64(params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config commitmentConfig
	if rpcErr := decodeOptional(params, 2, &config); rpcErr != nil {
		return nil, rpcErr
	}

	if lamports == 0 || lamports > s.conf.airdropMaxLamports.Get(ctx) {
		return nil, newInvalidParamsError("Invalid param: airdrop amount out of range")
	}

	allowed, err := s.airdropLimiter.Allow(base58.Encode(address))
	if err != nil {
		return nil, newInternalError(err)
	} else if !allowed {
		return nil, &rpcError{Code: codeRateLimited, Message: "Too many requests for a specific RPC call"}
	}

	sig, err := s.bank.Airdrop(ctx, address, lamports)
	switch err {
	case nil:
	case runtime.ErrInvalidAirdrop:
		return nil, newInvalidParamsError("Invalid param: airdrop amount out of range")
	case runtime.ErrAirdropInUse:
		return nil, &rpcError{Code: codeInternalError, Message: "Internal error: airdrop recipient in use"}
	default:
		return nil, newInternalError(err)
	}

	return sig.String(), nil
}

func (s *Server) getProgramAccounts(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	if rpcErr := requireParams(params, 1, 2); rpcErr != nil {
		return nil, rpcErr
	}

	program, rpcErr := decodePublicKey(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config programAccountsConfig
	if rpcErr := decodeOptional(params, 1, &config); rpcErr != nil {
		return nil, rpcErr
	}
	encoding, rpcErr := parseAccountEncoding(config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}

	memcmps, dataSize, err := parseProgramAccountsFilters(config.Filters)
	if err != nil {
		return nil, newInvalidParamsError("Invalid params: " + err.Error())
	}

	slot := s.bank.GetSlot()
	accounts, err := s.bank.GetProgramAccounts(ctx, program, memcmps...)
	if err != nil {
		return nil, newInternalError(err)
	}

	values := make([]*keyedAccountValue, 0, len(accounts))
	for _, acct := range accounts {
		if dataSize != nil && uint64(len(acct.Data)) != *dataSize {
			continue
		}

		values = append(values, &keyedAccountValue{
			Pubkey:  base58.Encode(acct.Address),
			Account: newAccountValue(acct.Account, encoding),
		})
	}

	if config.WithContext {
		return &withContext{
			Context: rpcContext{Slot: slot},
			Value:   values,
		}, nil
	}
	return values, nil
}

func parseProgramAccountsFilters(filters []programAccountsFilter) ([]runtime.MemcmpFilter, *uint64, error) {
	var memcmps []runtime.MemcmpFilter
	var dataSize *uint64

	for _, filter := range filters {
		switch {
		case filter.Memcmp != nil && filter.DataSize != nil:
			return nil, nil, errors.New("filter must be either memcmp or dataSize")
		case filter.DataSize != nil:
			if dataSize != nil && *dataSize != *filter.DataSize {
				return nil, nil, errors.New("conflicting dataSize filters")
			}
			dataSize = filter.DataSize
		case filter.Memcmp != nil:
			var value []byte
			var err error

			switch filter.Memcmp.Encoding {
			case "", encodingBase58:
				value, err = base58.Decode(filter.Memcmp.Bytes)
			case encodingBase64:
				value, err = base64.StdEncoding.DecodeString(filter.Memcmp.Bytes)
			default:
				return nil, nil, errors.Errorf("unsupported memcmp encoding %s", filter.Memcmp.Encoding)
			}
			if err != nil {
				return nil, nil, errors.Wrap(err, "invalid memcmp bytes")
			}

			memcmps = append(memcmps, runtime.MemcmpFilter{
				Offset: filter.Memcmp.Offset,
				Bytes:  value,
			})
		default:
			return nil, nil, errors.New("empty filter")
		}
	}

	return memcmps, dataSize, nil
}
