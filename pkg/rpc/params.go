package rpc

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// splitParams normalizes the params member of a request into positional
// arguments. Clients send a single object or array argument without the
// enclosing array, so an object is treated as the only argument.
func splitParams(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var params []json.RawMessage
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		return params, nil
	case '{':
		return []json.RawMessage{raw}, nil
	default:
		return nil, errInvalidParams
	}
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func requireParams(params []json.RawMessage, min, max int) *rpcError {
	if len(params) < min {
		return newInvalidParamsError("`params` should have at least " + strconv.Itoa(min) + " argument(s)")
	}
	if len(params) > max {
		return newInvalidParamsError("`params` should have at most " + strconv.Itoa(max) + " argument(s)")
	}
	return nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.Wrap(err, "expected a string")
	}
	return s, nil
}

func decodePublicKey(raw json.RawMessage) (ed25519.PublicKey, *rpcError) {
	s, err := decodeString(raw)
	if err != nil {
		return nil, newInvalidParamsError("Invalid param: " + err.Error())
	}

	key, err := base58.Decode(s)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, newInvalidParamsError("Invalid param: Invalid")
	}
	return key, nil
}

func decodeUint64(raw json.RawMessage) (uint64, *rpcError) {
	var v uint64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, newInvalidParamsError("Invalid param: expected an unsigned integer")
	}
	return v, nil
}

// decodeOptional unmarshals the argument at index into out, leaving out
// untouched if the argument is absent or null.
func decodeOptional(params []json.RawMessage, index int, out interface{}) *rpcError {
	if index >= len(params) || isNull(params[index]) {
		return nil
	}
	if err := json.Unmarshal(params[index], out); err != nil {
		return newInvalidParamsError("Invalid params: " + err.Error())
	}
	return nil
}

type commitmentConfig struct {
	Commitment string `json:"commitment"`
}

type accountInfoConfig struct {
	Commitment string `json:"commitment"`
	Encoding   string `json:"encoding"`
}

type sendTransactionConfig struct {
	Encoding            string `json:"encoding"`
	SkipPreflight       bool   `json:"skipPreflight"`
	PreflightCommitment string `json:"preflightCommitment"`
}

type signatureStatusesConfig struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}

type memcmpFilterConfig struct {
	Offset   uint64 `json:"offset"`
	Bytes    string `json:"bytes"`
	Encoding string `json:"encoding"`
}

type programAccountsFilter struct {
	Memcmp   *memcmpFilterConfig `json:"memcmp"`
	DataSize *uint64             `json:"dataSize"`
}

type programAccountsConfig struct {
	Commitment  string                  `json:"commitment"`
	Encoding    string                  `json:"encoding"`
	Filters     []programAccountsFilter `json:"filters"`
	WithContext bool                    `json:"withContext"`
}
