package rpc

import (
	"github.com/pkg/errors"
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/rpc-client-api/src/custom_error.rs
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	codeSendTransactionPreflightFailure = -32002

	// Matches the HTTP status public nodes reply with, which clients already
	// treat as retriable.
	codeRateLimited = 429
)

var (
	errInvalidParams = errors.New("invalid params")
)

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

func newInvalidParamsError(message string) *rpcError {
	if message == "" {
		message = "Invalid params"
	}
	return &rpcError{Code: codeInvalidParams, Message: message}
}

func newInternalError(err error) *rpcError {
	return &rpcError{Code: codeInternalError, Message: "Internal error: " + err.Error()}
}
