package rpc

import (
	"net/http"
	"strconv"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type errorCodeHandler func(*newrelic.Transaction, *rpcError)

const (
	rpcRequestMethodAttributeKey = "rpc.request.method"

	rpcResponseErrorCodeAttributeKey      = "rpc.response.errorCode"
	rpcResponseErrorMessageAttributeKey   = "rpc.response.errorMessage"
	rpcResponseErrorCodeLevelAttributeKey = "rpc.response.errorCodeLevel"

	infoLevel    = "info"
	warningLevel = "warning"
	errorLevel   = "error"
)

var (
	errorCodeHandlers = map[int]errorCodeHandler{
		codeInvalidParams:                   infoErrorCodeHandler,
		codeMethodNotFound:                  infoErrorCodeHandler,
		codeSendTransactionPreflightFailure: infoErrorCodeHandler,

		codeInvalidRequest: warningErrorCodeHandler,
		codeParseError:     warningErrorCodeHandler,
		codeRateLimited:    warningErrorCodeHandler,

		codeInternalError: errorErrorCodeHandler,
	}
	defaultErrorCodeHandler = errorErrorCodeHandler
)

func infoErrorCodeHandler(m *newrelic.Transaction, e *rpcError) {
	addErrorAttributes(m, e, infoLevel)
}

func warningErrorCodeHandler(m *newrelic.Transaction, e *rpcError) {
	addErrorAttributes(m, e, warningLevel)
}

func errorErrorCodeHandler(m *newrelic.Transaction, e *rpcError) {
	addErrorAttributes(m, e, errorLevel)
	m.NoticeError(&newrelic.Error{
		Message: e.Message,
		Class:   "JSON-RPC Error: " + strconv.Itoa(e.Code),
	})
}

func addErrorAttributes(m *newrelic.Transaction, e *rpcError, level string) {
	m.AddAttribute(rpcResponseErrorCodeAttributeKey, e.Code)
	m.AddAttribute(rpcResponseErrorMessageAttributeKey, e.Message)
	m.AddAttribute(rpcResponseErrorCodeLevelAttributeKey, level)
}

// startTransaction begins a New Relic transaction named after the JSON-RPC
// method, since every call shares one HTTP route.
func startTransaction(app *newrelic.Application, r *http.Request, method string) *newrelic.Transaction {
	txn := app.StartTransaction("rpc/" + method)
	txn.SetWebRequestHTTP(r)
	txn.AddAttribute(rpcRequestMethodAttributeKey, method)
	return txn
}

func includeRPCErrorCode(m *newrelic.Transaction, e *rpcError) {
	if e == nil {
		m.SetWebResponse(nil).WriteHeader(http.StatusOK)
		return
	}

	handler, ok := errorCodeHandlers[e.Code]
	if !ok {
		handler = defaultErrorCodeHandler
	}
	handler(m, e)
}
