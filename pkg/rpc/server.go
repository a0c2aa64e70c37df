package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/endpoint-mock/pkg/metrics"
	"github.com/code-payments/endpoint-mock/pkg/rate"
	"github.com/code-payments/endpoint-mock/pkg/runtime"
)

const (
	maxRequestBodySize = 1 << 20
	maxBatchSize       = 100
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type methodHandler func(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError)

// Server exposes a Bank over the Solana JSON-RPC API.
type Server struct {
	log  *logrus.Entry
	conf *conf
	bank *runtime.Bank

	newRelic       *newrelic.Application
	airdropLimiter rate.Limiter

	methods map[string]methodHandler
}

// NewServer returns a Server for bank. The New Relic application is optional.
func NewServer(bank *runtime.Bank, newRelic *newrelic.Application, configProvider ConfigProvider) *Server {
	conf := configProvider()

	s := &Server{
		log:            logrus.StandardLogger().WithField("type", "rpc/server"),
		conf:           conf,
		bank:           bank,
		newRelic:       newRelic,
		airdropLimiter: rate.NewLocalRateLimiter(xrate.Limit(conf.airdropRatePerSecond.Get(context.Background()))),
	}

	s.methods = map[string]methodHandler{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getHealth":                         s.getHealth,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getProgramAccounts":                s.getProgramAccounts,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getSlot":                           s.getSlot,
		"getVersion":                        s.getVersion,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
	}

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx := metrics.WithNewRelicApp(r.Context(), s.newRelic)

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			writeResponse(w, &response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
			return
		}
		if len(batch) == 0 || len(batch) > maxBatchSize {
			writeResponse(w, &response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "Invalid request"}})
			return
		}

		responses := make([]*response, len(batch))
		for i, raw := range batch {
			responses[i] = s.handle(ctx, r, raw)
		}
		writeResponse(w, responses)
		return
	}

	writeResponse(w, s.handle(ctx, r, body))
}

func (s *Server) handle(ctx context.Context, httpReq *http.Request, raw []byte) *response {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return &response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}}
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "Invalid request"}}
	}

	log := s.log.WithFields(logrus.Fields{
		"method":     req.Method,
		"request_id": uuid.New().String(),
		"rpc_id":     string(req.ID),
	})

	if s.newRelic != nil {
		txn := startTransaction(s.newRelic, httpReq, req.Method)
		defer txn.End()

		ctx = newrelic.NewContext(ctx, txn)
	}

	start := time.Now()
	result, rpcErr := s.dispatch(ctx, &req)

	if txn := newrelic.FromContext(ctx); txn != nil {
		includeRPCErrorCode(txn, rpcErr)
	}

	log = log.WithField("latency", time.Since(start))
	if rpcErr != nil {
		log = log.WithFields(logrus.Fields{
			"code":    rpcErr.Code,
			"message": rpcErr.Message,
		})
		if rpcErr.Code == codeInternalError {
			log.Warn("rpc request failed")
		} else {
			log.Debug("rpc request failed")
		}
	} else {
		log.Trace("rpc request handled")
	}

	return &response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}
}

func (s *Server) dispatch(ctx context.Context, req *request) (interface{}, *rpcError) {
	handler, ok := s.methods[req.Method]
	if !ok {
		return nil, &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}

	params, err := splitParams(req.Params)
	if err != nil {
		return nil, newInvalidParamsError("")
	}

	return handler(ctx, params)
}

func writeResponse(w http.ResponseWriter, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
