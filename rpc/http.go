package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fylend/native/collateral"
	"fylend/native/oracle"
	"fylend/observability"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the collateral engine over JSON-RPC. One mutex serializes
// state-changing operations; each such operation commits the staged state on
// success and discards it on failure, so a request either lands fully or not
// at all.
type Server struct {
	engine  *collateral.Engine
	state   *collateral.KVState
	logger  *slog.Logger
	metrics *observability.RPCMetrics
	limiter *rate.Limiter

	mu        sync.Mutex
	authToken string

	maxRequestBytes int64
}

// ServerConfig carries the transport knobs for NewServer.
type ServerConfig struct {
	// AuthToken, when set, gates collateral_liquidate behind a bearer token.
	AuthToken string
	// RateLimit is the sustained requests-per-second budget. Zero disables
	// limiting.
	RateLimit int
	// MaxRequestBytes caps the request body size. Zero applies the default.
	MaxRequestBytes int64
}

func NewServer(engine *collateral.Engine, state *collateral.KVState, logger *slog.Logger, cfg ServerConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBytes
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	return &Server{
		engine:          engine,
		state:           state,
		logger:          logger,
		metrics:         observability.Metrics(),
		limiter:         limiter,
		authToken:       strings.TrimSpace(cfg.AuthToken),
		maxRequestBytes: maxBytes,
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// ServeHTTP parses the JSON-RPC envelope and routes to the method handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	w = recorder

	w.Header().Set("Content-Type", "application/json")

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.Throttle("rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.maxRequestBytes)
	defer func() { _ = reader.Close() }()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "collateral_deposit":
		s.handleCollateralDeposit(w, r, req)
	case "collateral_withdraw":
		s.handleCollateralWithdraw(w, r, req)
	case "collateral_borrow":
		s.handleCollateralBorrow(w, r, req)
	case "collateral_repay":
		s.handleCollateralRepay(w, r, req)
	case "collateral_liquidate":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			break
		}
		s.handleCollateralLiquidate(w, r, req)
	case "collateral_redeem":
		s.handleCollateralRedeem(w, r, req)
	case "collateral_getCollateral":
		s.handleCollateralGetCollateral(w, r, req)
	case "collateral_getLoan":
		s.handleCollateralGetLoan(w, r, req)
	case "collateral_getPrices":
		s.handleCollateralGetPrices(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}

	s.metrics.Observe(req.Method, recorder.status, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// errorStatus maps engine sentinels onto HTTP status and JSON-RPC error
// codes. Unknown errors surface as 500 so operators notice them.
func errorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, collateral.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, collateral.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, collateral.ErrInsufficientCollateral),
		errors.Is(err, collateral.ErrWithdrawalWouldTriggerLiquidation),
		errors.Is(err, collateral.ErrLiquidationThresholdNotReached),
		errors.Is(err, collateral.ErrNoOutstandingLoan),
		errors.Is(err, collateral.ErrRedemptionNotYetAllowed),
		errors.Is(err, collateral.ErrInsufficientReserve),
		errors.Is(err, collateral.ErrArithmeticOverflow):
		return http.StatusConflict, codeServerError
	case errors.Is(err, collateral.ErrNotFound):
		return http.StatusNotFound, codeServerError
	case errors.Is(err, oracle.ErrOracleUnavailable):
		return http.StatusServiceUnavailable, codeServerError
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
