package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fylend/crypto"
	"fylend/native/collateral"
	"fylend/native/oracle"
	"fylend/storage"
)

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = b
	}
	return crypto.NewAddress(crypto.FYPrefix, raw)
}

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *oracle.ManualOracle) {
	t.Helper()
	params := &collateral.Params{
		Owner:                   testAddr(0x01),
		Liquidator:              testAddr(0x02),
		CollateralVault:         crypto.ModuleAddress("collateral_vault"),
		CollateralDenom:         "uatom",
		CounterDenom:            "uusdc",
		SyntheticSymbol:         "fyusdc",
		LiquidationThresholdBps: 8000,
		LiquidationPenaltyBps:   1000,
		RedemptionDeadline:      2_000_000,
	}

	state := collateral.NewKVState(storage.NewMemDB())
	require.NoError(t, state.InitGenesis(params))

	source := oracle.NewManualOracle()
	source.Set(big.NewRat(10, 1), big.NewRat(1, 1), time.Unix(1_000_000, 0))

	engine := collateral.NewEngine()
	engine.SetState(state)
	engine.SetPriceSource(source)
	engine.SetNowFunc(func() int64 { return 1_000_000 })

	return NewServer(engine, state, nil, cfg), source
}

func call(t *testing.T, server *Server, body string, header http.Header) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func rpcBody(method string, params ...interface{}) string {
	encoded, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	return string(encoded)
}

func TestDepositBorrowRoundTrip(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})
	account := testAddr(0x10).String()

	recorder, resp := call(t, server, rpcBody("collateral_deposit", map[string]string{
		"account": account, "amount": "100", "denom": "uatom",
	}), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, resp.Error)

	recorder, resp = call(t, server, rpcBody("collateral_borrow", map[string]string{
		"account": account, "amount": "1000",
	}), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, resp.Error)

	var tx collateralTxResult
	remarshal(t, resp.Result, &tx)
	require.Len(t, tx.Instructions, 1)
	require.Equal(t, "mint", tx.Instructions[0].Type)
	require.Equal(t, "fyusdc", tx.Instructions[0].Token)
	require.Equal(t, "1000", tx.Instructions[0].Amount)
	require.NotEmpty(t, tx.Instructions[0].ID)

	_, resp = call(t, server, rpcBody("collateral_getCollateral", map[string]string{"address": account}), nil)
	var balance collateralBalanceResult
	remarshal(t, resp.Result, &balance)
	require.Equal(t, "100", balance.Amount)

	_, resp = call(t, server, rpcBody("collateral_getLoan", map[string]string{"address": account}), nil)
	remarshal(t, resp.Result, &balance)
	require.Equal(t, "1000", balance.Amount)
}

func TestFailedOperationLeavesStateUntouched(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})
	account := testAddr(0x10).String()

	_, resp := call(t, server, rpcBody("collateral_deposit", map[string]string{
		"account": account, "amount": "100", "denom": "uatom",
	}), nil)
	require.Nil(t, resp.Error)

	recorder, resp := call(t, server, rpcBody("collateral_withdraw", map[string]string{
		"account": account, "amount": "101",
	}), nil)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.NotNil(t, resp.Error)

	_, resp = call(t, server, rpcBody("collateral_getCollateral", map[string]string{"address": account}), nil)
	var balance collateralBalanceResult
	remarshal(t, resp.Result, &balance)
	require.Equal(t, "100", balance.Amount)
}

func TestLiquidateRequiresBearerToken(t *testing.T) {
	server, source := newTestServer(t, ServerConfig{AuthToken: "hunter2"})
	liquidator := testAddr(0x02).String()
	borrower := testAddr(0x10).String()

	_, resp := call(t, server, rpcBody("collateral_deposit", map[string]string{
		"account": borrower, "amount": "100", "denom": "uatom",
	}), nil)
	require.Nil(t, resp.Error)
	_, resp = call(t, server, rpcBody("collateral_borrow", map[string]string{
		"account": borrower, "amount": "1000",
	}), nil)
	require.Nil(t, resp.Error)
	source.Set(big.NewRat(7, 1), big.NewRat(1, 1), time.Unix(1_000_100, 0))

	body := rpcBody("collateral_liquidate", map[string]string{"caller": liquidator, "borrower": borrower})

	recorder, resp := call(t, server, body, nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.NotNil(t, resp.Error)

	header := http.Header{}
	header.Set("Authorization", "Bearer hunter2")
	recorder, resp = call(t, server, body, header)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Nil(t, resp.Error)

	var tx collateralTxResult
	remarshal(t, resp.Result, &tx)
	require.Len(t, tx.Instructions, 1)
	require.Equal(t, "transfer", tx.Instructions[0].Type)
	require.Equal(t, "100", tx.Instructions[0].Amount)
}

func TestEventsPublishedWithResult(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})
	account := testAddr(0x10).String()

	_, resp := call(t, server, rpcBody("collateral_deposit", map[string]string{
		"account": account, "amount": "100", "denom": "uatom",
	}), nil)
	require.Nil(t, resp.Error)

	var tx collateralTxResult
	remarshal(t, resp.Result, &tx)
	require.Len(t, tx.Events, 1)
	require.Equal(t, collateral.EventTypeDeposited, tx.Events[0].Type)
	require.Equal(t, account, tx.Events[0].Attributes["account"])
	require.Equal(t, "100", tx.Events[0].Attributes["amount"])

	_, resp = call(t, server, rpcBody("collateral_borrow", map[string]string{
		"account": account, "amount": "500",
	}), nil)
	require.Nil(t, resp.Error)
	remarshal(t, resp.Result, &tx)
	require.Len(t, tx.Events, 1)
	require.Equal(t, collateral.EventTypeBorrowed, tx.Events[0].Type)
	require.Equal(t, "500", tx.Events[0].Attributes["loan"])

	// A failed operation publishes nothing.
	recorder, resp := call(t, server, rpcBody("collateral_withdraw", map[string]string{
		"account": account, "amount": "1000",
	}), nil)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Nil(t, resp.Result)
}

func TestGetPrices(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	_, resp := call(t, server, rpcBody("collateral_getPrices"), nil)
	require.Nil(t, resp.Error)

	var prices collateralPricesResult
	remarshal(t, resp.Result, &prices)
	require.Equal(t, "manual", prices.Source)
	require.EqualValues(t, 1_000_000, prices.Timestamp)
}

func TestUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	recorder, resp := call(t, server, rpcBody("collateral_timeTravel"), nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRateLimit(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{RateLimit: 1})
	account := testAddr(0x10).String()
	body := rpcBody("collateral_getCollateral", map[string]string{"address": account})

	recorder, _ := call(t, server, body, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder, resp := call(t, server, body, nil)
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestMalformedEnvelope(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{})

	recorder, resp := call(t, server, "{not json", nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, codeParseError, resp.Error.Code)

	recorder, resp = call(t, server, `{"jsonrpc":"1.0","method":"collateral_getPrices","id":1}`, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func remarshal(t *testing.T, from interface{}, to interface{}) {
	t.Helper()
	encoded, err := json.Marshal(from)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, to))
}
