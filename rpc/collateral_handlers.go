package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"fylend/core/events"
	"fylend/core/types"
	"fylend/crypto"
	"fylend/native/collateral"
)

type collateralFundedParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Denom   string `json:"denom"`
}

type collateralAmountParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type collateralLiquidateParams struct {
	Caller   string `json:"caller"`
	Borrower string `json:"borrower"`
}

type collateralRedeemParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Token   string `json:"token"`
}

type collateralAccountParams struct {
	Address string `json:"address"`
}

type instructionResult struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Asset  string `json:"asset,omitempty"`
	Token  string `json:"token,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

type collateralTxResult struct {
	Instructions []instructionResult `json:"instructions"`
	Events       []*types.Event      `json:"events"`
}

type collateralBalanceResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type collateralPricesResult struct {
	CollateralPrice string `json:"collateralPrice"`
	CounterPrice    string `json:"counterPrice"`
	Timestamp       int64  `json:"timestamp"`
	Source          string `json:"source,omitempty"`
}

func renderResult(outcome *collateral.Outcome, emitted []events.Event) collateralTxResult {
	result := collateralTxResult{
		Instructions: []instructionResult{},
		Events:       []*types.Event{},
	}
	for _, ev := range emitted {
		renderer, ok := ev.(interface{ Event() *types.Event })
		if !ok {
			continue
		}
		result.Events = append(result.Events, renderer.Event())
	}
	if outcome == nil {
		return result
	}
	for _, instr := range outcome.Instructions {
		switch typed := instr.(type) {
		case collateral.TransferInstruction:
			result.Instructions = append(result.Instructions, instructionResult{
				ID:     typed.ID,
				Type:   typed.InstructionType(),
				Asset:  typed.Asset,
				To:     typed.To.String(),
				Amount: typed.Amount.String(),
			})
		case collateral.MintInstruction:
			result.Instructions = append(result.Instructions, instructionResult{
				ID:     typed.ID,
				Type:   typed.InstructionType(),
				Token:  typed.Token,
				To:     typed.Recipient.String(),
				Amount: typed.Amount.String(),
			})
		case collateral.BurnInstruction:
			result.Instructions = append(result.Instructions, instructionResult{
				ID:     typed.ID,
				Type:   typed.InstructionType(),
				Token:  typed.Token,
				Amount: typed.Amount.String(),
			})
		}
	}
	return result
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, target interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected parameter object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], target); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, field, value string) (crypto.Address, bool) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field, err.Error())
		return crypto.Address{}, false
	}
	return decoded, true
}

func parseAmount(w http.ResponseWriter, req *RPCRequest, value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", value)
		return nil, false
	}
	return amount, true
}

// execute runs one state-changing message under the server mutex, committing
// the staged state on success and discarding it on failure. Events recorded
// during the operation are published in the result only once the commit has
// landed; a failed operation or commit drops them with the collector.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, req *RPCRequest, msg collateral.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collector := &events.CollectEmitter{}
	s.engine.SetEmitter(collector)
	defer s.engine.SetEmitter(nil)

	outcome, err := s.engine.Execute(r.Context(), msg)
	if err != nil {
		s.state.Discard()
		status, code := errorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	if err := s.state.Commit(); err != nil {
		s.state.Discard()
		s.logger.Error("state commit failed", "method", req.Method, "error", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "state commit failed", nil)
		return
	}
	writeResult(w, req.ID, renderResult(outcome, collector.Events))
}

func (s *Server) handleCollateralDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralFundedParams
	if !decodeParams(w, req, &input) {
		return
	}
	account, ok := parseAddress(w, req, "account", input.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, input.Amount)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgDeposit{Account: account, Amount: amount, Denom: input.Denom})
}

func (s *Server) handleCollateralWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralAmountParams
	if !decodeParams(w, req, &input) {
		return
	}
	account, ok := parseAddress(w, req, "account", input.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, input.Amount)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgWithdraw{Account: account, Amount: amount})
}

func (s *Server) handleCollateralBorrow(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralAmountParams
	if !decodeParams(w, req, &input) {
		return
	}
	account, ok := parseAddress(w, req, "account", input.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, input.Amount)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgBorrow{Account: account, Amount: amount})
}

func (s *Server) handleCollateralRepay(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralFundedParams
	if !decodeParams(w, req, &input) {
		return
	}
	account, ok := parseAddress(w, req, "account", input.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, input.Amount)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgRepay{Account: account, Amount: amount, Denom: input.Denom})
}

func (s *Server) handleCollateralLiquidate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralLiquidateParams
	if !decodeParams(w, req, &input) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", input.Caller)
	if !ok {
		return
	}
	borrower, ok := parseAddress(w, req, "borrower", input.Borrower)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgLiquidate{Caller: caller, Borrower: borrower})
}

func (s *Server) handleCollateralRedeem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var input collateralRedeemParams
	if !decodeParams(w, req, &input) {
		return
	}
	account, ok := parseAddress(w, req, "account", input.Account)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, input.Amount)
	if !ok {
		return
	}
	s.execute(w, r, req, collateral.MsgRedeem{Account: account, Amount: amount, Token: input.Token})
}

func (s *Server) handleCollateralGetCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input collateralAccountParams
	if !decodeParams(w, req, &input) {
		return
	}
	address, ok := parseAddress(w, req, "address", input.Address)
	if !ok {
		return
	}

	s.mu.Lock()
	amount, err := s.engine.Collateral(address)
	s.mu.Unlock()
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, collateralBalanceResult{Address: address.String(), Amount: amount.String()})
}

func (s *Server) handleCollateralGetLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input collateralAccountParams
	if !decodeParams(w, req, &input) {
		return
	}
	address, ok := parseAddress(w, req, "address", input.Address)
	if !ok {
		return
	}

	s.mu.Lock()
	amount, err := s.engine.Loan(address)
	s.mu.Unlock()
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, collateralBalanceResult{Address: address.String(), Amount: amount.String()})
}

func (s *Server) handleCollateralGetPrices(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	quote, err := s.engine.Prices(r.Context())
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, collateralPricesResult{
		CollateralPrice: quote.CollateralPrice.FloatString(18),
		CounterPrice:    quote.CounterPrice.FloatString(18),
		Timestamp:       quote.Timestamp.Unix(),
		Source:          quote.Source,
	})
}
