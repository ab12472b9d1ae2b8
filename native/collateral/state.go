package collateral

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"fylend/crypto"
	"fylend/storage"
)

const (
	keyParams         = "collateral/params"
	keyReserve        = "collateral/reserve"
	positionKeyPrefix = "collateral/position/"
)

// KVState persists positions, the singleton params record, and the reserve
// counter in a key-value database. Writes are staged in an in-memory overlay
// and only reach the database on Commit, so a failed operation leaves no
// partial mutation behind. Discard drops the overlay. The caller serializes
// operations; there is no concurrent access within one operation.
type KVState struct {
	db      storage.Database
	overlay map[string][]byte
}

// NewKVState wraps the database with an empty staging overlay.
func NewKVState(db storage.Database) *KVState {
	return &KVState{
		db:      db,
		overlay: make(map[string][]byte),
	}
}

// InitGenesis stores the immutable params and a zero reserve unless state
// already exists. It writes directly, bypassing the overlay: genesis runs
// once before any operation.
func (s *KVState) InitGenesis(params *Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if _, err := s.db.Get([]byte(keyParams)); err == nil {
		return fmt.Errorf("collateral state: params already initialised")
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	encoded, err := json.Marshal(newStoredParams(params))
	if err != nil {
		return err
	}
	return s.db.WriteBatch(map[string][]byte{
		keyParams:  encoded,
		keyReserve: []byte("0"),
	})
}

// Commit flushes the staged writes to the underlying database in one batch
// and clears the overlay. On failure the database is untouched and the
// overlay is retained, so the caller can retry or discard.
func (s *KVState) Commit() error {
	if len(s.overlay) == 0 {
		return nil
	}
	if err := s.db.WriteBatch(s.overlay); err != nil {
		return err
	}
	s.overlay = make(map[string][]byte)
	return nil
}

// Discard drops every staged write.
func (s *KVState) Discard() {
	s.overlay = make(map[string][]byte)
}

func (s *KVState) get(key string) ([]byte, error) {
	if value, ok := s.overlay[key]; ok {
		return value, nil
	}
	return s.db.Get([]byte(key))
}

func (s *KVState) put(key string, value []byte) {
	s.overlay[key] = value
}

// Params loads the singleton configuration record.
func (s *KVState) Params() (*Params, error) {
	encoded, err := s.get(keyParams)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: params", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var stored storedParams
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return nil, err
	}
	return stored.params()
}

// GetPosition loads the position for the address, or nil when absent.
func (s *KVState) GetPosition(addr crypto.Address) (*Position, error) {
	encoded, err := s.get(positionKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPosition
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return nil, err
	}
	return stored.position()
}

// PutPosition stages the position record.
func (s *KVState) PutPosition(pos *Position) error {
	if pos == nil {
		return fmt.Errorf("collateral state: nil position")
	}
	encoded, err := json.Marshal(newStoredPosition(pos))
	if err != nil {
		return err
	}
	s.put(positionKey(pos.Address), encoded)
	return nil
}

// Reserve loads the counter-asset reserve held by the module.
func (s *KVState) Reserve() (*big.Int, error) {
	encoded, err := s.get(keyReserve)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	reserve, ok := new(big.Int).SetString(string(encoded), 10)
	if !ok {
		return nil, fmt.Errorf("collateral state: corrupt reserve record %q", encoded)
	}
	return reserve, nil
}

// SetReserve stages the reserve counter. Negative values are rejected before
// they can ever be observed.
func (s *KVState) SetReserve(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("collateral state: reserve must be non-negative")
	}
	s.put(keyReserve, []byte(amount.String()))
	return nil
}

func positionKey(addr crypto.Address) string {
	return positionKeyPrefix + string(addr.Bytes())
}

type storedPosition struct {
	Address    string   `json:"address"`
	Collateral *big.Int `json:"collateral"`
	Loan       *big.Int `json:"loan"`
}

func newStoredPosition(pos *Position) storedPosition {
	stored := storedPosition{Address: pos.Address.String()}
	stored.Collateral = zeroWhenNil(pos.Collateral)
	stored.Loan = zeroWhenNil(pos.Loan)
	return stored
}

func (sp storedPosition) position() (*Position, error) {
	addr, err := crypto.DecodeAddress(sp.Address)
	if err != nil {
		return nil, fmt.Errorf("collateral state: corrupt position address: %w", err)
	}
	return &Position{
		Address:    addr,
		Collateral: zeroWhenNil(sp.Collateral),
		Loan:       zeroWhenNil(sp.Loan),
	}, nil
}

type storedParams struct {
	Owner                   string `json:"owner,omitempty"`
	Liquidator              string `json:"liquidator"`
	CollateralVault         string `json:"collateralVault"`
	CollateralDenom         string `json:"collateralDenom"`
	CounterDenom            string `json:"counterDenom"`
	SyntheticSymbol         string `json:"syntheticSymbol"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	LiquidationPenaltyBps   uint64 `json:"liquidationPenaltyBps"`
	RedemptionDeadline      int64  `json:"redemptionDeadline"`
}

func newStoredParams(params *Params) storedParams {
	stored := storedParams{
		Liquidator:              params.Liquidator.String(),
		CollateralVault:         params.CollateralVault.String(),
		CollateralDenom:         params.CollateralDenom,
		CounterDenom:            params.CounterDenom,
		SyntheticSymbol:         params.SyntheticSymbol,
		LiquidationThresholdBps: params.LiquidationThresholdBps,
		LiquidationPenaltyBps:   params.LiquidationPenaltyBps,
		RedemptionDeadline:      params.RedemptionDeadline,
	}
	if !params.Owner.IsZero() {
		stored.Owner = params.Owner.String()
	}
	return stored
}

func (sp storedParams) params() (*Params, error) {
	params := &Params{
		CollateralDenom:         sp.CollateralDenom,
		CounterDenom:            sp.CounterDenom,
		SyntheticSymbol:         sp.SyntheticSymbol,
		LiquidationThresholdBps: sp.LiquidationThresholdBps,
		LiquidationPenaltyBps:   sp.LiquidationPenaltyBps,
		RedemptionDeadline:      sp.RedemptionDeadline,
	}
	var err error
	if sp.Owner != "" {
		if params.Owner, err = crypto.DecodeAddress(sp.Owner); err != nil {
			return nil, fmt.Errorf("collateral state: corrupt owner: %w", err)
		}
	}
	if params.Liquidator, err = crypto.DecodeAddress(sp.Liquidator); err != nil {
		return nil, fmt.Errorf("collateral state: corrupt liquidator: %w", err)
	}
	if params.CollateralVault, err = crypto.DecodeAddress(sp.CollateralVault); err != nil {
		return nil, fmt.Errorf("collateral state: corrupt collateral vault: %w", err)
	}
	return params, nil
}

func zeroWhenNil(amount *big.Int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return amount
}
