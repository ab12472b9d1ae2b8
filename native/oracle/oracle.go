package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrOracleUnavailable indicates that no usable price could be obtained from
// the upstream oracle. Callers must treat it as fatal to the enclosing
// operation; the client never substitutes a stale or default price.
var ErrOracleUnavailable = errors.New("oracle: price source unavailable")

// PriceQuote captures the unit prices for the collateral asset and the
// counter (stable) asset as reported by the oracle. Quotes are ephemeral and
// fetched fresh for every operation that needs a collateralization ratio.
type PriceQuote struct {
	CollateralPrice *big.Rat
	CounterPrice    *big.Rat
	Timestamp       time.Time
	Source          string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q PriceQuote) Clone() PriceQuote {
	clone := PriceQuote{Timestamp: q.Timestamp, Source: q.Source}
	if q.CollateralPrice != nil {
		clone.CollateralPrice = new(big.Rat).Set(q.CollateralPrice)
	}
	if q.CounterPrice != nil {
		clone.CounterPrice = new(big.Rat).Set(q.CounterPrice)
	}
	return clone
}

// Valid reports whether both prices are present and strictly positive.
func (q PriceQuote) Valid() bool {
	if q.CollateralPrice == nil || q.CollateralPrice.Sign() <= 0 {
		return false
	}
	if q.CounterPrice == nil || q.CounterPrice.Sign() <= 0 {
		return false
	}
	return true
}

// Source resolves the current collateral and counter asset prices.
type Source interface {
	FetchPrices(ctx context.Context) (PriceQuote, error)
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOracle fetches price data from a remote oracle price endpoint.
type HTTPOracle struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPOracle constructs an oracle client for the given endpoint. When the
// client is nil http.DefaultClient is used. The API key is optional and only
// added to the request headers when supplied.
func NewHTTPOracle(client HTTPDoer, endpoint, apiKey string) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{
		client:   client,
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
	}
}

func (o *HTTPOracle) FetchPrices(ctx context.Context) (PriceQuote, error) {
	if o == nil || o.endpoint == "" {
		return PriceQuote{}, fmt.Errorf("%w: endpoint not configured", ErrOracleUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if o.apiKey != "" {
		req.Header.Set("x-api-key", o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceQuote{}, fmt.Errorf("%w: status %d: %s", ErrOracleUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		CollateralPrice string `json:"collateralPrice"`
		CounterPrice    string `json:"counterPrice"`
		Timestamp       int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceQuote{}, fmt.Errorf("%w: decode: %v", ErrOracleUnavailable, err)
	}
	quote := PriceQuote{Source: "http"}
	quote.CollateralPrice, err = parsePrice(payload.CollateralPrice)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: collateral price: %v", ErrOracleUnavailable, err)
	}
	quote.CounterPrice, err = parsePrice(payload.CounterPrice)
	if err != nil {
		return PriceQuote{}, fmt.Errorf("%w: counter price: %v", ErrOracleUnavailable, err)
	}
	if payload.Timestamp > 0 {
		quote.Timestamp = time.Unix(payload.Timestamp, 0).UTC()
	} else {
		quote.Timestamp = time.Now().UTC()
	}
	return quote, nil
}

func parsePrice(raw string) (*big.Rat, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty price")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", raw)
	}
	if rat.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive, got %q", raw)
	}
	return rat, nil
}

// ManualOracle provides an in-memory price source used for tests and manual
// overrides during incident response.
type ManualOracle struct {
	mu    sync.RWMutex
	quote *PriceQuote
}

// NewManualOracle constructs an empty manual oracle instance.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{}
}

// SetDecimal records the supplied decimal prices using the provided timestamp.
func (m *ManualOracle) SetDecimal(collateralPrice, counterPrice string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual oracle not configured")
	}
	collateral, err := parsePrice(collateralPrice)
	if err != nil {
		return fmt.Errorf("manual oracle: %w", err)
	}
	counter, err := parsePrice(counterPrice)
	if err != nil {
		return fmt.Errorf("manual oracle: %w", err)
	}
	m.Set(collateral, counter, ts)
	return nil
}

// Set stores the provided rational prices.
func (m *ManualOracle) Set(collateralPrice, counterPrice *big.Rat, ts time.Time) {
	if m == nil || collateralPrice == nil || counterPrice == nil {
		return
	}
	m.mu.Lock()
	m.quote = &PriceQuote{
		CollateralPrice: new(big.Rat).Set(collateralPrice),
		CounterPrice:    new(big.Rat).Set(counterPrice),
		Timestamp:       ts,
		Source:          "manual",
	}
	m.mu.Unlock()
}

// FetchPrices returns the stored quote or ErrOracleUnavailable when no quote
// has been set.
func (m *ManualOracle) FetchPrices(context.Context) (PriceQuote, error) {
	if m == nil {
		return PriceQuote{}, ErrOracleUnavailable
	}
	m.mu.RLock()
	stored := m.quote
	m.mu.RUnlock()
	if stored == nil {
		return PriceQuote{}, fmt.Errorf("%w: no manual quote set", ErrOracleUnavailable)
	}
	return stored.Clone(), nil
}
