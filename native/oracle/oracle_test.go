package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubDoer struct {
	status int
	body   string
	err    error
}

func (s stubDoer) Do(*http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
	}, nil
}

func TestHTTPOracleFetchPrices(t *testing.T) {
	client := stubDoer{status: http.StatusOK, body: `{"collateralPrice":"7.5","counterPrice":"1","timestamp":1700000000}`}
	o := NewHTTPOracle(client, "https://oracle.example/prices", "key")

	quote, err := o.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.CollateralPrice.Cmp(big.NewRat(15, 2)) != 0 {
		t.Fatalf("unexpected collateral price: %s", quote.CollateralPrice)
	}
	if quote.CounterPrice.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("unexpected counter price: %s", quote.CounterPrice)
	}
	if !quote.Timestamp.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected timestamp: %s", quote.Timestamp)
	}
}

func TestHTTPOracleFailuresAreUnavailable(t *testing.T) {
	cases := map[string]stubDoer{
		"transport error": {err: fmt.Errorf("connection refused")},
		"bad status":      {status: http.StatusBadGateway, body: "upstream down"},
		"malformed body":  {status: http.StatusOK, body: "{"},
		"missing price":   {status: http.StatusOK, body: `{"counterPrice":"1"}`},
		"zero price":      {status: http.StatusOK, body: `{"collateralPrice":"0","counterPrice":"1"}`},
		"negative price":  {status: http.StatusOK, body: `{"collateralPrice":"-3","counterPrice":"1"}`},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			o := NewHTTPOracle(client, "https://oracle.example/prices", "")
			if _, err := o.FetchPrices(context.Background()); !errors.Is(err, ErrOracleUnavailable) {
				t.Fatalf("expected ErrOracleUnavailable, got %v", err)
			}
		})
	}
}

func TestManualOracle(t *testing.T) {
	m := NewManualOracle()
	if _, err := m.FetchPrices(context.Background()); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable before set, got %v", err)
	}
	if err := m.SetDecimal("10", "1", time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("set: %v", err)
	}
	quote, err := m.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.CollateralPrice.Cmp(big.NewRat(10, 1)) != 0 {
		t.Fatalf("unexpected collateral price: %s", quote.CollateralPrice)
	}

	// Mutating the returned quote must not affect stored state.
	quote.CollateralPrice.SetInt64(99)
	again, err := m.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if again.CollateralPrice.Cmp(big.NewRat(10, 1)) != 0 {
		t.Fatalf("stored quote mutated: %s", again.CollateralPrice)
	}

	if err := m.SetDecimal("0", "1", time.Now()); err == nil {
		t.Fatal("expected error for non-positive price")
	}
}
