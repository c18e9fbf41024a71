package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testParams(tif TimeInForce) Params {
	return Params{
		ID:          "ord-1",
		InputToken:  "USDC",
		OutputToken: "USDT",
		InputAmount: 1_000_000,
		LimitRate:   decimal.RequireFromString("1.00"),
		Slippage:    decimal.RequireFromString("0.005"),
		TIF:         tif,
		Route:       Route{Pool: "0xpool", In: 1, Out: 0},
		User:        "0xuser",
		Credential:  "key-ref",
	}
}

func mustNew(t *testing.T, p Params) *Order {
	t.Helper()
	o, err := New(p, testNow)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func mustActive(t *testing.T, p Params) *Order {
	t.Helper()
	o := mustNew(t, p)
	if err := o.Activate(); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	return o
}
