package order

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// units converts a token amount to a decimal without going through float64.
func units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// floorUnits truncates d toward zero and converts it back to token units.
// ok is false when the result is negative or does not fit in a uint64.
func floorUnits(d decimal.Decimal) (v uint64, ok bool) {
	if d.IsNegative() {
		return 0, false
	}
	b := d.Floor().BigInt()
	if !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

// PriceMet reports whether output for the full input amount meets the limit rate.
func (o *Order) PriceMet(output uint64) bool {
	return o.PriceMetFor(output, o.inputAmount)
}

// PriceMetFor reports whether output/q >= limit rate. A zero q never meets.
// The comparison is done as output >= limit*q so the boundary is exact.
func (o *Order) PriceMetFor(output, q uint64) bool {
	if q == 0 {
		return false
	}
	return units(output).GreaterThanOrEqual(o.limitRate.Mul(units(q)))
}

// MinOutputWithSlippage returns floor(quote * (1 - slippage)).
func (o *Order) MinOutputWithSlippage(quote uint64) uint64 {
	v, _ := floorUnits(units(quote).Mul(one.Sub(o.slippage)))
	return v
}

// MaxFillable returns the remaining quantity when quote satisfies the limit
// for all of it, and zero otherwise. Sizing is all-or-nothing per check.
func (o *Order) MaxFillable(quote uint64) uint64 {
	r := o.Remaining()
	if r == 0 {
		return 0
	}
	if o.PriceMetFor(quote, r) {
		return r
	}
	return 0
}

// ProbeAmount returns floor(input * factor), the size used for a liquidity probe.
func (o *Order) ProbeAmount(factor decimal.Decimal) uint64 {
	v, ok := floorUnits(units(o.inputAmount).Mul(factor))
	if !ok {
		return o.inputAmount
	}
	return v
}

// FillPercentage returns filled/input as a percentage.
func (o *Order) FillPercentage() decimal.Decimal {
	if o.inputAmount == 0 {
		return decimal.Zero
	}
	return units(o.filled).Div(units(o.inputAmount)).Mul(hundred)
}
